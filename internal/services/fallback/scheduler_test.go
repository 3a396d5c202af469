package fallback

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/diogomassis/payfriend/internal/services/flow"
)

type recordingRevealer struct {
	mu       sync.Mutex
	revealed []string
}

func (r *recordingRevealer) RevealSecondaryChannel(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.revealed = append(r.revealed, requestID)
}

func (r *recordingRevealer) Revealed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.revealed...)
}

func TestArmRevealsOnceAfterDeadline(t *testing.T) {
	clock := clockwork.NewFakeClock()
	revealer := &recordingRevealer{}
	s := New(clock, revealer, zerolog.Nop())
	f := flow.New()
	f.Bind("abc123")

	s.Arm(f, "abc123", 15*time.Second)
	clock.Advance(14 * time.Second)
	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, revealer.Revealed())

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return len(revealer.Revealed()) == 1 }, time.Second, time.Millisecond)

	clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, []string{"abc123"}, revealer.Revealed())
	assert.False(t, f.Terminal())
}

func TestArmSuppressedWhenFlowFinishedFirst(t *testing.T) {
	clock := clockwork.NewFakeClock()
	revealer := &recordingRevealer{}
	s := New(clock, revealer, zerolog.Nop())
	f := flow.New()

	s.Arm(f, "abc123", 15*time.Second)
	clock.Advance(5 * time.Second)
	f.Finish()
	clock.Advance(time.Minute)

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, revealer.Revealed())
}
