package health

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Status struct {
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checkedAt"`
}

// PayfriendMonitor caches the health of the backend dependencies so health
// probes never hit them directly.
type PayfriendMonitor struct {
	dependencies map[string]Pinger
	clock        clockwork.Clock
	interval     time.Duration
	logger       zerolog.Logger
	cache        map[string]Status
	mutex        sync.RWMutex
	stopChan     chan struct{}
}

func NewMonitor(clock clockwork.Clock, interval time.Duration, logger zerolog.Logger, dependencies map[string]Pinger) *PayfriendMonitor {
	return &PayfriendMonitor{
		dependencies: dependencies,
		clock:        clock,
		interval:     interval,
		logger:       logger.With().Str("component", "health").Logger(),
		cache:        make(map[string]Status),
		stopChan:     make(chan struct{}),
	}
}

// GetStatus returns the cached status of every dependency and whether all of
// them were healthy on their last check.
func (m *PayfriendMonitor) GetStatus() (map[string]Status, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	statuses := make(map[string]Status, len(m.cache))
	healthy := len(m.cache) == len(m.dependencies)
	for name, status := range m.cache {
		statuses[name] = status
		healthy = healthy && status.Healthy
	}
	return statuses, healthy
}

func (m *PayfriendMonitor) Start() {
	m.logger.Info().Msg("[health] Starting health monitor...")
	ticker := m.clock.NewTicker(m.interval)
	m.CheckAll()
	go func() {
		for {
			select {
			case <-ticker.Chan():
				m.CheckAll()
			case <-m.stopChan:
				ticker.Stop()
				m.logger.Info().Msg("[health] Health monitor stopped.")
				return
			}
		}
	}()
}

func (m *PayfriendMonitor) Stop() {
	close(m.stopChan)
}

func (m *PayfriendMonitor) CheckAll() {
	ctx, cancel := context.WithTimeout(context.Background(), m.interval)
	defer cancel()

	for name, dependency := range m.dependencies {
		status := Status{Healthy: true, CheckedAt: m.clock.Now().UTC()}
		if err := dependency.Ping(ctx); err != nil {
			m.logger.Error().Err(err).Str("dependency", name).Msg("[health] dependency check failed, marking as failing")
			status.Healthy = false
			status.Error = err.Error()
		}
		m.updateStatus(name, status)
	}
}

func (m *PayfriendMonitor) updateStatus(name string, status Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if previous, found := m.cache[name]; !found || previous.Healthy != status.Healthy {
		m.logger.Info().Str("dependency", name).Bool("healthy", status.Healthy).Msg("[health] dependency status changed")
	}
	m.cache[name] = status
}
