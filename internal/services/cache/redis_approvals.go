package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	json "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/diogomassis/payfriend/internal/models"
)

const (
	approvalKeyPrefix = "payments:approval:"
	// ExpiryIndexKey scores pending request ids by their deadline in unix
	// milliseconds.
	ExpiryIndexKey = "payments:approval:expiry"

	maxUpdateAttempts = 5
)

var (
	ErrApprovalNotFound = errors.New("approval request not found")
	ErrUpdateConflict   = errors.New("approval request updated concurrently")
)

// ApprovalStore keeps approval requests as JSON documents. Pending requests
// are also indexed by deadline so the expirer can find them.
type ApprovalStore struct {
	client    *redis.Client
	retention time.Duration
}

// NewApprovalStore creates a store that keeps a record for retention after
// its deadline, so late status queries still see the decision.
func NewApprovalStore(client *redis.Client, retention time.Duration) *ApprovalStore {
	return &ApprovalStore{
		client:    client,
		retention: retention,
	}
}

func approvalKey(id string) string {
	return approvalKeyPrefix + id
}

func (s *ApprovalStore) ttl(approval *models.ApprovalRequest, now time.Time) time.Duration {
	return approval.ExpiresAt.Sub(now) + s.retention
}

func (s *ApprovalStore) Create(ctx context.Context, approval *models.ApprovalRequest) error {
	data, err := json.Marshal(approval)
	if err != nil {
		return fmt.Errorf("[cache] failed to marshal approval request: %w", err)
	}

	ttl := s.ttl(approval, time.Now())
	if ttl <= 0 {
		ttl = s.retention
	}
	pipe := s.client.TxPipeline()
	created := pipe.SetNX(ctx, approvalKey(approval.ID), data, ttl)
	pipe.ZAdd(ctx, ExpiryIndexKey, redis.Z{
		Score:  float64(approval.ExpiresAt.UnixMilli()),
		Member: approval.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("[cache] failed to store approval request: %w", err)
	}
	if !created.Val() {
		return fmt.Errorf("[cache] approval request %s already exists", approval.ID)
	}
	return nil
}

func (s *ApprovalStore) Get(ctx context.Context, id string) (*models.ApprovalRequest, error) {
	return load(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, client getter, id string) (*models.ApprovalRequest, error) {
	data, err := client.Get(ctx, approvalKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrApprovalNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("[cache] failed to read approval request: %w", err)
	}

	var approval models.ApprovalRequest
	if err := json.Unmarshal(data, &approval); err != nil {
		return nil, fmt.Errorf("[cache] failed to unmarshal approval request: %w", err)
	}
	return &approval, nil
}

// Update applies fn to the stored request inside an optimistic transaction
// and writes the result back. An error from fn aborts the update. Resolved
// requests leave the expiry index.
func (s *ApprovalStore) Update(ctx context.Context, id string, fn func(*models.ApprovalRequest) error) (*models.ApprovalRequest, error) {
	key := approvalKey(id)
	var updated *models.ApprovalRequest

	txf := func(tx *redis.Tx) error {
		approval, err := load(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(approval); err != nil {
			return err
		}
		data, err := json.Marshal(approval)
		if err != nil {
			return fmt.Errorf("[cache] failed to marshal approval request: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			if approval.Status.Terminal() {
				pipe.ZRem(ctx, ExpiryIndexKey, id)
			}
			return nil
		})
		if err != nil {
			return err
		}
		updated = approval
		return nil
	}

	for i := 0; i < maxUpdateAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUpdateConflict, id)
}

// Due returns up to limit pending request ids whose deadline is not after now.
func (s *ApprovalStore) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := s.client.ZRangeByScore(ctx, ExpiryIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("[cache] failed to read expiry index: %w", err)
	}
	return ids, nil
}

// Unindex drops an id from the expiry index, for records that vanished.
func (s *ApprovalStore) Unindex(ctx context.Context, id string) error {
	return s.client.ZRem(ctx, ExpiryIndexKey, id).Err()
}
