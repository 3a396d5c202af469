package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PayfriendRedisClient owns the connection pool shared by the approval store,
// the notification queue and the payment ledger.
type PayfriendRedisClient struct {
	client *redis.Client
}

func NewPayfriendRedisClient(addr string) *PayfriendRedisClient {
	return &PayfriendRedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:         addr,
			Password:     "",
			DB:           0,
			PoolSize:     100,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolTimeout:  4 * time.Second,
		}),
	}
}

func (r *PayfriendRedisClient) Client() *redis.Client {
	return r.client
}

func (r *PayfriendRedisClient) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("[cache] failed to ping Redis: %w", err)
	}
	return nil
}

func (r *PayfriendRedisClient) Close() error {
	err := r.client.Close()
	if err != nil {
		return fmt.Errorf("[cache] failed to close Redis connection: %w", err)
	}
	return nil
}
