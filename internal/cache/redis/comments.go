// Package redis caches comment threads in Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kader009/trustedge-backend/internal/domain"
)

const keyPrefix = "comments:review:"

// CommentCache stores the rendered thread list of a review. Entries are keyed
// by a per-review generation that Invalidate bumps, so a fill computed before
// an invalidation lands under a generation no reader asks for.
type CommentCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCommentCache creates a Redis-backed comment thread cache.
func NewCommentCache(client *redis.Client, ttl time.Duration) *CommentCache {
	return &CommentCache{
		client: client,
		ttl:    ttl,
	}
}

func generationKey(reviewID string) string { return keyPrefix + reviewID + ":gen" }

func key(reviewID string, gen int64) string {
	return keyPrefix + reviewID + ":" + strconv.FormatInt(gen, 10)
}

// GetThreads returns the cached threads of a review and the generation they
// were looked up under. The boolean is false on a cache miss; pass the
// generation to SetThreads when filling.
func (c *CommentCache) GetThreads(ctx context.Context, reviewID string) ([]domain.CommentThread, int64, bool, error) {
	gen, err := c.client.Get(ctx, generationKey(reviewID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("redis get comment generation: %w", err)
	}

	data, err := c.client.Get(ctx, key(reviewID, gen)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, gen, false, nil
		}
		return nil, gen, false, fmt.Errorf("redis get comment threads: %w", err)
	}

	var threads []domain.CommentThread
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, gen, false, fmt.Errorf("unmarshal comment threads: %w", err)
	}

	return threads, gen, true, nil
}

// SetThreads caches the threads of a review under gen with the configured
// TTL.
func (c *CommentCache) SetThreads(ctx context.Context, reviewID string, gen int64, threads []domain.CommentThread) error {
	data, err := json.Marshal(threads)
	if err != nil {
		return fmt.Errorf("marshal comment threads: %w", err)
	}

	if err := c.client.Set(ctx, key(reviewID, gen), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set comment threads: %w", err)
	}

	return nil
}

// Invalidate moves the review to a new generation and drops the entry of
// the previous one.
func (c *CommentCache) Invalidate(ctx context.Context, reviewID string) error {
	gen, err := c.client.Incr(ctx, generationKey(reviewID)).Result()
	if err != nil {
		return fmt.Errorf("redis incr comment generation: %w", err)
	}

	if err := c.client.Del(ctx, key(reviewID, gen-1)).Err(); err != nil {
		return fmt.Errorf("redis del comment threads: %w", err)
	}

	return nil
}
