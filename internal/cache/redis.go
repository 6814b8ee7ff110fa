package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"filechain/internal/models"
)

const (
	// DefaultTTL bounds how stale a listing can be if an invalidation is lost.
	DefaultTTL = 60 * time.Second

	keyPrefix = "filechain:"
)

// commander is the subset of the redis client used by the cache.
type commander interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Redis is a ListingCache backed by a redis server.
type Redis struct {
	client commander
	ttl    time.Duration
}

// NewRedis connects to addr and verifies the server answers.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return newRedis(client, ttl), nil
}

func newRedis(client commander, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// GetFiles returns the cached file listing of ownerID.
func (r *Redis) GetFiles(ctx context.Context, ownerID string) ([]models.FileRecord, bool, error) {
	var files []models.FileRecord
	ok, err := r.get(ctx, filesKey(ownerID), &files)
	return files, ok, err
}

// SetFiles caches the file listing of ownerID for the configured TTL.
func (r *Redis) SetFiles(ctx context.Context, ownerID string, files []models.FileRecord) error {
	return r.set(ctx, filesKey(ownerID), files)
}

// GetTransactions returns the cached transaction listing of ownerID.
func (r *Redis) GetTransactions(ctx context.Context, ownerID string) ([]models.TransactionRecord, bool, error) {
	var txs []models.TransactionRecord
	ok, err := r.get(ctx, transactionsKey(ownerID), &txs)
	return txs, ok, err
}

// SetTransactions caches the transaction listing of ownerID for the configured TTL.
func (r *Redis) SetTransactions(ctx context.Context, ownerID string, txs []models.TransactionRecord) error {
	return r.set(ctx, transactionsKey(ownerID), txs)
}

// Invalidate drops both listings of one owner.
func (r *Redis) Invalidate(ctx context.Context, ownerID string) error {
	return r.client.Del(ctx, filesKey(ownerID), transactionsKey(ownerID)).Err()
}

// Close releases the redis connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) get(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (r *Redis) set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, payload, r.ttl).Err()
}

func filesKey(ownerID string) string {
	return keyPrefix + "files:" + ownerID
}

func transactionsKey(ownerID string) string {
	return keyPrefix + "transactions:" + ownerID
}

var _ ListingCache = (*Redis)(nil)
