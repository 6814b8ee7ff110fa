package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filechain/internal/models"
)

type fakeRedis struct {
	mu      sync.Mutex
	data    map[string]string
	ttls    map[string]time.Duration
	failGet error
	closed  bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet != nil {
		return redis.NewStringResult("", f.failGet)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisFilesRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := newRedis(fake, 0)

	_, ok, err := c.GetFiles(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)

	files := []models.FileRecord{{ID: "f-1", OwnerID: "alice", Filename: "report.pdf", SizeBytes: 1024, Version: 1}}
	require.NoError(t, c.SetFiles(ctx, "alice", files))
	assert.Equal(t, DefaultTTL, fake.ttls["filechain:files:alice"])

	got, ok, err := c.GetFiles(ctx, "alice")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "report.pdf", got[0].Filename)
	assert.Equal(t, int64(1024), got[0].SizeBytes)
}

func TestRedisEmptyListingIsAHit(t *testing.T) {
	ctx := context.Background()
	c := newRedis(newFakeRedis(), time.Minute)

	require.NoError(t, c.SetTransactions(ctx, "bob", []models.TransactionRecord{}))
	got, ok, err := c.GetTransactions(ctx, "bob")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestRedisInvalidateDropsBothListings(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	c := newRedis(fake, time.Minute)

	require.NoError(t, c.SetFiles(ctx, "alice", []models.FileRecord{{ID: "f-1"}}))
	require.NoError(t, c.SetTransactions(ctx, "alice", []models.TransactionRecord{{FileID: "f-1"}}))
	require.NoError(t, c.SetFiles(ctx, "bob", []models.FileRecord{{ID: "f-2"}}))

	require.NoError(t, c.Invalidate(ctx, "alice"))

	_, ok, _ := c.GetFiles(ctx, "alice")
	assert.False(t, ok)
	_, ok, _ = c.GetTransactions(ctx, "alice")
	assert.False(t, ok)
	_, ok, _ = c.GetFiles(ctx, "bob")
	assert.True(t, ok)
}

func TestRedisErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.failGet = errors.New("connection refused")
	c := newRedis(fake, time.Minute)

	_, ok, err := c.GetFiles(ctx, "alice")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCorruptEntry(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.data["filechain:files:alice"] = "{not json"
	c := newRedis(fake, time.Minute)

	_, ok, err := c.GetFiles(ctx, "alice")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestNopNeverHits(t *testing.T) {
	ctx := context.Background()
	var c ListingCache = Nop{}
	require.NoError(t, c.SetFiles(ctx, "alice", []models.FileRecord{{ID: "f-1"}}))
	_, ok, err := c.GetFiles(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Close())
}

func TestRedisClose(t *testing.T) {
	fake := newFakeRedis()
	c := newRedis(fake, time.Minute)
	require.NoError(t, c.Close())
	assert.True(t, fake.closed)
}
