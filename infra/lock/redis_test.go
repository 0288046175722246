package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corelock "github.com/medbot/rounds/core/lock"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisLocker) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisLocker(client, "site1:")
}

func TestRedisLockerAdd(t *testing.T) {
	mr, l := setupTestRedis(t)
	ctx := context.Background()
	key := corelock.TriggerKey(time.Date(2024, 3, 4, 6, 0, 0, 0, time.UTC))

	ok, err := l.Add(ctx, key, corelock.TriggerValue, corelock.TriggerTTL)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.Add(ctx, key, corelock.TriggerValue, corelock.TriggerTTL)
	require.NoError(t, err)
	assert.False(t, ok)

	v, err := mr.Get("site1:" + key)
	require.NoError(t, err)
	assert.Equal(t, "locked", v)
	assert.Equal(t, corelock.TriggerTTL, mr.TTL("site1:"+key))

	mr.FastForward(corelock.TriggerTTL)
	ok, err = l.Add(ctx, key, corelock.TriggerValue, corelock.TriggerTTL)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerConcurrentExactlyOne(t *testing.T) {
	_, l := setupTestRedis(t)
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Add(context.Background(), "check_schedule_lock_202403040600", corelock.TriggerValue, corelock.TriggerTTL)
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRedisLockerError(t *testing.T) {
	mr, l := setupTestRedis(t)
	mr.Close()
	_, err := l.Add(context.Background(), "k", "v", time.Second)
	assert.Error(t, err)
}

func TestNewLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	l, closeFn, err := New(context.Background(), Config{Backend: "redis", Addr: mr.Addr()})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()
	_, isRedis := l.(*RedisLocker)
	assert.True(t, isRedis)

	l, _, err = New(context.Background(), Config{})
	require.NoError(t, err)
	_, isMem := l.(*corelock.MemoryLocker)
	assert.True(t, isMem)

	_, _, err = New(context.Background(), Config{Backend: "etcd"})
	assert.Error(t, err)
}
