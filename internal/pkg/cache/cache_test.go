package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1-ManArmy/onelast-ai-sub000/internal/pkg/logger"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func init() {
	logger.Init("test")
}

func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client), mr
}

// ==================== MemoryStore Tests ====================

func TestMemoryStore_SetGet(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestMemoryStore_Expiry(t *testing.T) {
	s := NewMemoryStore(10)
	base := time.Now()
	s.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 1, s.Purge())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_EvictsWhenFull(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("2"), time.Hour))
	require.NoError(t, s.Set(ctx, "new", []byte("3"), time.Hour))

	assert.Equal(t, 2, s.Len())
	_, err := s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore(10)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("abc"), time.Minute))
	got, _ := s.Get(ctx, "k")
	got[0] = 'z'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryStore_RejectsNonPositiveTTL(t *testing.T) {
	s := NewMemoryStore(10)
	assert.Error(t, s.Set(context.Background(), "k", []byte("v"), 0))
}

// ==================== RedisStore Tests ====================

func TestRedisStore_SetGetDelete(t *testing.T) {
	s, mr := setupRedisStoreTest(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "bin:424242", []byte(`{"x":1}`), time.Hour))
	got, err := s.Get(ctx, "bin:424242")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))

	require.NoError(t, s.Delete(ctx, "bin:424242"))
	_, err = s.Get(ctx, "bin:424242")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := setupRedisStoreTest(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := s.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

// ==================== Cache Tests ====================

func TestCache_GetMissAndHit(t *testing.T) {
	c := New(NewMemoryStore(10), "test")
	ctx := context.Background()

	_, ok, err := Get[record](ctx, c, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "a", record{Name: "x"}, time.Minute))
	v, ok, err := Get[record](ctx, c, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "x", v.Name)
}

func TestGetOrCompute_CachesSuccess(t *testing.T) {
	c := New(NewMemoryStore(10), "test")
	ctx := context.Background()
	var calls int32

	compute := func(ctx context.Context) (*record, error) {
		atomic.AddInt32(&calls, 1)
		return &record{Name: "computed"}, nil
	}

	v, cached, err := GetOrCompute(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "computed", v.Name)

	v, cached, err = GetOrCompute(ctx, c, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, "computed", v.Name)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_DoesNotCacheErrors(t *testing.T) {
	c := New(NewMemoryStore(10), "test")
	ctx := context.Background()
	var calls int32
	boom := errors.New("boom")

	compute := func(ctx context.Context) (*record, error) {
		atomic.AddInt32(&calls, 1)
		return nil, boom
	}

	_, _, err := GetOrCompute(ctx, c, "k", time.Minute, compute)
	assert.ErrorIs(t, err, boom)
	_, _, err = GetOrCompute(ctx, c, "k", time.Minute, compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestGetOrCompute_DeduplicatesConcurrentCallers(t *testing.T) {
	c := New(NewMemoryStore(10), "test")
	ctx := context.Background()
	var calls int32
	release := make(chan struct{})

	compute := func(ctx context.Context) (*record, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &record{Name: "shared", Items: []string{"a"}}, nil
	}

	const n = 10
	var wg sync.WaitGroup
	results := make([]*record, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, _, err := GetOrCompute(ctx, c, "same", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		require.NotNil(t, r)
		assert.Equal(t, "shared", r.Name)
	}
}

func TestGetOrCompute_CallerContextCancelled(t *testing.T) {
	c := New(NewMemoryStore(10), "test")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := GetOrCompute(ctx, c, "k", time.Minute, func(ctx context.Context) (*record, error) {
		time.Sleep(20 * time.Millisecond)
		return &record{}, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetOrCompute_FirstCallerLeavingDoesNotFailWaiters(t *testing.T) {
	c := New(NewMemoryStore(10), "test")
	started := make(chan struct{})
	release := make(chan struct{})

	compute := func(ctx context.Context) (*record, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &record{Name: "issuer"}, nil
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, _, err := GetOrCompute(firstCtx, c, "424242", time.Minute, compute)
		firstErr <- err
	}()
	<-started

	type outcome struct {
		val *record
		err error
	}
	waiter := make(chan outcome, 1)
	go func() {
		v, _, err := GetOrCompute(context.Background(), c, "424242", time.Minute, compute)
		waiter <- outcome{v, err}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-waiter
	require.NoError(t, got.err)
	assert.Equal(t, "issuer", got.val.Name)
}

func TestCache_RedisBackedRoundTrip(t *testing.T) {
	s, mr := setupRedisStoreTest(t)
	defer mr.Close()
	c := New(s, "bin")
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "424242", record{Name: "visa"}, time.Hour))
	assert.True(t, mr.Exists("bin:424242"))

	v, ok, err := Get[record](ctx, c, "424242")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "visa", v.Name)
}
