package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/snapmeal/pkg/cache"
)

func TestMemory(t *testing.T) {
	t.Parallel()

	t.Run("set and get", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](time.Minute)
		require.NoError(t, c.Set(context.Background(), "k", "v", 0))

		got, err := c.Get(context.Background(), "k")
		require.NoError(t, err)
		require.Equal(t, "v", got)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](time.Minute)
		_, err := c.Get(context.Background(), "absent")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("expired key", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](time.Minute)
		require.NoError(t, c.Set(context.Background(), "k", "v", time.Millisecond))
		time.Sleep(5 * time.Millisecond)

		_, err := c.Get(context.Background(), "k")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](time.Minute)
		require.NoError(t, c.Set(context.Background(), "k", "v", 0))
		require.NoError(t, c.Delete(context.Background(), "k"))

		_, err := c.Get(context.Background(), "k")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("negative ttl never expires", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[string](time.Millisecond)
		require.NoError(t, c.Set(context.Background(), "k", "v", -1))
		time.Sleep(5 * time.Millisecond)

		got, err := c.Get(context.Background(), "k")
		require.NoError(t, err)
		require.Equal(t, "v", got)
	})
}

func TestGetOrSet(t *testing.T) {
	t.Parallel()

	t.Run("computes on miss and caches", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](time.Minute)
		var calls atomic.Int32
		fn := func(context.Context) (int, time.Duration, error) {
			calls.Add(1)
			return 42, 0, nil
		}

		got, err := cache.GetOrSet(context.Background(), c, "answer", fn)
		require.NoError(t, err)
		require.Equal(t, 42, got)

		got, err = cache.GetOrSet(context.Background(), c, "answer", fn)
		require.NoError(t, err)
		require.Equal(t, 42, got)
		require.Equal(t, int32(1), calls.Load())
	})

	t.Run("failed compute leaves cache untouched", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](time.Minute)
		wantErr := errors.New("compute failed")

		_, err := cache.GetOrSet(context.Background(), c, "bad-key", func(context.Context) (int, time.Duration, error) {
			return 0, 0, wantErr
		})
		require.ErrorIs(t, err, wantErr)

		_, err = c.Get(context.Background(), "bad-key")
		require.ErrorIs(t, err, cache.ErrNotFound)
	})

	t.Run("concurrent misses run once", func(t *testing.T) {
		t.Parallel()

		c := cache.NewMemory[int](time.Minute)
		var calls atomic.Int32
		fn := func(context.Context) (int, time.Duration, error) {
			calls.Add(1)
			time.Sleep(20 * time.Millisecond)
			return 7, 0, nil
		}

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := cache.GetOrSet(context.Background(), c, "shared-key", fn)
				require.NoError(t, err)
				require.Equal(t, 7, got)
			}()
		}
		wg.Wait()

		require.Equal(t, int32(1), calls.Load())
	})
}
