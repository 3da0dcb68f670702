package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/legisync/internal/retry"
)

func TestChunks(t *testing.T) {
	keys := make([]int, 23)
	chunks := Chunks(keys, 5)

	var sizes []int
	for _, c := range chunks {
		sizes = append(sizes, len(c))
	}
	assert.Equal(t, []int{5, 5, 5, 5, 3}, sizes)

	assert.Nil(t, Chunks([]int{}, 5))
	assert.Len(t, Chunks([]int{1, 2, 3}, 10), 1)
}

func TestFetch_OneResultPerItemInOrder(t *testing.T) {
	keys := make([]string, 23)
	for i := range keys {
		keys[i] = fmt.Sprintf("k%02d", i)
	}

	f := New(Config{
		Concurrency: 5,
		Retry:       retry.Policy{MaxAttempts: 1},
	})

	results, err := Fetch(context.Background(), f, Items(keys), func(_ context.Context, key string) (string, error) {
		if key == "k07" || key == "k19" {
			return "", errors.New("unavailable")
		}
		return "v-" + key, nil
	})
	require.NoError(t, err)
	require.Len(t, results, 23)

	failed := 0
	for i, r := range results {
		assert.Equal(t, keys[i], r.Item.Key)
		if !r.OK() {
			failed++
			assert.Empty(t, r.Value)
			continue
		}
		assert.Equal(t, "v-"+keys[i], r.Value)
	}
	assert.Equal(t, 2, failed)
}

func TestFetch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32

	f := New(Config{Concurrency: 3, Retry: retry.Policy{MaxAttempts: 1}})
	_, err := Fetch(context.Background(), f, Items(make([]int, 10)), func(context.Context, int) (int, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFetch_ChunkBarrierAndPacing(t *testing.T) {
	var (
		mu     sync.Mutex
		starts []time.Time
	)
	pacing := 30 * time.Millisecond

	var chunkInfos []ChunkInfo
	f := New(Config{
		Concurrency: 2,
		Pacing:      pacing,
		Retry:       retry.Policy{MaxAttempts: 1},
		OnChunk:     func(info ChunkInfo) { chunkInfos = append(chunkInfos, info) },
	})

	_, err := Fetch(context.Background(), f, Items([]int{0, 1, 2, 3}), func(_ context.Context, key int) (int, error) {
		mu.Lock()
		for len(starts) <= key {
			starts = append(starts, time.Time{})
		}
		starts[key] = time.Now()
		mu.Unlock()
		return key, nil
	})
	require.NoError(t, err)

	// Второе окно стартует не раньше, чем через pacing после первого
	firstChunkEnd := starts[0]
	if starts[1].After(firstChunkEnd) {
		firstChunkEnd = starts[1]
	}
	assert.GreaterOrEqual(t, starts[2].Sub(firstChunkEnd), pacing)
	assert.GreaterOrEqual(t, starts[3].Sub(firstChunkEnd), pacing)

	require.Len(t, chunkInfos, 2)
	assert.Equal(t, 2, chunkInfos[0].Done)
	assert.Equal(t, 4, chunkInfos[1].Done)
	assert.Equal(t, 4, chunkInfos[1].Total)
}

func TestFetch_RetriesPerItem(t *testing.T) {
	var calls atomic.Int32

	f := New(Config{
		Concurrency: 2,
		Retry:       retry.Policy{MaxAttempts: 3, Delay: time.Millisecond},
	})

	results, err := Fetch(context.Background(), f, Items([]int{1}), func(context.Context, int) (int, error) {
		if calls.Add(1) < 3 {
			return 0, errors.New("flaky")
		}
		return 42, nil
	})
	require.NoError(t, err)
	require.True(t, results[0].OK())
	assert.Equal(t, 42, results[0].Value)
	assert.Equal(t, 3, results[0].Attempts)
}

func TestFetch_CancelDuringPacing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := New(Config{
		Concurrency: 1,
		Pacing:      time.Hour,
		Retry:       retry.Policy{MaxAttempts: 1},
		OnChunk:     func(ChunkInfo) { cancel() },
	})

	start := time.Now()
	results, err := Fetch(ctx, f, Items([]int{1, 2, 3}), func(_ context.Context, key int) (int, error) {
		return key, nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	require.Len(t, results, 3)
	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
}

func TestNew_Defaults(t *testing.T) {
	f := New(Config{})
	assert.Equal(t, defaultConcurrency, f.Concurrency())
	assert.Nil(t, f.limiter)

	f = New(Config{RequestsPerSecond: 10})
	assert.NotNil(t, f.limiter)
}
