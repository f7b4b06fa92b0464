package knowledge

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academia-hq/academia/core"
)

func TestIngestor(t *testing.T) {
	var (
		mu        sync.Mutex
		processed []string
	)
	done := make(chan struct{}, 8)
	process := func(ctx context.Context, id string) error {
		mu.Lock()
		processed = append(processed, id)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	ing := newIngestor(process, 2, 2, metrics, core.NewNopLogger())

	// nothing runs before Start, the queue fills up
	require.NoError(t, ing.Enqueue("a"))
	require.NoError(t, ing.Enqueue("b"))
	require.NoError(t, ing.Enqueue("a"), "already queued")
	assert.Equal(t, errQueueFull, ing.Enqueue("c"))
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.queueDepth))

	ing.Start(context.Background())
	ing.Start(context.Background()) // no-op
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("queued documents were not processed")
		}
	}
	require.NoError(t, ing.Enqueue("c"))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("document was not processed")
	}
	ing.Stop()
	ing.Stop() // no-op

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"a", "b", "c"}, processed)
	assert.Zero(t, promtest.ToFloat64(metrics.queueDepth))
}

func TestIngestor_Stop(t *testing.T) {
	started := make(chan struct{})
	var cancelled bool
	process := func(ctx context.Context, id string) error {
		close(started)
		<-ctx.Done()
		cancelled = true
		return ctx.Err()
	}
	metrics := NewMetrics(prometheus.NewRegistry())
	ing := newIngestor(process, 1, 2, metrics, core.NewNopLogger())
	ing.Start(context.Background())
	require.NoError(t, ing.Enqueue("a"))
	<-started
	require.NoError(t, ing.Enqueue("b"))

	// Stop waits for the in-flight document to give up, then empties the queue
	ing.Stop()
	assert.True(t, cancelled)
	assert.Zero(t, promtest.ToFloat64(metrics.queueDepth))
	require.NoError(t, ing.Enqueue("b"))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.queueDepth))
}
