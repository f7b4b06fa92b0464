package knowledge

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/academia-hq/academia/core"
)

var errQueueFull = errors.New("ingestion queue is full")

// Ingestor processes queued documents with a fixed pool of workers.
type Ingestor struct {
	process func(ctx context.Context, docID string) error
	queue   chan string
	workers int
	metrics *Metrics
	logger  core.Logger

	mu      sync.Mutex
	queued  map[string]struct{}
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newIngestor(process func(context.Context, string) error, workers, queueSize int, metrics *Metrics, logger core.Logger) *Ingestor {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Ingestor{
		process: process,
		queue:   make(chan string, queueSize),
		queued:  make(map[string]struct{}),
		workers: workers,
		metrics: metrics,
		logger:  logger,
	}
}

// Start runs the workers until Stop is called or ctx is done.
func (ing *Ingestor) Start(ctx context.Context) {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if ing.started {
		return
	}
	ing.started = true
	ctx, ing.cancel = context.WithCancel(ctx)
	for i := 0; i < ing.workers; i++ {
		ing.wg.Add(1)
		go ing.work(ctx)
	}
}

// Stop cancels in-flight processing, waits for the workers to return and empties the queue.
// Queued documents stay pending and are requeued on the next start.
func (ing *Ingestor) Stop() {
	ing.mu.Lock()
	if !ing.started {
		ing.mu.Unlock()
		return
	}
	ing.started = false
	ing.cancel()
	ing.mu.Unlock()
	ing.wg.Wait()

	for {
		select {
		case id := <-ing.queue:
			ing.dequeued(id)
		default:
			return
		}
	}
}

// Enqueue schedules a document without blocking. A document already waiting in the queue
// is not queued twice.
func (ing *Ingestor) Enqueue(docID string) error {
	ing.mu.Lock()
	defer ing.mu.Unlock()
	if _, ok := ing.queued[docID]; ok {
		return nil
	}
	select {
	case ing.queue <- docID:
		ing.queued[docID] = struct{}{}
		ing.metrics.queueDepth.Inc()
		return nil
	default:
		return errQueueFull
	}
}

func (ing *Ingestor) dequeued(docID string) {
	ing.mu.Lock()
	delete(ing.queued, docID)
	ing.mu.Unlock()
	ing.metrics.queueDepth.Dec()
}

func (ing *Ingestor) work(ctx context.Context) {
	defer ing.wg.Done()
	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return
		case id := <-ing.queue:
			ing.dequeued(id)
			if err := ing.process(ctx, id); err != nil {
				ing.logger.Error("processing document", err, map[string]interface{}{"document_id": id})
			}
		}
	}
}
