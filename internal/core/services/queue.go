package services

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/opptrack/internal/core/domain"
	"github.com/custodia-labs/opptrack/internal/core/ports/driving"
	"github.com/custodia-labs/opptrack/internal/logger"
)

// Queue defaults.
const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// ErrQueueClosed is returned by Enqueue after Close.
var ErrQueueClosed = errors.New("queue closed")

// IngestFunc runs one document. Ingestor.Ingest satisfies it.
type IngestFunc func(ctx context.Context, documentID string, opts driving.IngestOptions) (*domain.Document, error)

// Result is the outcome of one queued document.
type Result = driving.IngestResult

// Ensure Queue implements the interface.
var _ driving.IngestQueue = (*Queue)(nil)

type job struct {
	ctx  context.Context
	id   string
	opts driving.IngestOptions
}

// Queue is a bounded worker pool that ingests documents concurrently.
type Queue struct {
	ingest   IngestFunc
	workers  int
	size     int
	onResult func(Result)

	mu      sync.Mutex
	running bool
	closed  bool
	jobs    chan job
	done    chan struct{}
	senders sync.WaitGroup
	wg      sync.WaitGroup
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueWorkers sets the number of concurrent documents.
func WithQueueWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets how many documents may wait for a worker.
func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n >= 0 {
			q.size = n
		}
	}
}

// WithResultHandler is called by the worker for every finished document.
func WithResultHandler(fn func(Result)) QueueOption {
	return func(q *Queue) {
		q.onResult = fn
	}
}

// NewQueue creates a stopped queue.
func NewQueue(ingest IngestFunc, opts ...QueueOption) *Queue {
	q := &Queue{
		ingest:  ingest,
		workers: DefaultWorkers,
		size:    DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the workers. Calling Start twice is a no-op.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running || q.closed {
		return
	}
	q.running = true
	q.jobs = make(chan job, q.size)
	q.done = make(chan struct{})

	for range q.workers {
		q.wg.Add(1)
		go q.work()
	}
}

func (q *Queue) work() {
	defer q.wg.Done()
	for j := range q.jobs {
		doc, err := q.ingest(j.ctx, j.id, j.opts)
		if err != nil && !errors.Is(err, domain.ErrCancelled) {
			logger.Debug("queue: %s: %v", j.id, err)
		}
		if q.onResult != nil {
			q.onResult(Result{DocumentID: j.id, Document: doc, Err: err})
		}
	}
}

// Enqueue adds a document, waiting for space while ctx allows. ctx is
// also the context the document is ingested under. A caller still
// waiting when Close runs gets ErrQueueClosed.
func (q *Queue) Enqueue(ctx context.Context, documentID string, opts driving.IngestOptions) error {
	q.mu.Lock()
	if q.closed || !q.running {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.senders.Add(1)
	jobs, done := q.jobs, q.done
	q.mu.Unlock()
	defer q.senders.Done()

	select {
	case jobs <- job{ctx: ctx, id: documentID, opts: opts}:
		return nil
	case <-done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting documents and waits for queued ones to finish.
// jobs is only closed once no Enqueue call can still send on it.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	running := q.running
	if running {
		close(q.done)
	}
	q.mu.Unlock()

	if running {
		q.senders.Wait()
		close(q.jobs)
	}
	q.wg.Wait()
}

// RunAll ingests ids on a fresh pool and returns results in input order.
// A repeated id is ingested once and its result fills every slot it
// holds. Documents not yet started when ctx is cancelled report ctx's
// error.
func (q *Queue) RunAll(ctx context.Context, ids []string, opts driving.IngestOptions) []Result {
	slots := make(map[string][]int, len(ids))
	unique := make([]string, 0, len(ids))
	for i, id := range ids {
		if _, seen := slots[id]; !seen {
			unique = append(unique, id)
		}
		slots[id] = append(slots[id], i)
	}

	results := make([]Result, len(ids))
	for i, id := range ids {
		results[i] = Result{DocumentID: id}
	}
	record := func(r Result) {
		for _, i := range slots[r.DocumentID] {
			results[i] = r
		}
	}

	var mu sync.Mutex
	pool := NewQueue(q.ingest,
		WithQueueWorkers(q.workers),
		WithQueueSize(q.size),
		WithResultHandler(func(r Result) {
			mu.Lock()
			record(r)
			mu.Unlock()
			if q.onResult != nil {
				q.onResult(r)
			}
		}),
	)
	pool.Start()

	for i, id := range unique {
		if err := pool.Enqueue(ctx, id, opts); err != nil {
			pool.Close()
			for _, rest := range unique[i:] {
				record(Result{DocumentID: rest, Err: err})
			}
			return results
		}
	}
	pool.Close()
	return results
}
