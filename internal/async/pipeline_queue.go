package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pharmstack/invoice-ledger/internal/common"
	"github.com/pharmstack/invoice-ledger/internal/entity"
)

// Runner is what the queue drives; satisfied by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, imagePath string) (*entity.FinalOutput, error)
}

// Sink receives completed outputs; satisfied by export.Service.
type Sink interface {
	Write(ctx context.Context, out *entity.FinalOutput) error
}

// PipelineQueue is a bounded worker pool that runs the extraction pipeline
// for queued invoice images and hands completed outputs to the sink.
type PipelineQueue struct {
	runner  Runner
	sink    Sink
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*PipelineQueue)

func WithWorkers(n int) Option {
	return func(q *PipelineQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *PipelineQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}
func WithJobTimeout(d time.Duration) Option {
	return func(q *PipelineQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewPipelineQueue(runner Runner, sink Sink, logger *slog.Logger, opts ...Option) *PipelineQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &PipelineQueue{
		runner:  runner,
		sink:    sink,
		logger:  logger,
		workers: 4,
		timeout: 5 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *PipelineQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					ctx = common.WithRequestID(ctx, job.TraceID.String())
					out, err := q.runner.Run(ctx, job.ImagePath)
					if err != nil {
						cancel()
						q.logger.Error("processing failed", "worker_id", workerID, "image", job.ImagePath, "error", err)
						continue
					}
					if q.sink != nil {
						if err := q.sink.Write(ctx, out); err != nil {
							q.logger.Error("sink write failed", "worker_id", workerID, "run_id", out.RunID, "error", err)
						}
					}
					cancel()
					q.logger.Info("processed invoice",
						"worker_id", workerID,
						"image", job.ImagePath,
						"run_id", out.RunID,
						"line_items", len(out.LineItems),
						"unresolved", out.Unresolved,
					)
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *PipelineQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "image", job.ImagePath)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("queued invoice for processing", "image", job.ImagePath)
	default:
		q.logger.Warn("queue full, applying backpressure", "image", job.ImagePath)
		q.ch <- job
	}
	return nil
}

func (q *PipelineQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
