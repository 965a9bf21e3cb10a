package async

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pharmstack/invoice-ledger/internal/entity"
)

type fakeRunner struct {
	mu      sync.Mutex
	images  []string
	failFor string
}

func (r *fakeRunner) Run(_ context.Context, imagePath string) (*entity.FinalOutput, error) {
	r.mu.Lock()
	r.images = append(r.images, imagePath)
	r.mu.Unlock()
	if imagePath == r.failFor {
		return nil, errors.New("survey failed")
	}
	return &entity.FinalOutput{RunID: uuid.New()}, nil
}

type fakeSink struct {
	mu   sync.Mutex
	runs []uuid.UUID
}

func (s *fakeSink) Write(_ context.Context, out *entity.FinalOutput) error {
	s.mu.Lock()
	s.runs = append(s.runs, out.RunID)
	s.mu.Unlock()
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPipelineQueue_ProcessesAllJobs(t *testing.T) {
	runner := &fakeRunner{}
	sink := &fakeSink{}
	q := NewPipelineQueue(runner, sink, discardLogger(), WithWorkers(2), WithQueueSize(8))

	ctx := context.Background()
	for _, img := range []string{"a.jpg", "b.jpg", "c.jpg"} {
		if err := q.Enqueue(ctx, Job{ImagePath: img, SubmittedAt: time.Now(), TraceID: uuid.New()}); err != nil {
			t.Fatalf("Enqueue(%s): %v", img, err)
		}
	}
	q.Shutdown(ctx)

	if len(runner.images) != 3 {
		t.Errorf("runner saw %d jobs, want 3", len(runner.images))
	}
	if len(sink.runs) != 3 {
		t.Errorf("sink saw %d outputs, want 3", len(sink.runs))
	}
}

func TestPipelineQueue_FailedRunSkipsSink(t *testing.T) {
	runner := &fakeRunner{failFor: "bad.jpg"}
	sink := &fakeSink{}
	q := NewPipelineQueue(runner, sink, discardLogger(), WithWorkers(1))

	ctx := context.Background()
	_ = q.Enqueue(ctx, Job{ImagePath: "bad.jpg"})
	_ = q.Enqueue(ctx, Job{ImagePath: "good.jpg"})
	q.Shutdown(ctx)

	if len(runner.images) != 2 {
		t.Errorf("runner saw %d jobs, want 2", len(runner.images))
	}
	if len(sink.runs) != 1 {
		t.Errorf("sink saw %d outputs, want only the successful run", len(sink.runs))
	}
}

func TestPipelineQueue_EnqueueAfterShutdownIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	q := NewPipelineQueue(runner, nil, discardLogger(), WithWorkers(1))

	ctx := context.Background()
	q.Shutdown(ctx)
	if err := q.Enqueue(ctx, Job{ImagePath: "late.jpg"}); err != nil {
		t.Fatalf("Enqueue after shutdown: %v", err)
	}
	if len(runner.images) != 0 {
		t.Errorf("runner saw %d jobs after shutdown, want 0", len(runner.images))
	}
}

func TestPipelineQueue_ShutdownIdempotent(t *testing.T) {
	q := NewPipelineQueue(&fakeRunner{}, nil, discardLogger(), WithWorkers(1))
	ctx := context.Background()
	q.Shutdown(ctx)
	q.Shutdown(ctx) // second call must not panic on the closed channel
}
