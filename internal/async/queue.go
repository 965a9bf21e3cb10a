package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job is one invoice image awaiting processing.
type Job struct {
	ImagePath   string
	SubmittedAt time.Time
	TraceID     uuid.UUID
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
