// Package store persists upload jobs and their progress.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/skiptrace/internal/model"
)

var (
	// ErrNotFound is returned when no job has the requested ID.
	ErrNotFound = eris.New("store: job not found")
	// ErrCompleted is returned when cancelling a job that already completed.
	ErrCompleted = eris.New("store: job already completed")
	// ErrFinished is returned when completing or failing a job that is no
	// longer processing.
	ErrFinished = eris.New("store: job is not processing")
)

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status        model.JobStatus `json:"status,omitempty"`
	UpdatedBefore time.Time       `json:"updated_before,omitempty"`
	Limit         int             `json:"limit,omitempty"`
	Offset        int             `json:"offset,omitempty"`
}

// Store defines job persistence.
type Store interface {
	CreateJob(ctx context.Context, fileName, content string) (*model.Job, error)
	GetJob(ctx context.Context, id string) (*model.Job, error)
	// ListJobs returns jobs newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	Status(ctx context.Context, id string) (model.JobStatus, error)

	UpdateProgress(ctx context.Context, id string, p model.Progress) error
	// CompleteJob replaces the job content with the enriched file.
	CompleteJob(ctx context.Context, id, content string) error
	FailJob(ctx context.Context, id, message string) error
	CancelJob(ctx context.Context, id string) error

	// MarkStale fails processing jobs not updated since before.
	MarkStale(ctx context.Context, before time.Time) (int, error)
	DeleteAll(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the store for driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, databaseURL string, pool PoolConfig) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL, pool)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}
