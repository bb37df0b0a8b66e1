package model

import "time"

// JobStatus represents the current state of a file enrichment job.
type JobStatus string

const (
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one uploaded spreadsheet and its enrichment progress.
type Job struct {
	ID               string     `json:"id"`
	FileName         string     `json:"file_name"`
	Status           JobStatus  `json:"status"`
	Content          string     `json:"file_content"`
	TotalRows        int        `json:"total_rows"`
	RowsProcessed    int        `json:"rows_processed"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	RequestCount     int64      `json:"request_count"`
	Error            string     `json:"error,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// Progress is a snapshot reported after every processed row.
type Progress struct {
	RowsProcessed  int           `json:"rows_processed"`
	TotalRows      int           `json:"total_rows"`
	RequestCount   int64         `json:"request_count"`
	ProcessingTime time.Duration `json:"processing_time"`
}

