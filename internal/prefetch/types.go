package prefetch

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// ErrStale is returned by a task whose result no longer applies. The job is
// recorded as skipped rather than failed.
var ErrStale = errors.New("job result is stale")

// Task is the unit of work a job runs. The context is cancelled on Stop.
type Task = func(ctx context.Context) error

type EnqueueRequest struct {
	Source    string
	DedupeKey string
	Task      Task
}

// Job is a snapshot of a queued task.
type Job struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	DedupeKey string    `json:"dedupe_key"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Stats struct {
	Pending int    `json:"pending"`
	Running int    `json:"running"`
	Success int    `json:"success"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
	Dropped uint64 `json:"dropped"`
}
