package prefetch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MimeLyc/livesub/pkg/log"
)

type queuedJob struct {
	snapshot Job
	task     Task
}

// Queue runs detached tasks on a fixed worker pool. Tasks sharing a dedupe key
// are coalesced while one is pending or running, and tasks that do not fit in
// the buffer are dropped.
type Queue struct {
	workerCount int
	maxJobs     int

	mu        sync.RWMutex
	jobs      map[string]*queuedJob
	dedupe    map[string]string
	idCounter uint64
	dropped   atomic.Uint64
	started   bool
	stopped   bool
	pending   chan string
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewQueue(workerCount, bufferSize int) *Queue {
	if workerCount <= 0 {
		workerCount = 1
	}
	if bufferSize <= 0 {
		bufferSize = 256
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		workerCount: workerCount,
		maxJobs:     1000,
		jobs:        make(map[string]*queuedJob),
		dedupe:      make(map[string]string),
		pending:     make(chan string, bufferSize),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Enqueue adds a task. When a job with the same dedupe key is still pending or
// running, that job is returned with created=false. A nil job means the task
// was rejected because the queue is stopped or full.
func (q *Queue) Enqueue(req EnqueueRequest) (*Job, bool) {
	if req.Task == nil {
		return nil, false
	}
	now := time.Now()

	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil, false
	}
	if id, ok := q.dedupe[req.DedupeKey]; ok {
		if existing, exists := q.jobs[id]; exists {
			snapshot := existing.snapshot
			q.mu.Unlock()
			return &snapshot, false
		}
		delete(q.dedupe, req.DedupeKey)
	}

	q.idCounter++
	id := fmt.Sprintf("job-%d", q.idCounter)
	job := &queuedJob{
		snapshot: Job{
			ID:        id,
			Source:    req.Source,
			DedupeKey: req.DedupeKey,
			Status:    StatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		},
		task: req.Task,
	}

	if q.started && !q.offerLocked(id) {
		q.mu.Unlock()
		q.dropped.Add(1)
		log.Debug("Queue full, dropping %s task %q", req.Source, req.DedupeKey)
		return nil, false
	}

	q.jobs[id] = job
	if req.DedupeKey != "" {
		q.dedupe[req.DedupeKey] = id
	}
	snapshot := job.snapshot
	q.mu.Unlock()

	return &snapshot, true
}

// Submit enqueues task under key and reports whether it was accepted.
func (q *Queue) Submit(key string, task func(ctx context.Context) error) bool {
	_, created := q.Enqueue(EnqueueRequest{
		Source:    "prefetch",
		DedupeKey: key,
		Task:      task,
	})
	return created
}

func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.RLock()
	job, ok := q.jobs[id]
	q.mu.RUnlock()
	if !ok {
		return nil, false
	}
	snapshot := job.snapshot
	return &snapshot, true
}

// InFlight reports whether a job with key is pending or running.
func (q *Queue) InFlight(key string) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	_, ok := q.dedupe[key]
	return ok
}

func (q *Queue) List() []*Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	ret := make([]*Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		snapshot := job.snapshot
		ret = append(ret, &snapshot)
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].CreatedAt.Before(ret[j].CreatedAt)
	})
	return ret
}

func (q *Queue) Stats() Stats {
	q.mu.RLock()
	defer q.mu.RUnlock()

	stats := Stats{Dropped: q.dropped.Load()}
	for _, job := range q.jobs {
		switch job.snapshot.Status {
		case StatusPending:
			stats.Pending++
		case StatusRunning:
			stats.Running++
		case StatusSuccess:
			stats.Success++
		case StatusFailed:
			stats.Failed++
		case StatusSkipped:
			stats.Skipped++
		}
	}
	return stats
}

// Start launches the workers. Jobs enqueued before Start are offered to the
// buffer first; any that do not fit are dropped.
func (q *Queue) Start() {
	q.mu.Lock()
	if q.started || q.stopped {
		q.mu.Unlock()
		return
	}
	q.started = true

	pending := make([]*queuedJob, 0)
	for _, job := range q.jobs {
		if job.snapshot.Status == StatusPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].snapshot.CreatedAt.Before(pending[j].snapshot.CreatedAt)
	})
	for _, job := range pending {
		if !q.offerLocked(job.snapshot.ID) {
			q.releaseDedupeLocked(job)
			delete(q.jobs, job.snapshot.ID)
			q.dropped.Add(1)
		}
	}
	q.mu.Unlock()

	for range q.workerCount {
		q.wg.Add(1)
		go q.worker()
	}
}

// Stop cancels running tasks and waits for the workers to exit.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.stopped = true
		q.mu.Unlock()

		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.ctx.Done():
			return
		case id := <-q.pending:
			task, ok := q.markRunning(id)
			if !ok {
				continue
			}
			q.finish(id, q.run(id, task))
		}
	}
}

func (q *Queue) run(id string, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(q.ctx)
}

func (q *Queue) offerLocked(id string) bool {
	select {
	case q.pending <- id:
		return true
	default:
		return false
	}
}

func (q *Queue) markRunning(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok || job.snapshot.Status != StatusPending {
		return nil, false
	}
	job.snapshot.Status = StatusRunning
	job.snapshot.UpdatedAt = time.Now()
	return job.task, true
}

func (q *Queue) finish(id string, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	job, ok := q.jobs[id]
	if !ok {
		return
	}

	switch {
	case err == nil:
		job.snapshot.Status = StatusSuccess
	case errors.Is(err, ErrStale), errors.Is(err, context.Canceled):
		job.snapshot.Status = StatusSkipped
		log.Debug("Job %s (%s) skipped: %v", id, job.snapshot.DedupeKey, err)
	default:
		job.snapshot.Status = StatusFailed
		job.snapshot.Error = err.Error()
		log.Warn("Job %s (%s) failed: %v", id, job.snapshot.DedupeKey, err)
	}
	job.snapshot.UpdatedAt = time.Now()
	job.task = nil
	q.releaseDedupeLocked(job)
	q.pruneTerminalJobsLocked()
}

func (q *Queue) releaseDedupeLocked(job *queuedJob) {
	key := job.snapshot.DedupeKey
	if key == "" {
		return
	}
	if id, ok := q.dedupe[key]; ok && id == job.snapshot.ID {
		delete(q.dedupe, key)
	}
}

func (q *Queue) pruneTerminalJobsLocked() {
	if q.maxJobs <= 0 || len(q.jobs) <= q.maxJobs {
		return
	}

	terminal := make([]*queuedJob, 0, len(q.jobs))
	for _, job := range q.jobs {
		if job.snapshot.Status == StatusPending || job.snapshot.Status == StatusRunning {
			continue
		}
		terminal = append(terminal, job)
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].snapshot.UpdatedAt.Before(terminal[j].snapshot.UpdatedAt)
	})

	toRemove := min(len(q.jobs)-q.maxJobs, len(terminal))
	for _, job := range terminal[:toRemove] {
		delete(q.jobs, job.snapshot.ID)
	}
}
