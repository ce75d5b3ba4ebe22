package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an ingest job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusCrawling  JobStatus = "crawling"
	StatusCompleted JobStatus = "completed"
	StatusEmpty     JobStatus = "empty"
	StatusFailed    JobStatus = "failed"
	StatusCanceled  JobStatus = "canceled"
)

// Terminal reports whether no further transitions happen from s.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusEmpty, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Job tracks the state of a single document ingest.
type Job struct {
	mu sync.Mutex

	ID       string
	Status   JobStatus
	Phase    string
	Progress Progress

	CreatedAt time.Time
	UpdatedAt time.Time

	// Internal: not serialized.
	request Request
	cancel  context.CancelFunc
	errors  []string
}

// Progress tracks processing progress.
type Progress struct {
	Pages      int      `json:"pages"`
	Chunks     int      `json:"chunks"`
	Batches    int      `json:"batches"`
	StopReason string   `json:"stop_reason,omitempty"`
	Errors     []string `json:"errors"`
}

// NewJob returns a queued job for req with a fresh id.
func NewJob(req Request) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
		request:   req,
	}
}

// Request returns the ingest request the job was created with.
func (j *Job) Request() Request {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.request
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := job.Status.Terminal() && now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically. A terminal status is final.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return
	}
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetResult copies ingest totals into the job progress.
func (j *Job) SetResult(r Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Pages = r.Pages
	j.Progress.Chunks = r.Chunks
	j.Progress.Batches = r.Batches
	j.Progress.StopReason = string(r.StopReason)
	j.UpdatedAt = time.Now()
}

// begin moves a queued job to crawling and installs the function that
// aborts it. It returns false if the job was canceled while queued.
func (j *Job) begin(cancel context.CancelFunc) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return false
	}
	j.cancel = cancel
	j.Status = StatusCrawling
	j.Phase = "crawling"
	j.UpdatedAt = time.Now()
	return true
}

// CurrentStatus returns the job status.
func (j *Job) CurrentStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

// Cancel marks the job canceled and aborts it if running. It returns false
// when the job had already finished.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Status.Terminal() {
		return false
	}
	j.Status = StatusCanceled
	j.Phase = "canceled"
	j.UpdatedAt = time.Now()
	if j.cancel != nil {
		j.cancel()
	}
	return true
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	DocID     string    `json:"doc_id"`
	StartURL  string    `json:"start_url"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	return JobSnapshot{
		ID:       j.ID,
		DocID:    j.request.DocID,
		StartURL: j.request.StartURL,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			Pages:      j.Progress.Pages,
			Chunks:     j.Progress.Chunks,
			Batches:    j.Progress.Batches,
			StopReason: j.Progress.StopReason,
			Errors:     errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
