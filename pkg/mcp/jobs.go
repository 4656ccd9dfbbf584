package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of an ingest job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a background ingest job
type Job struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Status       JobStatus `json:"status"`
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at,omitempty"`
	AssetCount   int       `json:"asset_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResultJSON   string    `json:"-"` // serialized ingest result on success

	ctx    context.Context
	cancel context.CancelFunc
}

// maxJobHistory caps how many jobs are retained. Oldest finished jobs are
// evicted first; active jobs are never evicted.
const maxJobHistory = 100

// JobManager manages background ingest jobs
type JobManager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	byURL map[string]string // listing URL -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		byURL: make(map[string]string),
	}
}

// CreateJob creates a job for a listing URL. If a job for the same URL is
// already pending or running, that job is returned with created=false and no
// new job is made.
func (m *JobManager) CreateJob(url string) (*Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.byURL[url]; exists {
		existing := m.jobs[existingID]
		if existing != nil && (existing.Status == JobStatusPending || existing.Status == JobStatusRunning) {
			return existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job := &Job{
		ID:        uuid.New().String(),
		URL:       url,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[job.ID] = job
	m.byURL[url] = job.ID
	m.pruneLocked()
	return job, true
}

// pruneLocked evicts the oldest finished jobs once the history cap is hit.
// Caller must hold m.mu.
func (m *JobManager) pruneLocked() {
	for len(m.jobs) > maxJobHistory {
		oldestID := ""
		var oldest time.Time
		for id, job := range m.jobs {
			if job.Status == JobStatusPending || job.Status == JobStatusRunning {
				continue
			}
			if oldestID == "" || job.CompletedAt.Before(oldest) {
				oldestID, oldest = id, job.CompletedAt
			}
		}
		if oldestID == "" {
			return
		}
		delete(m.jobs, oldestID)
	}
}

// GetJob retrieves a job by ID
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[jobID]
}

// UpdateStatus updates a job's status; terminal statuses free the URL slot
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists {
		return
	}
	job.Status = status
	if status == JobStatusCompleted || status == JobStatusFailed || status == JobStatusCancelled {
		job.CompletedAt = time.Now()
		delete(m.byURL, job.URL)
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// SetResult stores the serialized result and asset count for a job
func (m *JobManager) SetResult(jobID, resultJSON string, assetCount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		job.ResultJSON = resultJSON
		job.AssetCount = assetCount
	}
}

// CancelJob cancels a pending or running job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists {
		if job.Status == JobStatusPending || job.Status == JobStatusRunning {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
			delete(m.byURL, job.URL)
			return true
		}
	}
	return false
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.Status == JobStatusPending || job.Status == JobStatusRunning {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byURL = make(map[string]string)
}

// GetContext returns the cancellation context for a job
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
