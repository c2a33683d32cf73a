package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"sitemap-monitor/pkg/config"
	"sitemap-monitor/pkg/models"
)

// JobStatus represents the current state of a sitemap job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job represents a background sitemap run
type Job struct {
	ID           string         `json:"id"`
	SitemapURL   string         `json:"sitemap_url"`
	Limits       config.Limits  `json:"limits"`
	Status       JobStatus      `json:"status"`
	StartedAt    time.Time      `json:"started_at"`
	CompletedAt  time.Time      `json:"completed_at,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Report       *models.Report `json:"report,omitempty"`

	// Internal fields
	ctx    context.Context
	cancel context.CancelFunc
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// JobManager manages background sitemap jobs. At most one job per sitemap URL is active.
type JobManager struct {
	jobs  map[string]*Job
	mu    sync.RWMutex
	byURL map[string]string // sitemapURL -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:  make(map[string]*Job),
		byURL: make(map[string]string),
	}
}

// CreateJob creates a pending job for a sitemap. If one is already active for the same URL
// it is returned instead and created is false.
func (m *JobManager) CreateJob(sitemapURL string, limits config.Limits) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingID, exists := m.byURL[sitemapURL]; exists {
		if existing := m.jobs[existingID]; existing != nil && existing.active() {
			return existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:         uuid.New().String(),
		SitemapURL: sitemapURL,
		Limits:     limits,
		Status:     JobStatusPending,
		StartedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}

	m.jobs[job.ID] = job
	m.byURL[sitemapURL] = job.ID
	return job, true
}

// GetJob returns a snapshot of the job, or nil if it does not exist
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, exists := m.jobs[jobID]
	if !exists {
		return nil
	}
	snapshot := *job
	return &snapshot
}

// IsRunning checks if a job is currently active for a sitemap
func (m *JobManager) IsRunning(sitemapURL string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.byURL[sitemapURL]; exists {
		job := m.jobs[jobID]
		return job != nil && job.active()
	}
	return false
}

// MarkRunning moves a pending job to running
func (m *JobManager) MarkRunning(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists && job.Status == JobStatusPending {
		job.Status = JobStatusRunning
	}
}

// Finish records the outcome of a job. A job that was cancelled stays cancelled.
func (m *JobManager) Finish(jobID string, report *models.Report, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || !job.active() {
		return
	}
	job.CompletedAt = time.Now()
	delete(m.byURL, job.SitemapURL)
	job.cancel()

	if err != nil {
		job.Status = JobStatusFailed
		job.ErrorMessage = err.Error()
		return
	}
	job.Status = JobStatusCompleted
	job.Report = report
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && job.active() {
		job.cancel()
		job.Status = JobStatusCancelled
		job.CompletedAt = time.Now()
		delete(m.byURL, job.SitemapURL)
		return true
	}
	return false
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.active() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.byURL = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context for a job (for running the pipeline)
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
