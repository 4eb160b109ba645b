package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/clinicore/pdfjobs/internal/domain"
)

var ErrNotFound = errors.New("resource not found")

// JobsRepository abstracts persistence for PDF render jobs. Every state
// transition goes through this store; ClaimJob is the only path from queued to
// processing and its verdict is the sole cross-process synchronization primitive.
type JobsRepository interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJob(ctx context.Context, jobID string) (*domain.Job, error)
	// OldestQueuedID returns the id of the oldest queued job by creation time,
	// or ErrNotFound when the queue is empty.
	OldestQueuedID(ctx context.Context) (string, error)
	// ClaimJob conditionally moves the job to processing. It returns true only
	// when the job was still queued and this caller performed the transition.
	ClaimJob(ctx context.Context, jobID string, startedAt time.Time) (bool, error)
	MarkJobDone(ctx context.Context, jobID, filePath string, finishedAt time.Time) error
	MarkJobFailed(ctx context.Context, jobID, errorMessage string, finishedAt time.Time) error
	ListJobsByRequester(ctx context.Context, requestedBy string) ([]*domain.Job, error)
	CountJobs(ctx context.Context) (int, error)
}

// MemoryJobsRepository stores jobs in memory for local development and tests.
// It reproduces the conditional-claim semantics of the Postgres store.
type MemoryJobsRepository struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
}

func NewMemoryJobsRepository() *MemoryJobsRepository {
	return &MemoryJobsRepository{
		jobs: make(map[string]*domain.Job),
	}
}

func (r *MemoryJobsRepository) CreateJob(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = cloneJob(job)
	return nil
}

func (r *MemoryJobsRepository) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneJob(job), nil
}

func (r *MemoryJobsRepository) OldestQueuedID(_ context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest *domain.Job
	for _, job := range r.jobs {
		if job.Status != domain.JobStatusQueued {
			continue
		}
		if oldest == nil || job.CreatedAt.Before(oldest.CreatedAt) {
			oldest = job
		}
	}
	if oldest == nil {
		return "", ErrNotFound
	}
	return oldest.ID, nil
}

func (r *MemoryJobsRepository) ClaimJob(_ context.Context, jobID string, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.Status != domain.JobStatusQueued {
		return false, nil
	}
	job.Status = domain.JobStatusProcessing
	started := startedAt
	job.StartedAt = &started
	return true, nil
}

func (r *MemoryJobsRepository) MarkJobDone(_ context.Context, jobID, filePath string, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = domain.JobStatusDone
	job.FilePath = filePath
	job.ErrorMessage = ""
	finished := finishedAt
	job.FinishedAt = &finished
	return nil
}

func (r *MemoryJobsRepository) MarkJobFailed(_ context.Context, jobID, errorMessage string, finishedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return ErrNotFound
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = errorMessage
	finished := finishedAt
	job.FinishedAt = &finished
	return nil
}

func (r *MemoryJobsRepository) ListJobsByRequester(_ context.Context, requestedBy string) ([]*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*domain.Job, 0)
	for _, job := range r.jobs {
		if requestedBy != "" && job.RequestedBy != requestedBy {
			continue
		}
		items = append(items, cloneJob(job))
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	return items, nil
}

func (r *MemoryJobsRepository) CountJobs(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs), nil
}

func cloneJob(job *domain.Job) *domain.Job {
	if job == nil {
		return nil
	}
	clone := *job
	if job.StartedAt != nil {
		started := *job.StartedAt
		clone.StartedAt = &started
	}
	if job.FinishedAt != nil {
		finished := *job.FinishedAt
		clone.FinishedAt = &finished
	}
	return &clone
}
