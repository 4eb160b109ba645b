package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/pdfjobs/internal/cache"
	"github.com/clinicore/pdfjobs/internal/domain"
	"github.com/clinicore/pdfjobs/internal/repository"
)

var (
	// ErrDocumentNotFound is returned when the target consultation or care
	// plan does not exist at submission time. No job row is created.
	ErrDocumentNotFound = errors.New("referenced document not found")
	// ErrForbidden is returned when the caller is neither the job's
	// requester nor an administrator.
	ErrForbidden = errors.New("access to job denied")
)

// JobsService owns job submission and guarded reads. It never renders; a
// submission only inserts a queued row and returns.
type JobsService struct {
	repo     repository.JobsRepository
	records  repository.RecordsRepository
	jobCache cache.JobCache
	logger   *log.Logger
}

func NewJobsService(
	repo repository.JobsRepository,
	records repository.RecordsRepository,
	jobCache cache.JobCache,
	logger *log.Logger,
) *JobsService {
	return &JobsService{
		repo:     repo,
		records:  records,
		jobCache: jobCache,
		logger:   logger,
	}
}

// Submit validates the referenced document and inserts a queued job for it.
func (s *JobsService) Submit(
	ctx context.Context,
	docType domain.DocumentType,
	docID string,
	identity domain.Identity,
) (*domain.Job, error) {
	exists, err := s.records.DocumentExists(ctx, docType, docID)
	if err != nil {
		return nil, fmt.Errorf("check document exists: %w", err)
	}
	if !exists {
		return nil, ErrDocumentNotFound
	}

	job := &domain.Job{
		ID:          uuid.NewString(),
		Type:        docType,
		RequestedBy: identity.UserID,
		Status:      domain.JobStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	switch docType {
	case domain.DocumentTypeConsultation:
		job.ConsultationID = docID
	case domain.DocumentTypeCarePlan:
		job.CarePlanID = docID
	}

	if err := s.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	s.refreshCache(ctx, job)

	if s.logger != nil {
		s.logger.Printf("job submitted job_id=%s doc_type=%s doc_id=%s user=%s", job.ID, docType, docID, identity.UserID)
	}
	return job, nil
}

// GetJobFor loads a job and enforces the ownership/admin check. Unknown job
// ids surface as repository.ErrNotFound, access denials as ErrForbidden, so
// the HTTP layer can keep 404 and 403 distinct.
func (s *JobsService) GetJobFor(ctx context.Context, jobID string, identity domain.Identity) (*domain.Job, error) {
	if s.jobCache != nil {
		if job, ok, err := s.jobCache.GetJob(ctx, jobID); err == nil && ok {
			if !identity.CanAccess(job) {
				return nil, ErrForbidden
			}
			return job, nil
		}
	}

	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !identity.CanAccess(job) {
		return nil, ErrForbidden
	}
	s.refreshCache(ctx, job)
	return job, nil
}

// GetJobForDownload bypasses the cache: download gating must see the current
// row state, a stale snapshot could hide a just-finished file or serve 409s.
func (s *JobsService) GetJobForDownload(ctx context.Context, jobID string, identity domain.Identity) (*domain.Job, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !identity.CanAccess(job) {
		return nil, ErrForbidden
	}
	return job, nil
}

// ListJobsFor returns the caller's jobs; administrators see every job.
func (s *JobsService) ListJobsFor(ctx context.Context, identity domain.Identity) ([]*domain.Job, error) {
	requestedBy := identity.UserID
	if identity.IsAdmin() {
		requestedBy = ""
	}
	return s.repo.ListJobsByRequester(ctx, requestedBy)
}

func (s *JobsService) refreshCache(ctx context.Context, job *domain.Job) {
	if s.jobCache == nil {
		return
	}
	if err := s.jobCache.SetJob(ctx, job); err != nil && s.logger != nil {
		s.logger.Printf("job cache refresh failed job_id=%s err=%v", job.ID, err)
	}
}
