package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/clinicore/pdfjobs/internal/cache"
	"github.com/clinicore/pdfjobs/internal/domain"
	"github.com/clinicore/pdfjobs/internal/renderer"
	"github.com/clinicore/pdfjobs/internal/repository"
	"github.com/clinicore/pdfjobs/internal/storage"
)

// genericFailureMessage is what a failed job stores. The underlying error is
// logged internally and never written to the row, so the status API cannot
// leak internal detail.
const genericFailureMessage = "document rendering failed"

// Worker polls the job store, claims the oldest queued job via a conditional
// update and renders it. One job per tick; cross-process exclusivity rests
// entirely on the claim verdict, there is no lock service or heartbeat.
type Worker struct {
	repo          repository.JobsRepository
	records       repository.RecordsRepository
	renderer      renderer.Renderer
	files         *storage.FileStore
	jobCache      cache.JobCache
	logger        *log.Logger
	pollInterval  time.Duration
	renderTimeout time.Duration

	// tickToken is the single-flight guard: a tick runs only while holding
	// the token, so ticks never overlap within one process.
	tickToken chan struct{}
}

type Config struct {
	PollInterval time.Duration
	// RenderTimeout bounds a single render call. Zero disables the bound.
	RenderTimeout time.Duration
}

func New(
	repo repository.JobsRepository,
	records repository.RecordsRepository,
	pdfRenderer renderer.Renderer,
	files *storage.FileStore,
	jobCache cache.JobCache,
	logger *log.Logger,
	config Config,
) *Worker {
	if config.PollInterval <= 0 {
		config.PollInterval = time.Second
	}
	w := &Worker{
		repo:          repo,
		records:       records,
		renderer:      pdfRenderer,
		files:         files,
		jobCache:      jobCache,
		logger:        logger,
		pollInterval:  config.PollInterval,
		renderTimeout: config.RenderTimeout,
		tickToken:     make(chan struct{}, 1),
	}
	w.tickToken <- struct{}{}
	return w
}

// Start runs the polling loop until the context is cancelled. A failed tick
// fails one job, never the loop.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.RunTick(ctx); err != nil && ctx.Err() == nil {
				if w.logger != nil {
					w.logger.Printf("worker tick error: %v", err)
				}
			}
		}
	}
}

// RunTick claims and processes at most one job. When a previous tick is still
// in flight the call is a no-op.
func (w *Worker) RunTick(ctx context.Context) error {
	select {
	case <-w.tickToken:
	default:
		return nil
	}
	defer func() { w.tickToken <- struct{}{} }()

	jobID, err := w.repo.OldestQueuedID(ctx)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil
		}
		return fmt.Errorf("find queued job: %w", err)
	}

	claimed, err := w.repo.ClaimJob(ctx, jobID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("claim job %s: %w", jobID, err)
	}
	if !claimed {
		// Another worker won the race; the next tick picks a new candidate.
		return nil
	}

	job, err := w.repo.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load claimed job %s: %w", jobID, err)
	}
	w.refreshCache(ctx, job)
	if w.logger != nil {
		w.logger.Printf("job claimed job_id=%s doc_type=%s", job.ID, job.Type)
	}

	w.process(ctx, job)
	return nil
}

// process renders the claimed job and writes the terminal state. Every
// failure is absorbed into the row; processing is asynchronous and has no
// interactive caller to surface errors to.
func (w *Worker) process(ctx context.Context, job *domain.Job) {
	data, err := w.renderJob(ctx, job)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	path, err := w.files.Write(job.ID, data)
	if err != nil {
		w.fail(ctx, job, err)
		return
	}

	finishedAt := time.Now().UTC()
	if err := w.repo.MarkJobDone(ctx, job.ID, path, finishedAt); err != nil {
		if w.logger != nil {
			w.logger.Printf("mark done failed job_id=%s err=%v", job.ID, err)
		}
		return
	}
	job.Status = domain.JobStatusDone
	job.FilePath = path
	job.ErrorMessage = ""
	job.FinishedAt = &finishedAt
	w.refreshCache(ctx, job)

	if w.logger != nil {
		w.logger.Printf("job done job_id=%s bytes=%d", job.ID, len(data))
	}
}

func (w *Worker) renderJob(ctx context.Context, job *domain.Job) ([]byte, error) {
	document, err := w.loadDocument(ctx, job)
	if err != nil {
		return nil, err
	}

	renderCtx := ctx
	if w.renderTimeout > 0 {
		var cancel context.CancelFunc
		renderCtx, cancel = context.WithTimeout(ctx, w.renderTimeout)
		defer cancel()
	}
	data, err := w.renderer.Render(renderCtx, document)
	if err != nil {
		return nil, fmt.Errorf("render %s %s: %w", job.Type, job.DocumentID(), err)
	}
	return data, nil
}

// loadDocument dispatches by job type. A missing referenced entity counts as
// a render failure: the row may have been deleted between submission and claim.
func (w *Worker) loadDocument(ctx context.Context, job *domain.Job) (domain.RenderDocument, error) {
	document := domain.RenderDocument{Type: job.Type}
	switch job.Type {
	case domain.DocumentTypeConsultation:
		consultation, err := w.records.LoadConsultation(ctx, job.ConsultationID)
		if err != nil {
			return document, fmt.Errorf("load consultation %s: %w", job.ConsultationID, err)
		}
		document.Consultation = consultation
	case domain.DocumentTypeCarePlan:
		carePlan, err := w.records.LoadCarePlan(ctx, job.CarePlanID)
		if err != nil {
			return document, fmt.Errorf("load care plan %s: %w", job.CarePlanID, err)
		}
		document.CarePlan = carePlan
	default:
		return document, fmt.Errorf("unsupported document type: %s", job.Type)
	}
	return document, nil
}

func (w *Worker) fail(ctx context.Context, job *domain.Job, cause error) {
	if w.logger != nil {
		w.logger.Printf("job failed job_id=%s err=%v", job.ID, cause)
	}
	finishedAt := time.Now().UTC()
	if err := w.repo.MarkJobFailed(ctx, job.ID, genericFailureMessage, finishedAt); err != nil {
		if w.logger != nil {
			w.logger.Printf("mark failed failed job_id=%s err=%v", job.ID, err)
		}
		return
	}
	job.Status = domain.JobStatusFailed
	job.ErrorMessage = genericFailureMessage
	job.FinishedAt = &finishedAt
	w.refreshCache(ctx, job)
}

func (w *Worker) refreshCache(ctx context.Context, job *domain.Job) {
	if w.jobCache == nil {
		return
	}
	if err := w.jobCache.SetJob(ctx, job); err != nil && w.logger != nil {
		w.logger.Printf("job cache refresh failed job_id=%s err=%v", job.ID, err)
	}
}
