package worker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"testing"
	"time"

	"github.com/clinicore/pdfjobs/internal/domain"
	"github.com/clinicore/pdfjobs/internal/repository"
	"github.com/clinicore/pdfjobs/internal/storage"
)

type stubRenderer struct {
	data    []byte
	err     error
	block   chan struct{}
	renders int
}

func (r *stubRenderer) Render(ctx context.Context, _ domain.RenderDocument) ([]byte, error) {
	r.renders++
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

type workerFixture struct {
	repo     *repository.MemoryJobsRepository
	records  *repository.MemoryRecordsRepository
	renderer *stubRenderer
	worker   *Worker
}

func newWorkerFixture(t *testing.T, stub *stubRenderer) *workerFixture {
	t.Helper()

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	repo := repository.NewMemoryJobsRepository()
	records := repository.NewMemoryRecordsRepository()
	records.SeedConsultation(&domain.Consultation{
		ID:            "c1",
		PatientName:   "Ada Example",
		ClinicianName: "Dr. Example",
		OccurredAt:    time.Now().UTC(),
		Summary:       "Routine check",
	})

	logger := log.New(io.Discard, "", 0)
	return &workerFixture{
		repo:     repo,
		records:  records,
		renderer: stub,
		worker:   New(repo, records, stub, files, nil, logger, Config{PollInterval: 10 * time.Millisecond}),
	}
}

func (f *workerFixture) submitConsultation(t *testing.T, jobID, consultationID string, createdAt time.Time) {
	t.Helper()
	err := f.repo.CreateJob(context.Background(), &domain.Job{
		ID:             jobID,
		Type:           domain.DocumentTypeConsultation,
		ConsultationID: consultationID,
		RequestedBy:    "u1",
		Status:         domain.JobStatusQueued,
		CreatedAt:      createdAt,
	})
	if err != nil {
		t.Fatalf("create job: %v", err)
	}
}

func TestRunTickRendersOldestJobToDone(t *testing.T) {
	fixture := newWorkerFixture(t, &stubRenderer{data: []byte("%PDF-1.4 fake")})
	fixture.submitConsultation(t, "job-1", "c1", time.Now().UTC())

	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	job, err := fixture.repo.GetJob(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if job.Status != domain.JobStatusDone {
		t.Fatalf("expected done, got %s (error=%q)", job.Status, job.ErrorMessage)
	}
	if job.FilePath == "" || job.StartedAt == nil || job.FinishedAt == nil {
		t.Fatalf("done job missing fields: %+v", job)
	}

	data, err := os.ReadFile(job.FilePath)
	if err != nil {
		t.Fatalf("read rendered file: %v", err)
	}
	if !bytes.Equal(data, []byte("%PDF-1.4 fake")) {
		t.Fatalf("stored bytes do not match renderer output")
	}
}

func TestRunTickProcessesOneJobPerTick(t *testing.T) {
	fixture := newWorkerFixture(t, &stubRenderer{data: []byte("pdf")})
	base := time.Now().UTC()
	fixture.submitConsultation(t, "job-1", "c1", base)
	fixture.submitConsultation(t, "job-2", "c1", base.Add(time.Second))

	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	first, _ := fixture.repo.GetJob(context.Background(), "job-1")
	second, _ := fixture.repo.GetJob(context.Background(), "job-2")
	if first.Status != domain.JobStatusDone {
		t.Fatalf("expected oldest job processed first, got %s", first.Status)
	}
	if second.Status != domain.JobStatusQueued {
		t.Fatalf("expected newer job untouched after one tick, got %s", second.Status)
	}

	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("second tick: %v", err)
	}
	second, _ = fixture.repo.GetJob(context.Background(), "job-2")
	if second.Status != domain.JobStatusDone {
		t.Fatalf("expected second tick to process remaining job, got %s", second.Status)
	}
}

func TestRunTickAbsorbsRenderFailure(t *testing.T) {
	fixture := newWorkerFixture(t, &stubRenderer{err: errors.New("chromium exited with status 137")})
	fixture.submitConsultation(t, "job-1", "c1", time.Now().UTC())

	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("tick should absorb render failures, got %v", err)
	}

	job, _ := fixture.repo.GetJob(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.ErrorMessage != genericFailureMessage {
		t.Fatalf("expected generic stored message, got %q", job.ErrorMessage)
	}
	if job.FilePath != "" {
		t.Fatalf("failed job must not reference a file")
	}
	if job.FinishedAt == nil {
		t.Fatalf("failed job must carry finished_at")
	}
}

func TestRunTickFailsJobWhenDocumentMissing(t *testing.T) {
	fixture := newWorkerFixture(t, &stubRenderer{data: []byte("pdf")})
	fixture.submitConsultation(t, "job-1", "gone", time.Now().UTC())

	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("tick: %v", err)
	}

	job, _ := fixture.repo.GetJob(context.Background(), "job-1")
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed for missing document, got %s", job.Status)
	}
	if fixture.renderer.renders != 0 {
		t.Fatalf("renderer must not run for a missing document")
	}
}

func TestRunTickIsNoOpOnEmptyQueue(t *testing.T) {
	fixture := newWorkerFixture(t, &stubRenderer{data: []byte("pdf")})
	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("tick on empty queue: %v", err)
	}
	if fixture.renderer.renders != 0 {
		t.Fatalf("renderer must not run on empty queue")
	}
}

func TestOverlappingTicksAreSingleFlight(t *testing.T) {
	stub := &stubRenderer{data: []byte("pdf"), block: make(chan struct{})}
	fixture := newWorkerFixture(t, stub)
	base := time.Now().UTC()
	fixture.submitConsultation(t, "job-1", "c1", base)
	fixture.submitConsultation(t, "job-2", "c1", base.Add(time.Second))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- fixture.worker.RunTick(context.Background())
	}()

	// Wait until the first tick holds the claim and blocks in the renderer.
	deadline := time.Now().Add(2 * time.Second)
	for {
		job, _ := fixture.repo.GetJob(context.Background(), "job-1")
		if job.Status == domain.JobStatusProcessing {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first tick never claimed the job")
		}
		time.Sleep(time.Millisecond)
	}

	if err := fixture.worker.RunTick(context.Background()); err != nil {
		t.Fatalf("overlapping tick must be a no-op, got %v", err)
	}
	second, _ := fixture.repo.GetJob(context.Background(), "job-2")
	if second.Status != domain.JobStatusQueued {
		t.Fatalf("overlapping tick must not claim another job, got %s", second.Status)
	}

	close(stub.block)
	if err := <-firstDone; err != nil {
		t.Fatalf("first tick: %v", err)
	}
	first, _ := fixture.repo.GetJob(context.Background(), "job-1")
	if first.Status != domain.JobStatusDone {
		t.Fatalf("expected first job done after release, got %s", first.Status)
	}
}

// racingRepo lets a competing worker claim the candidate between this
// worker's candidate selection and its own conditional update.
type racingRepo struct {
	*repository.MemoryJobsRepository
	raced bool
}

func (r *racingRepo) ClaimJob(ctx context.Context, jobID string, startedAt time.Time) (bool, error) {
	if !r.raced {
		r.raced = true
		if claimed, err := r.MemoryJobsRepository.ClaimJob(ctx, jobID, startedAt); err != nil || !claimed {
			return false, err
		}
	}
	return r.MemoryJobsRepository.ClaimJob(ctx, jobID, startedAt)
}

func TestLostClaimRaceLeavesJobUntouched(t *testing.T) {
	fixture := newWorkerFixture(t, &stubRenderer{data: []byte("pdf")})
	fixture.submitConsultation(t, "job-1", "c1", time.Now().UTC())

	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	racing := &racingRepo{MemoryJobsRepository: fixture.repo}
	loser := New(racing, fixture.records, fixture.renderer, files, nil, log.New(io.Discard, "", 0), Config{})

	if err := loser.RunTick(context.Background()); err != nil {
		t.Fatalf("tick after lost race: %v", err)
	}
	if fixture.renderer.renders != 0 {
		t.Fatalf("loser of the claim race must not render")
	}
	job, _ := fixture.repo.GetJob(context.Background(), "job-1")
	if job.Status != domain.JobStatusProcessing {
		t.Fatalf("job state must stay with the claim winner, got %s", job.Status)
	}
}
