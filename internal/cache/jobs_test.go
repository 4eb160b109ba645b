package cache

import (
	"context"
	"testing"
	"time"

	"github.com/clinicore/pdfjobs/internal/domain"
)

func TestMemoryJobCacheRoundTrip(t *testing.T) {
	jobCache := NewMemoryJobCache(time.Minute)
	ctx := context.Background()

	if _, ok, err := jobCache.GetJob(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	job := &domain.Job{
		ID:          "job-1",
		Type:        domain.DocumentTypeConsultation,
		RequestedBy: "u1",
		Status:      domain.JobStatusQueued,
		CreatedAt:   time.Now().UTC(),
	}
	if err := jobCache.SetJob(ctx, job); err != nil {
		t.Fatalf("set: %v", err)
	}

	cached, ok, err := jobCache.GetJob(ctx, "job-1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if cached.Status != domain.JobStatusQueued || cached.RequestedBy != "u1" {
		t.Fatalf("unexpected cached snapshot: %+v", cached)
	}

	// The snapshot must be isolated from later caller mutation.
	cached.Status = domain.JobStatusFailed
	again, _, _ := jobCache.GetJob(ctx, "job-1")
	if again.Status != domain.JobStatusQueued {
		t.Fatalf("cache entry mutated through returned pointer")
	}
}

func TestMemoryJobCacheExpires(t *testing.T) {
	jobCache := NewMemoryJobCache(5 * time.Millisecond)
	ctx := context.Background()

	if err := jobCache.SetJob(ctx, &domain.Job{ID: "job-1", Status: domain.JobStatusQueued}); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok, _ := jobCache.GetJob(ctx, "job-1"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}
