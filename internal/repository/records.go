package repository

import (
	"context"
	"sync"

	"github.com/clinicore/pdfjobs/internal/domain"
)

// RecordsRepository is the boundary to the clinical schema. The job service
// only needs existence checks at submission time and the renderer-facing
// projections when a worker processes a claimed job.
type RecordsRepository interface {
	DocumentExists(ctx context.Context, docType domain.DocumentType, docID string) (bool, error)
	LoadConsultation(ctx context.Context, consultationID string) (*domain.Consultation, error)
	LoadCarePlan(ctx context.Context, carePlanID string) (*domain.CarePlan, error)
}

// MemoryRecordsRepository serves seeded records for local development and tests.
type MemoryRecordsRepository struct {
	mu            sync.RWMutex
	consultations map[string]*domain.Consultation
	carePlans     map[string]*domain.CarePlan
}

func NewMemoryRecordsRepository() *MemoryRecordsRepository {
	return &MemoryRecordsRepository{
		consultations: make(map[string]*domain.Consultation),
		carePlans:     make(map[string]*domain.CarePlan),
	}
}

func (r *MemoryRecordsRepository) SeedConsultation(consultation *domain.Consultation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.consultations[consultation.ID] = consultation
}

func (r *MemoryRecordsRepository) SeedCarePlan(carePlan *domain.CarePlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carePlans[carePlan.ID] = carePlan
}

func (r *MemoryRecordsRepository) DocumentExists(_ context.Context, docType domain.DocumentType, docID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch docType {
	case domain.DocumentTypeConsultation:
		_, ok := r.consultations[docID]
		return ok, nil
	case domain.DocumentTypeCarePlan:
		_, ok := r.carePlans[docID]
		return ok, nil
	default:
		return false, nil
	}
}

func (r *MemoryRecordsRepository) LoadConsultation(_ context.Context, consultationID string) (*domain.Consultation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	consultation, ok := r.consultations[consultationID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *consultation
	clone.Notes = append([]string(nil), consultation.Notes...)
	return &clone, nil
}

func (r *MemoryRecordsRepository) LoadCarePlan(_ context.Context, carePlanID string) (*domain.CarePlan, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	carePlan, ok := r.carePlans[carePlanID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *carePlan
	clone.Goals = append([]string(nil), carePlan.Goals...)
	clone.Actions = append([]string(nil), carePlan.Actions...)
	return &clone, nil
}
