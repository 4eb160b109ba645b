package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/pdfjobs/internal/domain"
)

// PostgresRecordsRepository reads the minimal clinical columns the renderer
// needs. The tables belong to the records application; this service never
// writes them.
type PostgresRecordsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRecordsRepository(pool *pgxpool.Pool) *PostgresRecordsRepository {
	return &PostgresRecordsRepository{pool: pool}
}

func (r *PostgresRecordsRepository) DocumentExists(ctx context.Context, docType domain.DocumentType, docID string) (bool, error) {
	var table string
	switch docType {
	case domain.DocumentTypeConsultation:
		table = "consultations"
	case domain.DocumentTypeCarePlan:
		table = "care_plans"
	default:
		return false, nil
	}

	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table)
	if err := r.pool.QueryRow(ctx, query, docID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check %s exists: %w", table, err)
	}
	return exists, nil
}

func (r *PostgresRecordsRepository) LoadConsultation(ctx context.Context, consultationID string) (*domain.Consultation, error) {
	var consultation domain.Consultation
	err := r.pool.QueryRow(ctx, `
		SELECT c.id, p.full_name, u.full_name, c.occurred_at, c.summary
		FROM consultations c
		JOIN patients p ON p.id = c.patient_id
		JOIN users u ON u.id = c.clinician_id
		WHERE c.id = $1
	`, consultationID).Scan(
		&consultation.ID,
		&consultation.PatientName,
		&consultation.ClinicianName,
		&consultation.OccurredAt,
		&consultation.Summary,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query consultation: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT body
		FROM consultation_notes
		WHERE consultation_id = $1
		ORDER BY created_at ASC
	`, consultationID)
	if err != nil {
		return nil, fmt.Errorf("query consultation notes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var note string
		if err := rows.Scan(&note); err != nil {
			return nil, fmt.Errorf("scan consultation note: %w", err)
		}
		consultation.Notes = append(consultation.Notes, note)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate consultation notes: %w", rows.Err())
	}
	return &consultation, nil
}

func (r *PostgresRecordsRepository) LoadCarePlan(ctx context.Context, carePlanID string) (*domain.CarePlan, error) {
	var carePlan domain.CarePlan
	err := r.pool.QueryRow(ctx, `
		SELECT cp.id, p.full_name, u.full_name, cp.created_at
		FROM care_plans cp
		JOIN patients p ON p.id = cp.patient_id
		JOIN users u ON u.id = cp.clinician_id
		WHERE cp.id = $1
	`, carePlanID).Scan(
		&carePlan.ID,
		&carePlan.PatientName,
		&carePlan.ClinicianName,
		&carePlan.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query care plan: %w", err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT kind, body
		FROM care_plan_items
		WHERE care_plan_id = $1
		ORDER BY position ASC
	`, carePlanID)
	if err != nil {
		return nil, fmt.Errorf("query care plan items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind, body string
		if err := rows.Scan(&kind, &body); err != nil {
			return nil, fmt.Errorf("scan care plan item: %w", err)
		}
		if kind == "goal" {
			carePlan.Goals = append(carePlan.Goals, body)
		} else {
			carePlan.Actions = append(carePlan.Actions, body)
		}
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate care plan items: %w", rows.Err())
	}
	return &carePlan, nil
}
