package domain

import "time"

// Consultation carries the associations the renderer needs to compose a
// consultation document. The full clinical schema lives outside this service.
type Consultation struct {
	ID            string
	PatientName   string
	ClinicianName string
	OccurredAt    time.Time
	Summary       string
	Notes         []string
}

// CarePlan is the renderer-facing projection of a care plan.
type CarePlan struct {
	ID            string
	PatientName   string
	ClinicianName string
	CreatedAt     time.Time
	Goals         []string
	Actions       []string
}

// RenderDocument is the payload handed to the renderer, independent of which
// clinical entity it was loaded from.
type RenderDocument struct {
	Type         DocumentType
	Consultation *Consultation
	CarePlan     *CarePlan
}
