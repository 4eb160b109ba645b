package domain

import "time"

type DocumentType string

const (
	DocumentTypeConsultation DocumentType = "consultation"
	DocumentTypeCarePlan     DocumentType = "care_plan"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition is possible for the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusDone || s == JobStatusFailed
}

// Job is one request to render a clinical document into a PDF. The row in the
// job store is the single source of truth for its state; exactly one of
// ConsultationID/CarePlanID is set, matching Type.
type Job struct {
	ID             string
	Type           DocumentType
	ConsultationID string
	CarePlanID     string
	RequestedBy    string
	Status         JobStatus
	CreatedAt      time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	FilePath       string
	ErrorMessage   string
}

// DocumentID returns the referenced clinical entity id for the job's type.
func (j *Job) DocumentID() string {
	if j.Type == DocumentTypeCarePlan {
		return j.CarePlanID
	}
	return j.ConsultationID
}

// ParseDocumentType maps the URL segment used by the submission endpoint to a
// document type. The care plan segment uses a dash, the stored value an underscore.
func ParseDocumentType(segment string) (DocumentType, bool) {
	switch segment {
	case "consultation":
		return DocumentTypeConsultation, true
	case "care-plan":
		return DocumentTypeCarePlan, true
	default:
		return "", false
	}
}

// URLSegment is the inverse of ParseDocumentType.
func (t DocumentType) URLSegment() string {
	if t == DocumentTypeCarePlan {
		return "care-plan"
	}
	return string(t)
}
