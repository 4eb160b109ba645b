package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/clinicore/pdfjobs/internal/domain"
	"github.com/clinicore/pdfjobs/internal/repository"
	"github.com/clinicore/pdfjobs/internal/service"
	"github.com/clinicore/pdfjobs/internal/storage"
)

// jobProjection is the client-facing view of a job. RequestedBy stays
// internal and is never serialized.
type jobProjection struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	DocumentID   string     `json:"document_id"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	ErrorMessage string     `json:"error,omitempty"`
}

func projectJob(job *domain.Job) jobProjection {
	return jobProjection{
		ID:           job.ID,
		Type:         job.Type.URLSegment(),
		DocumentID:   job.DocumentID(),
		Status:       string(job.Status),
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
		ErrorMessage: job.ErrorMessage,
	}
}

// PDF dispatches everything under /v1/pdf/:
//
//	POST /v1/pdf/{consultation|care-plan}/{documentId}
//	GET  /v1/pdf/jobs
//	GET  /v1/pdf/jobs/{jobId}
//	GET  /v1/pdf/jobs/{jobId}/download
func (api *API) PDF(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/pdf/")
	segments := strings.Split(strings.Trim(rest, "/"), "/")

	if len(segments) >= 1 && segments[0] == "jobs" {
		switch {
		case len(segments) == 1 && r.Method == http.MethodGet:
			api.listJobs(w, r)
		case len(segments) == 2 && r.Method == http.MethodGet:
			api.jobStatus(w, r, segments[1])
		case len(segments) == 3 && segments[2] == "download" && r.Method == http.MethodGet:
			api.downloadJob(w, r, segments[1])
		case r.Method != http.MethodGet:
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		default:
			writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
		}
		return
	}

	if len(segments) == 2 {
		if r.Method != http.MethodPost {
			writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
			return
		}
		api.submitJob(w, r, segments[0], segments[1])
		return
	}

	writeError(w, r, http.StatusNotFound, "not_found", "unknown route")
}

func (api *API) submitJob(w http.ResponseWriter, r *http.Request, typeSegment, docID string) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	docType, ok := domain.ParseDocumentType(typeSegment)
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown document type")
		return
	}
	docID = strings.TrimSpace(docID)
	if docID == "" {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "document id is required")
		return
	}

	job, err := api.jobsService.Submit(r.Context(), docType, docID, identity)
	if err != nil {
		if errors.Is(err, service.ErrDocumentNotFound) {
			writeError(w, r, http.StatusNotFound, "not_found", "referenced document not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job": map[string]any{
			"id":         job.ID,
			"status":     string(job.Status),
			"created_at": job.CreatedAt,
		},
	})
}

func (api *API) listJobs(w http.ResponseWriter, r *http.Request) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	jobs, err := api.jobsService.ListJobsFor(r.Context(), identity)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to list jobs")
		return
	}

	items := make([]jobProjection, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, projectJob(job))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": items})
}

func (api *API) jobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	job, err := api.jobsService.GetJobFor(r.Context(), jobID, identity)
	if err != nil {
		writeJobAccessError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projectJob(job))
}

func (api *API) downloadJob(w http.ResponseWriter, r *http.Request, jobID string) {
	identity, ok := callerIdentity(w, r)
	if !ok {
		return
	}

	job, err := api.jobsService.GetJobForDownload(r.Context(), jobID, identity)
	if err != nil {
		writeJobAccessError(w, r, err)
		return
	}

	// "Not ready yet" is an expected client outcome, not a server error.
	if job.Status != domain.JobStatusDone || job.FilePath == "" {
		writeError(w, r, http.StatusConflict, "not_ready", "document is not ready for download")
		return
	}

	resolved, err := api.files.Resolve(job.FilePath)
	if err != nil {
		writeError(w, r, http.StatusForbidden, "forbidden", "document file is not accessible")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+storage.DownloadFilename(job)+`"`)
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, resolved)
}

// writeJobAccessError keeps 404 and 403 distinct: not-found means the job id
// does not exist, forbidden means it exists but the caller may not see it.
func writeJobAccessError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "forbidden", "access to job denied")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job")
	}
}
