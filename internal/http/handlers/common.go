package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/clinicore/pdfjobs/internal/domain"
	"github.com/clinicore/pdfjobs/internal/http/middleware"
	"github.com/clinicore/pdfjobs/internal/service"
	"github.com/clinicore/pdfjobs/internal/storage"
)

type API struct {
	jobsService *service.JobsService
	files       *storage.FileStore
}

func NewAPI(jobsService *service.JobsService, files *storage.FileStore) *API {
	return &API{
		jobsService: jobsService,
		files:       files,
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func callerIdentity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
		return domain.Identity{}, false
	}
	return identity, true
}
