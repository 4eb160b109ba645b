package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clinicore/pdfjobs/internal/domain"
)

type HTTPRendererConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

// HTTPRenderer calls a headless-browser render service over HTTP. The service
// receives the document projection and responds with PDF bytes.
type HTTPRenderer struct {
	baseURL    string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func NewHTTPRenderer(config HTTPRendererConfig) *HTTPRenderer {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &HTTPRenderer{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		timeout:    config.Timeout,
		maxRetries: config.MaxRetries,
		httpClient: config.HTTPClient,
	}
}

func (r *HTTPRenderer) Render(ctx context.Context, document domain.RenderDocument) ([]byte, error) {
	payload := map[string]any{
		"document_type": string(document.Type),
	}
	switch document.Type {
	case domain.DocumentTypeConsultation:
		payload["consultation"] = document.Consultation
	case domain.DocumentTypeCarePlan:
		payload["care_plan"] = document.CarePlan
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal render payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		data, callErr := r.callRenderService(ctx, encoded)
		if callErr == nil {
			return data, nil
		}
		lastErr = callErr

		if !isRetryableRenderError(callErr) || attempt == r.maxRetries {
			break
		}

		backoff := time.Duration(500*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrRenderFailed, lastErr)
}

func (r *HTTPRenderer) callRenderService(ctx context.Context, payload []byte) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(callCtx, http.MethodPost, r.baseURL+"/render", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "application/pdf")

	response, err := r.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("call render service: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(response.Body, 2048))
		return nil, &renderStatusError{
			statusCode: response.StatusCode,
			detail:     strings.TrimSpace(string(body)),
		}
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read render response: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("render service returned empty body")
	}
	return data, nil
}

type renderStatusError struct {
	statusCode int
	detail     string
}

func (e *renderStatusError) Error() string {
	if e.detail == "" {
		return fmt.Sprintf("render service status %d", e.statusCode)
	}
	return fmt.Sprintf("render service status %d: %s", e.statusCode, e.detail)
}

func isRetryableRenderError(err error) bool {
	var statusErr *renderStatusError
	if errors.As(err, &statusErr) {
		return statusErr.statusCode == http.StatusTooManyRequests || statusErr.statusCode >= 500
	}
	// Transport-level errors (connection refused, timeout) get a retry.
	return true
}
