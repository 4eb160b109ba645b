package renderer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/clinicore/pdfjobs/internal/domain"
)

func consultationDocument() domain.RenderDocument {
	return domain.RenderDocument{
		Type: domain.DocumentTypeConsultation,
		Consultation: &domain.Consultation{
			ID:          "c1",
			PatientName: "Ada Example",
			OccurredAt:  time.Now().UTC(),
		},
	}
}

func TestHTTPRendererReturnsPDFBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/render" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("unexpected content type %q", got)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("%PDF-1.7 rendered"))
	}))
	defer server.Close()

	pdfRenderer := NewHTTPRenderer(HTTPRendererConfig{BaseURL: server.URL})
	data, err := pdfRenderer.Render(context.Background(), consultationDocument())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if string(data) != "%PDF-1.7 rendered" {
		t.Fatalf("unexpected bytes %q", data)
	}
}

func TestHTTPRendererRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("pdf"))
	}))
	defer server.Close()

	pdfRenderer := NewHTTPRenderer(HTTPRendererConfig{BaseURL: server.URL, MaxRetries: 3})
	if _, err := pdfRenderer.Render(context.Background(), consultationDocument()); err != nil {
		t.Fatalf("render after retries: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestHTTPRendererDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "bad document", http.StatusBadRequest)
	}))
	defer server.Close()

	pdfRenderer := NewHTTPRenderer(HTTPRendererConfig{BaseURL: server.URL, MaxRetries: 3})
	_, err := pdfRenderer.Render(context.Background(), consultationDocument())
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("client errors must not be retried, got %d attempts", attempts)
	}
}

func TestHTTPRendererRejectsEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pdfRenderer := NewHTTPRenderer(HTTPRendererConfig{BaseURL: server.URL, MaxRetries: 1})
	if _, err := pdfRenderer.Render(context.Background(), consultationDocument()); err == nil {
		t.Fatalf("expected error for empty render response")
	}
}
