package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clinicore/pdfjobs/internal/domain"
)

func TestParseIdentityRegistry(t *testing.T) {
	registry := ParseIdentityRegistry(" tok-1:u1:clinician , tok-2:root:admin ,broken,also:broken, :x:y ")

	identity, ok := registry.Resolve("tok-1")
	if !ok || identity.UserID != "u1" || identity.Role != domain.RoleClinician {
		t.Fatalf("unexpected identity for tok-1: %+v ok=%v", identity, ok)
	}
	identity, ok = registry.Resolve("tok-2")
	if !ok || !identity.IsAdmin() {
		t.Fatalf("expected admin for tok-2, got %+v ok=%v", identity, ok)
	}
	if _, ok := registry.Resolve("broken"); ok {
		t.Fatalf("malformed entries must be skipped")
	}
	if registry.Empty() {
		t.Fatalf("registry should carry two identities")
	}
}

func TestAuthAttachesIdentity(t *testing.T) {
	registry := ParseIdentityRegistry("tok-1:u1:clinician")

	var seen domain.Identity
	handler := Auth(registry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/pdf/jobs", nil)
	request.Header.Set("Authorization", "Bearer tok-1")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", recorder.Code)
	}
	if seen.UserID != "u1" || seen.Role != domain.RoleClinician {
		t.Fatalf("identity not attached: %+v", seen)
	}
}

func TestAuthRejectsUnknownAndMissingTokens(t *testing.T) {
	registry := ParseIdentityRegistry("tok-1:u1:clinician")
	handler := Auth(registry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run for rejected requests")
	}))

	for _, header := range []string{"", "Bearer wrong", "Basic tok-1", "Bearer "} {
		request := httptest.NewRequest(http.MethodGet, "/v1/pdf/jobs", nil)
		if header != "" {
			request.Header.Set("Authorization", header)
		}
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, recorder.Code)
		}
	}
}

func TestAuthSkipsNonAPIPaths(t *testing.T) {
	registry := ParseIdentityRegistry("tok-1:u1:clinician")
	handler := Auth(registry)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Fatalf("health must bypass auth, got %d", recorder.Code)
	}
}

func TestAuthEmptyRegistryUsesDevelopmentIdentity(t *testing.T) {
	var seen domain.Identity
	handler := Auth(ParseIdentityRegistry(""))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetIdentity(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/pdf/jobs", nil)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK || !seen.IsAdmin() {
		t.Fatalf("expected development admin identity, got %+v code=%d", seen, recorder.Code)
	}
}
