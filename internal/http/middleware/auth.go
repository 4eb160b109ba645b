package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/clinicore/pdfjobs/internal/domain"
)

const identityContextKey contextKey = "identity"

// IdentityRegistry resolves bearer tokens to caller identities. Tokens come
// from configuration; the records application issues them to its sessions.
type IdentityRegistry struct {
	byToken map[string]domain.Identity
}

// ParseIdentityRegistry reads "token:userID:role" triples from a
// comma-separated configuration value.
func ParseIdentityRegistry(raw string) *IdentityRegistry {
	registry := &IdentityRegistry{byToken: make(map[string]domain.Identity)}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			continue
		}
		token := strings.TrimSpace(parts[0])
		userID := strings.TrimSpace(parts[1])
		role := strings.TrimSpace(parts[2])
		if token == "" || userID == "" {
			continue
		}
		registry.byToken[token] = domain.Identity{UserID: userID, Role: role}
	}
	return registry
}

func (r *IdentityRegistry) Resolve(token string) (domain.Identity, bool) {
	identity, ok := r.byToken[token]
	return identity, ok
}

func (r *IdentityRegistry) Empty() bool {
	return len(r.byToken) == 0
}

// Auth authenticates /v1/ requests and attaches the resolved identity to the
// request context. With an empty registry every caller becomes a development
// admin, mirroring the unauthenticated local mode of the rest of the stack.
func Auth(registry *IdentityRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			if registry == nil || registry.Empty() {
				identity := domain.Identity{UserID: "dev", Role: domain.RoleAdmin}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
				return
			}

			authorization := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authorization, prefix) {
				writeUnauthorized(w, r)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))
			identity, ok := registry.Resolve(token)
			if !ok {
				writeUnauthorized(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

func GetIdentity(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(domain.Identity)
	return identity, ok
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"unauthorized","message":"authentication required"},"request_id":"` + GetRequestID(r.Context()) + `"}`))
}
