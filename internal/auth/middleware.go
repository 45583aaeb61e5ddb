package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/brianhealey/hadash/internal/models"
)

// KeyHeader carries the API key. The api-key query parameter is accepted too.
const (
	KeyHeader        = "Api-Key"
	apiKeyQueryParam = "api-key"
)

// Middleware returns an http.Handler middleware that enforces authentication.
// In open mode (no keys configured), all requests pass through.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.IsOpenMode() {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(KeyHeader)
		if key == "" {
			key = r.URL.Query().Get(apiKeyQueryParam)
		}
		if name, ok := s.VerifyKey(key); ok {
			slog.Debug("auth: client authenticated", "client", name)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(models.ErrUnauthorized.Status)
		_ = json.NewEncoder(w).Encode(models.ErrUnauthorized)
	})
}
