// Package api exposes the assist pipeline over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/storage"
	"github.com/wingmanlabs/wingman/internal/turn"
	"github.com/wingmanlabs/wingman/internal/uploads"
)

const (
	maxRequestBodySize = 1 << 20  // 1MB
	maxUploadSize      = 10 << 20 // 10MB
)

// Deps holds everything the HTTP layer needs.
type Deps struct {
	Store    *storage.Store
	Profiles *profile.Manager
	Turns    *turn.Handler
	Uploads  *uploads.Store
	// AdminToken guards the /admin routes. Empty disables them.
	AdminToken string
}

// NewHandler returns the public application handler.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/api/ping", handleHealth)

	r.Post("/api/onboard", handleOnboard(deps))
	r.Get("/api/profile/{userID}", handleGetProfile(deps))
	r.Post("/api/profile", handlePatchProfile(deps))
	r.Post("/api/profile/settings", handlePatchProfile(deps))
	r.Delete("/api/profile/{userID}", handleDeleteProfile(deps))

	r.Get("/api/chat-history/{userID}", handleGetChatHistory(deps))
	r.Post("/api/chat-history/{userID}", handleAppendChatHistory(deps))
	r.Delete("/api/chat-history/{userID}", handleClearChatHistory(deps))

	r.Post("/api/message", handleMessage(deps))
	r.Post("/api/keyboard/suggest", handleKeyboardSuggest(deps))
	r.Post("/api/keyboard/analyze-image", handleKeyboardAnalyzeImage(deps))

	if deps.AdminToken != "" {
		r.Route("/admin", func(ar chi.Router) {
			ar.Use(BearerAuth(deps.AdminToken))
			ar.Get("/interactions", handleListInteractions(deps))
			ar.Get("/interactions/{id}", handleGetInteraction(deps))
		})
	}

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// turnError maps pipeline errors onto HTTP status codes.
func turnError(w http.ResponseWriter, err error) {
	if errors.Is(err, turn.ErrInvalidInput) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}
	httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
}
