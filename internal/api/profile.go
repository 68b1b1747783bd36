package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wingmanlabs/wingman/internal/profile"
	"github.com/wingmanlabs/wingman/internal/storage"
)

// onboardRequest seeds a new profile and starts the trial clock.
type onboardRequest struct {
	profile.Patch
	StartTrial bool `json:"startTrial"`
}

func handleOnboard(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req onboardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := validatePatch(req.Patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if req.StartTrial && req.TrialStartedAt == nil {
			now := time.Now()
			req.TrialStartedAt = &now
		}

		userID, err := deps.Profiles.Onboard(req.Patch)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "creating profile: %v", err)
			return
		}

		p, err := deps.Profiles.Get(userID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, profileResponse(p))
	}
}

func handleGetProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(chi.URLParam(r, "userID"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse(p))
	}
}

// patchRequest carries the userId alongside the fields to change, matching
// the clients that POST their whole settings screen.
type patchRequest struct {
	UserID string `json:"userId"`
	profile.Patch
}

func handlePatchProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req patchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.UserID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "userId is required")
			return
		}
		if err := validatePatch(req.Patch); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}

		if err := deps.Profiles.Apply(req.UserID, req.Patch); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving profile: %v", err)
			return
		}

		p, err := deps.Profiles.Get(req.UserID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, profileResponse(p))
	}
}

func handleDeleteProfile(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Profiles.Reset(chi.URLParam(r, "userID")); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found_error", "profile not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "deleting profile: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
	}
}

func handleGetChatHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Profiles.Get(chi.URLParam(r, "userID"))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading chat history: %v", err)
			return
		}
		history := p.ChatHistory
		if history == nil {
			history = []profile.ChatEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": history})
	}
}

type chatEntryRequest struct {
	Text   string `json:"text"`
	IsUser bool   `json:"isUser"`
}

func handleAppendChatHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req chatEntryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "text is required")
			return
		}

		userID := chi.URLParam(r, "userID")
		if err := deps.Profiles.AppendChatEntry(userID, req.Text, req.IsUser); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "appending chat entry: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"saved": true})
	}
}

func handleClearChatHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Profiles.ClearChat(chi.URLParam(r, "userID")); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "clearing chat history: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
	}
}

// profileResponse decorates the profile with the derived trial fields the
// clients poll for.
func profileResponse(p profile.Profile) map[string]any {
	now := time.Now()
	return map[string]any{
		"profile":       p,
		"trialDaysLeft": p.TrialDaysLeft(now),
		"trialExpired":  p.TrialExpired(now),
	}
}

// validatePatch rejects values apply() would otherwise silently normalize
// into surprises.
func validatePatch(patch profile.Patch) error {
	for _, v := range []*int{patch.MessageLength, patch.EmojiUsage, patch.Flirtiness} {
		if v != nil && (*v < 1 || *v > 3) {
			return errors.New("slider values must be between 1 and 3")
		}
	}
	for k := range patch.DeepAnswers {
		if !slices.Contains(profile.DeepAnswerKeys, k) {
			return errors.New("unknown deep answer key: " + k)
		}
	}
	return nil
}
