package api

import (
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/wingmanlabs/wingman/internal/composer"
)

type messageRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// handleMessage runs one main-app turn. Clients send JSON for plain text
// and multipart when a screenshot rides along; with a screenshot the turn
// becomes an image analysis.
func handleMessage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isMultipart(r) {
			r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
			defer r.Body.Close()

			var req messageRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
				return
			}
			res, err := deps.Turns.HandleMessage(r.Context(), req.UserID, req.Message)
			if err != nil {
				turnError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}
		userID := r.FormValue("userId")
		message := r.FormValue("message")

		path, ok, err := saveUpload(deps, r)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "storing image: %v", err)
			return
		}
		if !ok {
			res, err := deps.Turns.HandleMessage(r.Context(), userID, message)
			if err != nil {
				turnError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
			return
		}

		res, err := deps.Turns.HandleImage(r.Context(), userID, path, composer.ImageContext{Help: message}, false)
		// The screenshot is only read for this turn; the retention worker
		// is just a backstop for files orphaned by crashes.
		if rmErr := deps.Uploads.Remove(path); rmErr != nil {
			slog.Warn("removing analyzed screenshot", "path", path, "error", rmErr)
		}
		if err != nil {
			turnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

type suggestRequest struct {
	UserID  string `json:"userId"`
	Context string `json:"context"`
	Who     string `json:"conversationType"`
}

func handleKeyboardSuggest(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req suggestRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		res, err := deps.Turns.HandleSuggest(r.Context(), req.UserID, req.Context, req.Who)
		if err != nil {
			turnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleKeyboardAnalyzeImage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
			return
		}

		userID := r.FormValue("userId")
		ic := composer.ImageContext{
			Who:  r.FormValue("contextWho"),
			Help: r.FormValue("contextHelp"),
		}

		path, ok, err := saveUpload(deps, r)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "storing image: %v", err)
			return
		}
		if !ok {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "image is required")
			return
		}

		res, err := deps.Turns.HandleImage(r.Context(), userID, path, ic, true)
		if rmErr := deps.Uploads.Remove(path); rmErr != nil {
			slog.Warn("removing analyzed screenshot", "path", path, "error", rmErr)
		}
		if err != nil {
			turnError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// saveUpload stores the "image" form file if present. ok reports whether a
// file was attached at all.
func saveUpload(deps Deps, r *http.Request) (path string, ok bool, err error) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	defer file.Close()

	path, err = deps.Uploads.Save(file, header.Filename)
	if err != nil {
		return "", false, err
	}
	return path, true, nil
}

func isMultipart(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(ct, "multipart/")
}
