package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clickfit/clickfit/internal/ctxkeys"
	"github.com/clickfit/clickfit/internal/repository"
	"github.com/clickfit/clickfit/internal/service"
	"github.com/clickfit/clickfit/internal/storage"
	"github.com/clickfit/clickfit/internal/validation"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Success: false, Error: message, Code: code})
}

// writeServiceError maps a service or adapter error onto a status code.
// Storage failures carry the underlying message; fallback covers any other
// internal failure.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status, code, message := classify(err, fallback)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", ctxkeys.RequestID(r.Context()),
		)
	}
	writeError(w, status, code, message)
}

func classify(err error, fallback string) (status int, code, message string) {
	var uploadErr *validation.UploadError
	switch {
	case errors.As(err, &uploadErr):
		if errors.Is(uploadErr.Kind, validation.ErrPayloadTooLarge) {
			return http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", uploadErr.Error()
		}
		return http.StatusBadRequest, "INVALID_FILE_TYPE", uploadErr.Error()
	case errors.Is(err, service.ErrNoFileProvided):
		return http.StatusBadRequest, "NO_FILE", "No file uploaded"
	case errors.Is(err, service.ErrTooManyFiles):
		return http.StatusBadRequest, "TOO_MANY_FILES", "Too many files."
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "File not found"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT", strings.TrimPrefix(err.Error(), service.ErrInvalidInput.Error()+": ")
	case errors.Is(err, repository.ErrDuplicateEmail):
		return http.StatusBadRequest, "DUPLICATE_EMAIL", "Email already exists"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "USER_NOT_FOUND", "User not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "TIMEOUT", "Request timed out"
	case errors.Is(err, storage.ErrIO), errors.Is(err, storage.ErrRemote):
		return http.StatusInternalServerError, "STORAGE_ERROR", err.Error()
	default:
		return http.StatusInternalServerError, "INTERNAL", fallback
	}
}

// NotFound is the JSON fallback for unmatched routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found")
}
