package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/onnwee/chatbot/command"
)

// maxBodyBytes bounds admin API request bodies.
const maxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", slog.Any("err", err), slog.String("component", "http"))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps the error taxonomy onto HTTP statuses. Storage and
// unknown failures are logged and reported without detail.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch command.Classify(err) {
	case command.ClassNotFound:
		writeError(w, http.StatusNotFound, "not found")
	case command.ClassDuplicate:
		writeError(w, http.StatusConflict, err.Error())
	case command.ClassInvalid:
		writeError(w, http.StatusBadRequest, err.Error())
	case command.ClassUnauthorized:
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		slog.Error("admin api request failed", slog.String("path", r.URL.Path), slog.Any("err", err),
			slog.String("component", "http"))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads one JSON object, rejecting unknown fields and oversized bodies.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %v", command.ErrUsage, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: body must contain a single JSON object", command.ErrUsage)
	}
	return nil
}

// parseSource validates a source value from a query parameter or body.
func parseSource(v string) (command.Source, error) {
	if v == "" {
		return "", fmt.Errorf("%w: source is required", command.ErrUsage)
	}
	s, err := command.ParseSource(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", command.ErrUsage, err)
	}
	return s, nil
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
