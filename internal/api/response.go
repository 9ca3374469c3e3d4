package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// Request body caps. Chat carries free text and gets a tighter cap than
// the general JSON endpoints.
const (
	maxBodyBytes     = 1 << 20 // 1 MB
	maxChatBodyBytes = 64 << 10
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code. The body is
// encoded into a buffer first so headers are only sent after successful
// encoding and a proper 500 can still be returned on failure.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	buf := new(bytes.Buffer)
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		// Client disconnects are common and expected.
		slog.Debug("failed to write response body", "error", err)
	}
}

// WriteError writes the JSON error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string, logger *slog.Logger) {
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "code", code)
	}
	WriteJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// decodeJSON reads a JSON request body into dst with a size cap. Oversized
// bodies map to 413, everything else malformed to 400; the returned error
// has already been written to w.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, logger *slog.Logger) error {
	return decodeBody(w, r, dst, maxBytes, false, logger)
}

// decodeOptionalJSON is decodeJSON for endpoints where an empty body is
// valid and leaves dst at its zero value.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, logger *slog.Logger) error {
	return decodeBody(w, r, dst, maxBytes, true, logger)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, optional bool, logger *slog.Logger) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large",
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit), logger)
			return err
		}
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON for this endpoint", logger)
		return err
	}
	// A second value means trailing garbage.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		WriteError(w, http.StatusBadRequest, "invalid_body", "request body must contain a single JSON object", logger)
		return fmt.Errorf("trailing data after JSON body")
	}
	return nil
}
