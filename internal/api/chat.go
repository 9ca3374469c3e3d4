package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog/internal/chat"
)

// chatHandler serves the assistant conversation endpoints. The service
// runs the completion pipeline; the store backs conversation management.
type chatHandler struct {
	service *chat.Service
	store   *chat.Store
	logger  *slog.Logger
}

// chatRequest is the body for both the blocking and streaming endpoints.
// ConversationID is nil for the first message of a new conversation.
type chatRequest struct {
	ConversationID *uuid.UUID `json:"conversationId"`
	Message        string     `json:"message"`
}

// send handles POST /api/v1/chat/message.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(w, r, &req, maxChatBodyBytes, h.logger); err != nil {
		return
	}

	exchange, err := h.service.Send(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, exchange)
}

// stream handles POST /api/v1/chat/stream. The reply is delivered as
// Server-Sent Events: "chunk" events carry text as it arrives, a final
// "done" event carries the persisted exchange, and failures after the
// stream has opened become an "error" event since the status line is
// already gone.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	var req chatRequest
	if err := decodeJSON(w, r, &req, maxChatBodyBytes, h.logger); err != nil {
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "response writer does not support streaming", h.logger)
		return
	}

	exchange, err := h.service.Stream(r.Context(), userID, req.ConversationID, req.Message, func(chunk string) error {
		return sse.event("chunk", chunkPayload{Text: chunk})
	})
	if err != nil {
		sse.errorEvent(err, h.logger)
		return
	}
	if err := sse.event("done", donePayload{
		ConversationID: exchange.Conversation.ID,
		MessageID:      exchange.Reply.ID,
	}); err != nil {
		h.logger.Debug("writing done event", "error", err)
	}
}

// listConversations handles GET /api/v1/chat/conversations.
func (h *chatHandler) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())

	convs, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

// getConversation handles GET /api/v1/chat/conversations/{id}.
func (h *chatHandler) getConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	conv, err := h.store.GetConversation(r.Context(), userID, id)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// listMessages handles GET /api/v1/chat/conversations/{id}/messages.
func (h *chatHandler) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_param", err.Error(), h.logger)
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), userID, id, limit)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// renameConversation handles PATCH /api/v1/chat/conversations/{id}.
func (h *chatHandler) renameConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := decodeJSON(w, r, &req, maxBodyBytes, h.logger); err != nil {
		return
	}

	conv, err := h.store.RenameConversation(r.Context(), userID, id, req.Title)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, conv)
}

// deleteConversation handles DELETE /api/v1/chat/conversations/{id}.
func (h *chatHandler) deleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, _ := userIDFromContext(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.store.DeleteConversation(r.Context(), userID, id); err != nil {
		writeDomainError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type chunkPayload struct {
	Text string `json:"text"`
}

type donePayload struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
}

// sseWriter emits Server-Sent Events with JSON data payloads, flushing
// after every event.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}
	return &sseWriter{w: w, flusher: flusher}, nil
}

// event writes one named event. Headers go out with the first event.
func (s *sseWriter) event(name string, payload any) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no") // disable proxy buffering
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", name, err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "event: %s\n", name)
	// JSON never contains raw newlines, so one data line suffices.
	fmt.Fprintf(&b, "data: %s\n\n", data)
	if _, err := s.w.Write([]byte(b.String())); err != nil {
		return fmt.Errorf("writing %s event: %w", name, err)
	}
	s.flusher.Flush()
	return nil
}

// errorEvent reports a pipeline failure. Before any event has been sent
// the normal JSON error envelope still works; afterwards the failure is
// delivered in-band as an "error" event.
func (s *sseWriter) errorEvent(err error, logger *slog.Logger) {
	if !s.started {
		writeDomainError(s.w, err, logger)
		return
	}
	status, code, message := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("stream failed", "error", err)
	}
	if werr := s.event("error", ErrorResponse{Error: code, Message: message}); werr != nil {
		logger.Debug("writing error event", "error", werr)
	}
}
