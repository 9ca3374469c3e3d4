package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalog/vitalog/internal/assistant"
	"github.com/vitalog/vitalog/internal/knowledge"
	"github.com/vitalog/vitalog/internal/settings"
)

// Retriever finds knowledge chunks relevant to a user message. Implemented
// by *knowledge.Store; a nil Retriever disables grounding.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, minSimilarity float64) ([]knowledge.SearchResult, error)
}

// Exchange is the result of one chat turn: the conversation it happened in,
// the persisted user message and the persisted assistant reply.
type Exchange struct {
	Conversation *Conversation `json:"conversation"`
	UserMessage  *Message      `json:"userMessage"`
	Reply        *Message      `json:"reply"`
}

// Service runs the chat pipeline on top of Store.
//
// Service is safe for concurrent use by multiple goroutines.
type Service struct {
	store     *Store
	settings  *settings.Store
	retriever Retriever
	completer assistant.Completer
	logger    *slog.Logger

	historyWindow int
	topK          int
	minSimilarity float64
}

// ServiceConfig tunes the pipeline. Zero values fall back to the package
// constants.
type ServiceConfig struct {
	HistoryWindow int
	RetrieveTopK  int
	MinSimilarity float64
}

// NewService creates a chat Service. The retriever may be nil, which turns
// off knowledge grounding; everything else is required.
func NewService(store *Store, settingsStore *settings.Store, retriever Retriever, completer assistant.Completer, cfg ServiceConfig, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if settingsStore == nil {
		return nil, fmt.Errorf("settings store is required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	window := cfg.HistoryWindow
	if window <= 0 {
		window = HistoryWindow
	}
	topK := cfg.RetrieveTopK
	if topK <= 0 {
		topK = RetrieveTopK
	}
	minSim := cfg.MinSimilarity
	if minSim <= 0 {
		minSim = RetrieveMinSimilarity
	}

	return &Service{
		store:         store,
		settings:      settingsStore,
		retriever:     retriever,
		completer:     completer,
		logger:        logger,
		historyWindow: window,
		topK:          topK,
		minSimilarity: minSim,
	}, nil
}

// Send runs one synchronous chat turn. A nil conversationID starts a new
// conversation titled from the message. The user message is persisted before
// the model is called, so an upstream failure never loses it; the failure
// itself surfaces as assistant.ErrUnavailable.
func (s *Service) Send(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*Exchange, error) {
	turn, err := s.prepare(ctx, userID, conversationID, content)
	if err != nil {
		return nil, err
	}

	reply, err := s.completer.Complete(ctx, turn.req)
	if err != nil {
		return nil, fmt.Errorf("completing chat turn: %w", err)
	}

	return s.finish(ctx, turn, reply)
}

// Stream runs one chat turn with the reply streamed through fn chunk by
// chunk. The full reply is persisted after the stream ends; a failure
// mid-stream leaves the user message persisted and the reply unpersisted.
func (s *Service) Stream(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string, fn assistant.StreamFunc) (*Exchange, error) {
	turn, err := s.prepare(ctx, userID, conversationID, content)
	if err != nil {
		return nil, err
	}

	var reply strings.Builder
	err = s.completer.Stream(ctx, turn.req, func(chunk string) error {
		reply.WriteString(chunk)
		return fn(chunk)
	})
	if err != nil {
		return nil, fmt.Errorf("streaming chat turn: %w", err)
	}

	return s.finish(ctx, turn, reply.String())
}

// turnState carries the pipeline state between prepare and finish.
type turnState struct {
	conv    *Conversation
	userMsg *Message
	req     assistant.Request
}

// prepare validates the message, resolves the conversation, persists the
// user message and assembles the completion request. History is read before
// the user message is written so the prompt does not repeat it.
func (s *Service) prepare(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*turnState, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if len(content) > MaxMessageLen {
		return nil, fmt.Errorf("%w: message exceeds %d bytes", ErrMessageTooLong, MaxMessageLen)
	}

	conv, err := s.resolveConversation(ctx, userID, conversationID, content)
	if err != nil {
		return nil, err
	}

	history, err := s.store.recentMessages(ctx, conv.ID, s.historyWindow)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.store.AddMessage(ctx, conv.ID, assistant.RoleUser, content)
	if err != nil {
		return nil, err
	}

	prefs, err := s.settings.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	chunks := s.retrieve(ctx, content)

	return &turnState{
		conv:    conv,
		userMsg: userMsg,
		req: assistant.Request{
			System:  BuildSystemPrompt(prefs, chunks),
			History: historyTurns(history),
			Message: content,
		},
	}, nil
}

// finish persists the assistant reply and assembles the exchange.
func (s *Service) finish(ctx context.Context, turn *turnState, reply string) (*Exchange, error) {
	replyMsg, err := s.store.AddMessage(ctx, turn.conv.ID, assistant.RoleAssistant, reply)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("chat turn completed",
		"conversation_id", turn.conv.ID,
		"reply_bytes", len(reply),
	)
	return &Exchange{
		Conversation: turn.conv,
		UserMessage:  turn.userMsg,
		Reply:        replyMsg,
	}, nil
}

// resolveConversation loads an existing conversation or starts a new one
// titled from the message.
func (s *Service) resolveConversation(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, content string) (*Conversation, error) {
	if conversationID != nil {
		return s.store.GetConversation(ctx, userID, *conversationID)
	}
	return s.store.CreateConversation(ctx, userID, TitleFromMessage(content))
}

// retrieve finds grounding chunks for the message. Retrieval failures are
// logged and degrade to an ungrounded reply rather than failing the turn.
func (s *Service) retrieve(ctx context.Context, content string) []knowledge.SearchResult {
	if s.retriever == nil {
		return nil
	}
	results, err := s.retriever.Search(ctx, content, s.topK, s.minSimilarity)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logger.Warn("knowledge retrieval failed, continuing without context", "error", err)
		}
		return nil
	}
	return results
}

// historyTurns converts stored messages into completion history.
func historyTurns(msgs []*Message) []assistant.Turn {
	turns := make([]assistant.Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, assistant.Turn{Role: m.Role, Content: m.Content})
	}
	return turns
}
