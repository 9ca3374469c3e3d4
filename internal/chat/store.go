package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalog/vitalog/internal/assistant"
)

const conversationCols = `id, user_id, title, created_at, updated_at`

const messageCols = `id, conversation_id, role, content, created_at`

// Message listing bounds.
const (
	defaultMessageLimit = 200
	maxMessageLimit     = 500
)

// Store manages conversations and messages in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a chat Store.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// CreateConversation starts a new conversation for the user.
func (s *Store) CreateConversation(ctx context.Context, userID uuid.UUID, title string) (*Conversation, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (user_id, title)
		 VALUES ($1, $2)
		 RETURNING `+conversationCols,
		userID, strings.TrimSpace(title),
	)
	conv, err := scanConversation(row)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	s.logger.Debug("conversation created", "id", conv.ID, "user_id", userID)
	return conv, nil
}

// GetConversation returns one conversation owned by the user.
func (s *Store) GetConversation(ctx context.Context, userID, id uuid.UUID) (*Conversation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+conversationCols+`
		 FROM conversations
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	return conv, nil
}

// ListConversations returns the user's conversations, most recently
// touched first.
func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+conversationCols+`
		 FROM conversations
		 WHERE user_id = $1
		 ORDER BY updated_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	return scanConversations(rows)
}

// RenameConversation sets a new title.
func (s *Store) RenameConversation(ctx context.Context, userID, id uuid.UUID, title string) (*Conversation, error) {
	if err := validateTitle(title); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE conversations
		 SET title = $3, updated_at = now()
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+conversationCols,
		id, userID, strings.TrimSpace(title),
	)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("renaming conversation: %w", err)
	}
	return conv, nil
}

// DeleteConversation removes a conversation; its messages cascade.
func (s *Store) DeleteConversation(ctx context.Context, userID, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM conversations WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	s.logger.Debug("conversation deleted", "id", id, "user_id", userID)
	return nil
}

// AddMessage appends a message and touches the conversation's updated_at,
// atomically. Ownership is the caller's concern; the service resolves the
// conversation before writing into it.
func (s *Store) AddMessage(ctx context.Context, conversationID uuid.UUID, role, content string) (*Message, error) {
	if role != assistant.RoleUser && role != assistant.RoleAssistant {
		return nil, fmt.Errorf("invalid message role %q", role)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	row := tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING `+messageCols,
		conversationID, role, content,
	)
	msg, err := scanMessage(row)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`,
		conversationID,
	); err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}
	return msg, nil
}

// ListMessages returns the newest messages of a conversation in
// chronological order. The conversation must belong to the user.
func (s *Store) ListMessages(ctx context.Context, userID, conversationID uuid.UUID, limit int) ([]*Message, error) {
	if _, err := s.GetConversation(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	return s.recentMessages(ctx, conversationID, clampMessageLimit(limit))
}

// recentMessages loads the last n messages in (created_at, id) order.
func (s *Store) recentMessages(ctx context.Context, conversationID uuid.UUID, n int) ([]*Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+`
		 FROM messages
		 WHERE conversation_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		conversationID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

func clampMessageLimit(limit int) int {
	if limit <= 0 {
		return defaultMessageLimit
	}
	if limit > maxMessageLimit {
		return maxMessageLimit
	}
	return limit
}

func validateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title must not be empty", ErrInvalidTitle)
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("%w: title longer than %d characters", ErrInvalidTitle, MaxTitleLen)
	}
	return nil
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanConversations(rows pgx.Rows) ([]*Conversation, error) {
	var convs []*Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		convs = append(convs, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversations: %w", err)
	}
	if convs == nil {
		convs = []*Conversation{}
	}
	return convs, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessages(rows pgx.Rows) ([]*Message, error) {
	var msgs []*Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return msgs, nil
}
