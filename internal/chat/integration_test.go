//go:build integration

package chat

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalog/vitalog/internal/assistant"
	"github.com/vitalog/vitalog/internal/knowledge"
	"github.com/vitalog/vitalog/internal/settings"
	"github.com/vitalog/vitalog/internal/testutil"
)

var sharedDB *testutil.TestDB

func TestMain(m *testing.M) {
	var err error
	var dbCleanup func()
	sharedDB, dbCleanup, err = testutil.SetupTestDBForMain()
	if err != nil {
		log.Fatalf("starting test database: %v", err)
	}
	code := m.Run()
	dbCleanup()
	os.Exit(code)
}

// stubRetriever serves fixed results without a corpus.
type stubRetriever struct {
	results []knowledge.SearchResult
	err     error
}

func (r *stubRetriever) Search(_ context.Context, _ string, _ int, _ float64) ([]knowledge.SearchResult, error) {
	return r.results, r.err
}

type testEnv struct {
	store     *Store
	svc       *Service
	completer *testutil.MockCompleter
	retriever *stubRetriever
	userID    uuid.UUID
}

func setupIntegrationTest(t *testing.T) *testEnv {
	t.Helper()
	testutil.CleanTables(t, sharedDB.Pool)

	store, err := NewStore(sharedDB.Pool, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewStore() unexpected error: %v", err)
	}
	settingsStore, err := settings.NewStore(sharedDB.Pool, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("settings.NewStore() unexpected error: %v", err)
	}

	completer := testutil.NewMockCompleter("I cannot help with that.")
	retriever := &stubRetriever{}
	svc, err := NewService(store, settingsStore, retriever, completer, ServiceConfig{}, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewService() unexpected error: %v", err)
	}

	return &testEnv{
		store:     store,
		svc:       svc,
		completer: completer,
		retriever: retriever,
		userID:    createUser(t, sharedDB.Pool),
	}
}

func createUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	email := "user-" + uuid.New().String()[:8] + "@example.com"
	err := pool.QueryRow(context.Background(),
		`INSERT INTO users (email, display_name, password_hash)
		 VALUES ($1, 'Test User', 'x') RETURNING id`,
		email).Scan(&id)
	if err != nil {
		t.Fatalf("creating test user: %v", err)
	}
	return id
}

func TestSend_NewConversation(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	env.completer.AddResponse("heart rate", "A typical resting heart rate is 60-100 bpm.")

	ex, err := env.svc.Send(ctx, env.userID, nil, "What is a normal heart rate?")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if ex.Conversation.Title != "What is a normal heart rate?" {
		t.Errorf("conversation title = %q, want message-derived title", ex.Conversation.Title)
	}
	if ex.UserMessage.Role != assistant.RoleUser {
		t.Errorf("user message role = %q", ex.UserMessage.Role)
	}
	if got, want := ex.Reply.Content, "A typical resting heart rate is 60-100 bpm."; got != want {
		t.Errorf("reply = %q, want %q", got, want)
	}

	// Both turns must be persisted in order.
	msgs, err := env.store.ListMessages(ctx, env.userID, ex.Conversation.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("ListMessages() returned %d messages, want 2", len(msgs))
	}
	if msgs[0].Role != assistant.RoleUser || msgs[1].Role != assistant.RoleAssistant {
		t.Errorf("message roles = %q, %q, want user then assistant", msgs[0].Role, msgs[1].Role)
	}
}

func TestSend_ExistingConversationCarriesHistory(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	ex, err := env.svc.Send(ctx, env.userID, nil, "I slept badly")
	if err != nil {
		t.Fatalf("Send() first turn error = %v", err)
	}

	convID := ex.Conversation.ID
	if _, err := env.svc.Send(ctx, env.userID, &convID, "what should I do?"); err != nil {
		t.Fatalf("Send() second turn error = %v", err)
	}

	calls := env.completer.Calls()
	if len(calls) != 2 {
		t.Fatalf("completer calls = %d, want 2", len(calls))
	}
	// The second call replays the first exchange as history.
	if calls[1].History != 2 {
		t.Errorf("second call history = %d turns, want 2", calls[1].History)
	}
}

func TestSend_UpstreamFailureKeepsUserMessage(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	env.completer.FailWith(assistant.ErrUnavailable)

	ex, err := env.svc.Send(ctx, env.userID, nil, "hello?")
	if !errors.Is(err, assistant.ErrUnavailable) {
		t.Fatalf("Send() error = %v, want ErrUnavailable", err)
	}
	if ex != nil {
		t.Errorf("Send() exchange = %+v, want nil on failure", ex)
	}

	// The conversation and the user message must survive the failure.
	convs, err := env.store.ListConversations(ctx, env.userID)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	msgs, err := env.store.ListMessages(ctx, env.userID, convs[0].ID, 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 1 || msgs[0].Role != assistant.RoleUser {
		t.Fatalf("messages after failure = %+v, want the user message only", msgs)
	}
}

func TestSend_RetrievedChunksReachThePrompt(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	env.retriever.results = []knowledge.SearchResult{
		{Document: &knowledge.Document{Title: "Hydration basics", Content: "Adults need about 2 liters of water daily."}, Similarity: 0.9},
	}

	if _, err := env.svc.Send(ctx, env.userID, nil, "how much water should I drink"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	calls := env.completer.Calls()
	if len(calls) != 1 {
		t.Fatalf("completer calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].System, "Hydration basics") {
		t.Errorf("system prompt missing retrieved chunk:\n%s", calls[0].System)
	}
}

func TestSend_RetrievalFailureDegradesGracefully(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	env.retriever.err = errors.New("embedder down")

	ex, err := env.svc.Send(ctx, env.userID, nil, "hello")
	if err != nil {
		t.Fatalf("Send() error = %v, want ungrounded success", err)
	}
	if ex.Reply.Content == "" {
		t.Error("Send() reply empty")
	}
}

func TestSend_Validation(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	if _, err := env.svc.Send(ctx, env.userID, nil, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("Send(blank) error = %v, want ErrEmptyMessage", err)
	}

	long := strings.Repeat("x", MaxMessageLen+1)
	if _, err := env.svc.Send(ctx, env.userID, nil, long); !errors.Is(err, ErrMessageTooLong) {
		t.Errorf("Send(oversized) error = %v, want ErrMessageTooLong", err)
	}

	otherConv := uuid.New()
	if _, err := env.svc.Send(ctx, env.userID, &otherConv, "hi"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Send(unknown conversation) error = %v, want ErrNotFound", err)
	}
}

func TestSend_ForeignConversationIsNotFound(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	ex, err := env.svc.Send(ctx, env.userID, nil, "mine")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	intruder := createUser(t, sharedDB.Pool)
	convID := ex.Conversation.ID
	if _, err := env.svc.Send(ctx, intruder, &convID, "yours?"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Send() into foreign conversation error = %v, want ErrNotFound", err)
	}
}

func TestStream_DeliversChunksAndPersists(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	env.completer.AddResponse("sleep", "Aim for seven to nine hours of sleep.")
	env.completer.SetChunkSize(10)

	var chunks []string
	ex, err := env.svc.Stream(ctx, env.userID, nil, "how much sleep do I need", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if len(chunks) < 2 {
		t.Errorf("Stream() delivered %d chunks, want several", len(chunks))
	}
	joined := strings.Join(chunks, "")
	if joined != ex.Reply.Content {
		t.Errorf("streamed %q != persisted reply %q", joined, ex.Reply.Content)
	}

	msgs, err := env.store.ListMessages(ctx, env.userID, ex.Conversation.ID, 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("persisted messages = %d, want 2", len(msgs))
	}
}

func TestStream_CallbackErrorAborts(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	abort := errors.New("client went away")
	_, err := env.svc.Stream(ctx, env.userID, nil, "hello", func(string) error {
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("Stream() error = %v, want callback error", err)
	}

	// The user message is kept; no assistant reply is persisted.
	convs, err := env.store.ListConversations(ctx, env.userID)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	msgs, err := env.store.ListMessages(ctx, env.userID, convs[0].ID, 0)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("messages after aborted stream = %d, want 1", len(msgs))
	}
}

func TestConversationLifecycle(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	first, err := env.store.CreateConversation(ctx, env.userID, "first")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if _, err := env.store.CreateConversation(ctx, env.userID, "second"); err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}

	// Touch the first conversation; it must move to the top of the list.
	if _, err := env.store.AddMessage(ctx, first.ID, assistant.RoleUser, "bump"); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	convs, err := env.store.ListConversations(ctx, env.userID)
	if err != nil {
		t.Fatalf("ListConversations() error = %v", err)
	}
	if len(convs) != 2 || convs[0].ID != first.ID {
		t.Errorf("ListConversations() order = %v, want recently touched first", convs)
	}

	renamed, err := env.store.RenameConversation(ctx, env.userID, first.ID, "sleep questions")
	if err != nil {
		t.Fatalf("RenameConversation() error = %v", err)
	}
	if renamed.Title != "sleep questions" {
		t.Errorf("RenameConversation() title = %q", renamed.Title)
	}
	if _, err := env.store.RenameConversation(ctx, env.userID, first.ID, ""); !errors.Is(err, ErrInvalidTitle) {
		t.Errorf("RenameConversation(blank) error = %v, want ErrInvalidTitle", err)
	}

	if err := env.store.DeleteConversation(ctx, env.userID, first.ID); err != nil {
		t.Fatalf("DeleteConversation() error = %v", err)
	}
	if _, err := env.store.ListMessages(ctx, env.userID, first.ID, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("ListMessages() after delete error = %v, want ErrNotFound", err)
	}
	var orphans int
	if err := sharedDB.Pool.QueryRow(ctx,
		`SELECT count(*) FROM messages WHERE conversation_id = $1`, first.ID).Scan(&orphans); err != nil {
		t.Fatalf("counting messages: %v", err)
	}
	if orphans != 0 {
		t.Errorf("messages after conversation delete = %d, want cascade to 0", orphans)
	}
	if err := env.store.DeleteConversation(ctx, env.userID, first.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteConversation() twice error = %v, want ErrNotFound", err)
	}
}

func TestAddMessage_RejectsUnknownRole(t *testing.T) {
	env := setupIntegrationTest(t)
	ctx := context.Background()

	conv, err := env.store.CreateConversation(ctx, env.userID, "roles")
	if err != nil {
		t.Fatalf("CreateConversation() error = %v", err)
	}
	if _, err := env.store.AddMessage(ctx, conv.ID, "system", "nope"); err == nil {
		t.Error("AddMessage(system role) error = nil, want error")
	}
}
