package assistant

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"
)

// Model defaults. The embedding dimension must match the vector(768) column
// in the knowledge schema; gemini-embedding-001 is truncated to it via
// OutputDimensionality.
const (
	DefaultChatModel  = "gemini-2.5-flash"
	DefaultEmbedModel = "gemini-embedding-001"
	DefaultEmbedDim   = 768
)

// Config carries the Gemini client parameters.
type Config struct {
	APIKey      string
	ChatModel   string
	EmbedModel  string
	Temperature float32
	MaxTokens   int32
	EmbedDim    int32
	Retry       RetryConfig
}

// Gemini implements Completer and Embedder against the Gemini API.
//
// Gemini is safe for concurrent use by multiple goroutines.
type Gemini struct {
	client      *genai.Client
	chatModel   string
	embedModel  string
	temperature float32
	maxTokens   int32
	embedDim    int32
	retry       RetryConfig
	logger      *slog.Logger
}

// NewGemini creates the Gemini-backed assistant client.
func NewGemini(ctx context.Context, cfg Config, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = DefaultEmbedModel
	}
	embedDim := cfg.EmbedDim
	if embedDim <= 0 {
		embedDim = DefaultEmbedDim
	}
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.InitialInterval == 0 {
		retry = DefaultRetryConfig()
	}

	return &Gemini{
		client:      client,
		chatModel:   chatModel,
		embedModel:  embedModel,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		embedDim:    embedDim,
		retry:       retry,
		logger:      logger,
	}, nil
}

// Complete generates a single assistant reply.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	contents := buildContents(req)
	config := g.generationConfig(req.System)

	var text string
	err := g.withRetry(ctx, "generate content", func() error {
		resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, config)
		if err != nil {
			return err
		}
		text = resp.Text()
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return text, nil
}

// Stream generates a reply and forwards chunks to fn as they arrive.
// A fn error aborts the stream and is returned as-is; upstream failures are
// wrapped in ErrUnavailable. Streams are not retried: once chunks have been
// delivered the call cannot be restarted transparently.
func (g *Gemini) Stream(ctx context.Context, req Request, fn StreamFunc) error {
	contents := buildContents(req)
	config := g.generationConfig(req.System)

	got := false
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.chatModel, contents, config) {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		got = true
		if cbErr := fn(chunk); cbErr != nil {
			return cbErr
		}
	}
	if !got {
		return fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return nil
}

// Embed converts texts to vectors, one per input, truncated to the
// configured dimension.
func (g *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dim := g.embedDim

	var out [][]float32
	err := g.withRetry(ctx, "embed content", func() error {
		resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, contents,
			&genai.EmbedContentConfig{OutputDimensionality: &dim})
		if err != nil {
			return err
		}
		if len(resp.Embeddings) != len(texts) {
			return fmt.Errorf("got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		}
		out = make([][]float32, len(resp.Embeddings))
		for i, e := range resp.Embeddings {
			out[i] = e.Values
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return out, nil
}

// buildContents converts history plus the new message into genai contents.
// The assistant role maps to the API's "model" role.
func buildContents(req Request) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))
	return contents
}

// generationConfig builds the per-request generation settings.
func (g *Gemini) generationConfig(system string) *genai.GenerateContentConfig {
	temp := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: g.maxTokens,
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	return config
}
