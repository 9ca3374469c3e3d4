package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/vitalog/vitalog/internal/assistant"
)

// MockCompleter provides deterministic assistant replies for testing.
// It matches the user message against registered patterns and returns the
// corresponding response; unmatched messages get the fallback.
//
// Thread-safe for concurrent use.
type MockCompleter struct {
	mu        sync.Mutex
	responses []mockRule
	fallback  string
	failWith  error
	chunkSize int
	calls     []MockCall
}

type mockRule struct {
	pattern  string // substring match in user message, lowercase
	response string
}

// MockCall records a single call to the mock completer.
type MockCall struct {
	System   string // system prompt the call carried
	Message  string // user message
	History  int    // number of history turns
	Response string // response text returned
}

// NewMockCompleter creates a mock completer with the given fallback response.
func NewMockCompleter(fallback string) *MockCompleter {
	return &MockCompleter{fallback: fallback}
}

// AddResponse registers a pattern-response pair. When a user message
// contains the pattern (case-insensitive), the response is returned.
// Patterns are checked in registration order; first match wins.
func (m *MockCompleter) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockRule{
		pattern:  strings.ToLower(pattern),
		response: response,
	})
}

// FailWith makes all subsequent calls return err. Pass nil to restore
// normal behavior.
func (m *MockCompleter) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// SetChunkSize sets the streaming chunk size in bytes. Zero streams the
// whole response as a single chunk.
func (m *MockCompleter) SetChunkSize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunkSize = n
}

// Calls returns a copy of all recorded calls.
func (m *MockCompleter) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Reset clears all recorded calls (keeps registered responses).
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// Complete implements assistant.Completer.
func (m *MockCompleter) Complete(_ context.Context, req assistant.Request) (string, error) {
	resp, err := m.respond(req)
	if err != nil {
		return "", err
	}
	return resp, nil
}

// Stream implements assistant.Completer. The response is delivered in
// chunkSize pieces so SSE tests observe multiple chunk events.
func (m *MockCompleter) Stream(_ context.Context, req assistant.Request, fn assistant.StreamFunc) error {
	resp, err := m.respond(req)
	if err != nil {
		return err
	}

	m.mu.Lock()
	size := m.chunkSize
	m.mu.Unlock()
	if size <= 0 {
		size = len(resp)
	}

	for start := 0; start < len(resp); start += size {
		end := min(start+size, len(resp))
		if cbErr := fn(resp[start:end]); cbErr != nil {
			return cbErr
		}
	}
	return nil
}

// respond finds the matching rule and records the call.
func (m *MockCompleter) respond(req assistant.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWith != nil {
		return "", m.failWith
	}

	response := m.fallback
	lower := strings.ToLower(req.Message)
	for i := range m.responses {
		if strings.Contains(lower, m.responses[i].pattern) {
			response = m.responses[i].response
			break
		}
	}

	m.calls = append(m.calls, MockCall{
		System:   req.System,
		Message:  req.Message,
		History:  len(req.History),
		Response: response,
	})
	return response, nil
}

// MockEmbedder provides deterministic embedding vectors for testing.
//
// By default it generates a deterministic vector from content using SHA-256.
// Explicit mappings can be added for precise cosine similarity control.
//
// Thread-safe for concurrent use.
type MockEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	failWith error
	dim      int
}

// NewMockEmbedder creates a mock embedder with the given vector dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{
		vectors: make(map[string][]float32),
		dim:     dim,
	}
}

// SetVector registers an explicit vector for a given content string.
// Use this to control exact cosine similarity between test inputs.
func (e *MockEmbedder) SetVector(content string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[content] = vec
}

// FailWith makes all subsequent calls return err. Pass nil to restore
// normal behavior.
func (e *MockEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failWith = err
}

// Embed implements assistant.Embedder.
func (e *MockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failWith != nil {
		return nil, e.failWith
	}

	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := e.vectors[text]; ok {
			out[i] = v
			continue
		}
		out[i] = deterministicVector(text, e.dim)
	}
	return out, nil
}

// deterministicVector generates a normalized vector from content using
// SHA-256. The same content always produces the same vector.
func deterministicVector(content string, dim int) []float32 {
	hash := sha256.Sum256([]byte(content))
	vec := make([]float32, dim)

	for i := range vec {
		idx := (i * 4) % len(hash)
		bits := binary.LittleEndian.Uint32([]byte{
			hash[idx%32],
			hash[(idx+1)%32],
			hash[(idx+2)%32],
			hash[(idx+3)%32],
		})
		// Map to [-1, 1] range.
		vec[i] = (float32(bits)/float32(math.MaxUint32))*2 - 1
	}

	// Normalize to unit vector.
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}

	return vec
}
