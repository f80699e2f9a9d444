package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"

	"github.com/raphaelgruber/privategpt-go/internal/vectorstore"
)

// keywordEmbedder projects text onto a fixed vocabulary so nearest
// neighbours are predictable.
type keywordEmbedder struct{}

var vocabulary = []string{"freedonia", "fredville", "sylvania", "budget", "recipe", "france"}

func (keywordEmbedder) vector(text string) []float32 {
	lower := strings.ToLower(text)
	v := make([]float32, len(vocabulary)+1)
	for i, w := range vocabulary {
		v[i] = float32(strings.Count(lower, w))
	}
	v[len(vocabulary)] = 0.01
	return v
}

func (e keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func embedderFactory() EmbedderFactory {
	return func(context.Context) (embeddings.Embedder, error) { return keywordEmbedder{}, nil }
}

func localStoreFactory(dir string) StoreFactory {
	return func(_ context.Context, e embeddings.Embedder) (vectorstore.Store, error) {
		return vectorstore.NewLocalStore(dir, e, "keyword"), nil
	}
}

// fakeModel records prompts and returns a canned reply.
type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var sb strings.Builder
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if t, ok := part.(llms.TextContent); ok {
				sb.WriteString(t.Text)
			}
		}
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, sb.String())
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func (m *fakeModel) lastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

func modelFactory(m llms.Model) ModelFactory {
	return func(context.Context) (llms.Model, error) { return m, nil }
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
