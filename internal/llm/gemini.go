package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms"
	"google.golang.org/api/option"
)

const (
	defaultGeminiModel          = "gemini-1.5-flash"
	defaultGeminiEmbeddingModel = "text-embedding-004"
)

// Gemini adapts the Google generative AI client to langchaingo's model and
// embedder interfaces.
type Gemini struct {
	client         *genai.Client
	modelName      string
	embeddingModel string
}

var (
	_ llms.Model          = (*Gemini)(nil)
	_ embeddings.Embedder = (*Gemini)(nil)
)

// NewGemini creates a Gemini client. Empty model names use the defaults.
func NewGemini(ctx context.Context, apiKey, modelName, embeddingModel string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY required")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = defaultGeminiModel
	}
	if embeddingModel == "" {
		embeddingModel = defaultGeminiEmbeddingModel
	}
	return &Gemini{client: cl, modelName: modelName, embeddingModel: embeddingModel}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// GenerateContent implements llms.Model. System messages become the system
// instruction; all other text parts are sent as the prompt.
func (g *Gemini) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	m := g.client.GenerativeModel(g.modelName)
	if opts.Temperature > 0 {
		m.SetTemperature(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	var parts []genai.Part
	for _, msg := range messages {
		for _, p := range msg.Parts {
			text, ok := p.(llms.TextContent)
			if !ok {
				continue
			}
			if msg.Role == llms.ChatMessageTypeSystem {
				m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(text.Text)}}
				continue
			}
			parts = append(parts, genai.Text(text.Text))
		}
	}
	if len(parts) == 0 {
		return nil, errors.New("gemini generate: empty prompt")
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &llms.ContentResponse{}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		var b strings.Builder
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		out.Choices = append(out.Choices, &llms.ContentChoice{Content: b.String()})
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("gemini generate: no candidates returned")
	}
	return out, nil
}

// Call implements llms.Model.
func (g *Gemini) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, g, prompt, options...)
}

// EmbedDocuments batches all texts in one request.
func (g *Gemini) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := g.client.EmbeddingModel(g.embeddingModel)

	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}

	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

// EmbedQuery embeds a single query string.
func (g *Gemini) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	em := g.client.EmbeddingModel(g.embeddingModel)
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embed: %w", err)
	}
	if resp.Embedding == nil {
		return nil, errors.New("gemini embed: no embedding returned")
	}
	return resp.Embedding.Values, nil
}
