package llm

import (
	"context"
	"fmt"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/raphaelgruber/privategpt-go/internal/config"
)

// Model types accepted in MODEL_TYPE, compared case-insensitively.
const (
	ModelOllama    = "ollama"
	ModelOpenAI    = "openai"
	ModelAnthropic = "anthropic"
	ModelGemini    = "gemini"
	ModelBedrock   = "bedrock"
)

// NewModel creates the language model selected by MODEL_TYPE. Credentials
// for hosted providers come from their usual environment variables.
func NewModel(ctx context.Context, cfg config.Config) (llms.Model, error) {
	name := cfg.ChatModelName()

	switch strings.ToLower(cfg.ModelType) {
	case ModelOllama:
		model, err := ollama.New(
			ollama.WithModel(name),
			ollama.WithServerURL(cfg.OllamaHost),
			ollama.WithRunnerNumCtx(cfg.ModelNCtx),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		return model, nil

	case ModelOpenAI:
		model, err := openai.New(openai.WithModel(name))
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}
		return model, nil

	case ModelAnthropic:
		model, err := anthropic.New(anthropic.WithModel(name))
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}
		return model, nil

	case ModelGemini:
		return NewGemini(ctx, cfg.GeminiAPIKey, name, "")

	case ModelBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		model, err := bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}
		return model, nil

	default:
		return nil, fmt.Errorf("%w: model type '%s' not supported for API integration", ErrUnsupportedModel, cfg.ModelType)
	}
}
