package inference

import (
	"context"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const togetherBaseURL = "https://api.together.xyz/v1"

// TogetherGenerator runs chat completions against Together AI's
// OpenAI-compatible endpoint.
type TogetherGenerator struct {
	inner *OpenAIGenerator
}

// NewTogetherGenerator creates a new generator instance using the Together AI endpoint.
func NewTogetherGenerator(apiKey string, model string) *TogetherGenerator {
	if model == "" {
		model = "meta-llama/Llama-3.3-70B-Instruct-Turbo"
	}
	client := openai.NewClient(
		option.WithBaseURL(togetherBaseURL),
		option.WithAPIKey(apiKey),
	)
	return &TogetherGenerator{
		inner: &OpenAIGenerator{client: &client, apiKey: apiKey, model: model},
	}
}

func (t *TogetherGenerator) SetModel(model string) {
	t.inner.SetModel(model)
}

func (t *TogetherGenerator) Generate(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	return t.inner.Generate(ctx, params, system, user)
}

func (t *TogetherGenerator) Stream(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) iter.Seq2[string, error] {
	return t.inner.Stream(ctx, params, system, user)
}
