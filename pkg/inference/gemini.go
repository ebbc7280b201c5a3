package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

type GeminiGenerator struct {
	client *genai.Client
	apiKey string
	model  string
}

// NewGeminiGenerator creates a new generator backed by the Google GenAI SDK.
func NewGeminiGenerator(apiKey string, model string) (*GeminiGenerator, error) {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{
		client: client,
		apiKey: apiKey,
		model:  model,
	}, nil
}

func (g *GeminiGenerator) ChangeConfig(config *genai.ClientConfig) {
	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return
	}
	g.client = client
}

func (g *GeminiGenerator) config(params *openai.ChatCompletionNewParams, system string) *genai.GenerateContentConfig {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 4096)),
	}
	if params.Temperature.Value != 0 {
		cfg.Temperature = genai.Ptr(float32(params.Temperature.Value))
	}
	return cfg
}

// Generate sends a single non-streamed generation request.
func (g *GeminiGenerator) Generate(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	result, err := g.client.Models.GenerateContent(
		ctx,
		cmp.Or(paramsModel(params), g.model),
		genai.Text(user),
		g.config(params, system),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if result.Text() == "" {
		return "", errors.New("empty completion content")
	}

	return result.Text(), nil
}

// Stream yields text fragments from the GenAI streaming endpoint.
func (g *GeminiGenerator) Stream(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range g.client.Models.GenerateContentStream(
			ctx,
			cmp.Or(paramsModel(params), g.model),
			genai.Text(user),
			g.config(params, system),
		) {
			if err != nil {
				yield("", fmt.Errorf("gemini stream error: %w", err))
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			if !yield(text, nil) {
				return
			}
		}
	}
}

func paramsModel(params *openai.ChatCompletionNewParams) string {
	if params == nil {
		return ""
	}
	return params.Model
}
