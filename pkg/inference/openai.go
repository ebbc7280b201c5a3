package inference

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

// OpenAIGenerator implements Generator using OpenAI's official Go SDK.
type OpenAIGenerator struct {
	client *openai.Client
	apiKey string
	model  string
}

// NewOpenAIGenerator creates a new generator instance using the OpenAI client.
func NewOpenAIGenerator(apiKey string, model string) *OpenAIGenerator {
	if model == "" {
		model = "gpt-4o-mini"
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIGenerator{
		client: &client,
		apiKey: apiKey,
		model:  model,
	}
}

func (o *OpenAIGenerator) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

func (o *OpenAIGenerator) SetModel(model string) {
	o.model = model
}

func (o *OpenAIGenerator) fill(params *openai.ChatCompletionNewParams, system, user string) *openai.ChatCompletionNewParams {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		params = &(*params)
	}
	params.Model = cmp.Or(params.Model, o.model)
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: user},
				},
			},
		},
	}

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, 4096))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, 0.7))
	params.TopP = openai.Float(cmp.Or(params.TopP.Value, 1.0))
	return params
}

// Generate sends text to the chat completion endpoint and returns the output.
func (o *OpenAIGenerator) Generate(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	params = o.fill(params, system, user)

	resp, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return "", fmt.Errorf("openai inference error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices returned")
	}
	if resp.Choices[0].Message.Content == "" {
		return "", errors.New("empty completion content")
	}

	return resp.Choices[0].Message.Content, nil
}

// Stream yields completion deltas as they arrive from the chat endpoint.
func (o *OpenAIGenerator) Stream(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) iter.Seq2[string, error] {
	params = o.fill(params, system, user)

	return func(yield func(string, error) bool) {
		stream := o.client.Chat.Completions.NewStreaming(ctx, *params)
		defer stream.Close()

		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield("", fmt.Errorf("openai stream error: %w", err))
		}
	}
}
