package imagegen

import (
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"storyreel/pkg/utils"
)

const (
	defaultTogetherImageModel = "black-forest-labs/FLUX.1-schnell-Free"
	togetherImageBaseURL      = "https://api.together.xyz/v1"

	// Together rejects prompts past this length.
	maxPromptLength = 4000

	defaultWidth  = 1280
	defaultHeight = 720
	maxSteps      = 4
)

// TogetherRenderer renders scene images through Together's OpenAI-compatible
// images endpoint. FLUX-specific fields not in the OpenAI surface ride along
// as extra body fields.
type TogetherRenderer struct {
	client *openai.Client
	model  string
}

func NewTogetherRenderer(apiKey string, model string) *TogetherRenderer {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(togetherImageBaseURL),
	)
	return &TogetherRenderer{
		client: &client,
		model:  cmp.Or(model, defaultTogetherImageModel),
	}
}

func (t *TogetherRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	model := cmp.Or(req.Model, t.model)
	width := cmp.Or(req.Width, defaultWidth)
	height := cmp.Or(req.Height, defaultHeight)
	steps := min(max(cmp.Or(req.Steps, maxSteps), 1), maxSteps)

	prompt := utils.TruncateAtBoundary(req.Prompt, maxPromptLength)

	opts := []option.RequestOption{
		option.WithJSONSet("width", width),
		option.WithJSONSet("height", height),
		option.WithJSONSet("steps", steps),
	}
	if req.Negative != "" {
		opts = append(opts, option.WithJSONSet("negative_prompt", utils.TruncateAtBoundary(req.Negative, maxPromptLength)))
	}
	if req.Seed != 0 {
		opts = append(opts, option.WithJSONSet("seed", req.Seed))
	}

	resp, err := t.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Model:          model,
		Prompt:         prompt,
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("together image error: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, ErrNoImage
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode image data: %w", err)
	}

	return &Result{
		Data:      data,
		MimeType:  "image/png",
		Text:      "Image generated successfully",
		Prompt:    prompt,
		Model:     model,
		Seed:      req.Seed,
		Width:     width,
		Height:    height,
		Steps:     steps,
		Truncated: len(prompt) < len(req.Prompt),
		Created:   time.Now(),
	}, nil
}
