package imagegen

import (
	"cmp"
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"google.golang.org/genai"
)

const defaultGeminiImageModel = "gemini-2.0-flash-preview-image-generation"

// GeminiRenderer renders scene images through the Google GenAI SDK's
// multimodal output mode.
type GeminiRenderer struct {
	client *genai.Client
	model  string
}

func NewGeminiRenderer(apiKey string, model string) (*GeminiRenderer, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, err
	}
	return &GeminiRenderer{
		client: client,
		model:  cmp.Or(model, defaultGeminiImageModel),
	}, nil
}

func (g *GeminiRenderer) Render(ctx context.Context, req Request) (*Result, error) {
	model := cmp.Or(req.Model, g.model)

	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		Temperature:        genai.Ptr[float32](0.6),
		TopK:               genai.Ptr[float32](40),
		TopP:               genai.Ptr[float32](0.85),
	}
	if req.Seed != 0 {
		cfg.Seed = genai.Ptr(int32(req.Seed))
	}

	contents := []*genai.Content{genai.NewContentFromText(enhance(req.Prompt, req.Negative), genai.RoleUser)}

	resp, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini image error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, ErrNoImage
	}

	result := &Result{
		Prompt:  req.Prompt,
		Model:   model,
		Seed:    req.Seed,
		Created: time.Now(),
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.Text != "":
			result.Text = part.Text
		case part.InlineData != nil && len(part.InlineData.Data) > 0:
			result.Data = part.InlineData.Data
			result.MimeType = cmp.Or(part.InlineData.MIMEType, "image/png")
		}
	}
	if result.Data == nil {
		log.Warn("gemini returned no inline image", "model", model, "text", result.Text != "")
		return nil, ErrNoImage
	}
	return result, nil
}
