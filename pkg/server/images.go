package server

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"strings"

	"github.com/gen2brain/webp"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/ksuid"

	"storyreel/pkg/blob"
	"storyreel/pkg/imagegen"
	"storyreel/pkg/prompt"
	"storyreel/pkg/utils"
)

type imageReq struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	Seed           int64  `json:"seed,omitempty"`
	Steps          int    `json:"steps,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	Model          string `json:"model,omitempty"`
	TemplateID     string `json:"templateId,omitempty"`
	ProjectName    string `json:"projectName,omitempty"`
	Format         string `json:"format,omitempty"` // png (default) or webp
	APIKey         string `json:"apiKey,omitempty"`
	Force          bool   `json:"force,omitempty"`
}

type imageResp struct {
	ID        string `json:"id"`
	ImageData string `json:"imageData"`
	BlobURL   string `json:"blobUrl,omitempty"`
	Text      string `json:"text,omitempty"`
	Prompt    string `json:"prompt"`
	Timestamp int64  `json:"timestamp"`
	Metadata  any    `json:"metadata,omitempty"`
}

// render is the flight cache's work function: identical concurrent requests
// share one provider call.
func (s *Server) render(ctx context.Context, k renderKey) (*imagegen.Result, error) {
	r, ok := s.renderers[k.provider]
	if !ok {
		return nil, fmt.Errorf("no %s image provider configured", k.provider)
	}
	return r.Render(ctx, k.req)
}

// POST /api/generate-image
func (s *Server) handleGenerateImage(c echo.Context) error {
	return s.generateImage(c, "gemini")
}

// POST /api/generate-image-together
func (s *Server) handleGenerateImageTogether(c echo.Context) error {
	return s.generateImage(c, "together")
}

func (s *Server) generateImage(c echo.Context, provider string) error {
	var req imageReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("Prompt is required"))
	}

	finalPrompt, negative := req.Prompt, req.NegativePrompt
	if req.TemplateID != "" {
		built, builtNegative, err := prompt.Build(s.templates, req.Prompt, req.TemplateID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, utils.ErrJSON(err.Error()))
		}
		finalPrompt = built
		if negative == "" {
			negative = builtNegative
		}
	}

	render := imagegen.Request{
		Prompt:   finalPrompt,
		Negative: negative,
		Seed:     req.Seed,
		Steps:    req.Steps,
		Width:    req.Width,
		Height:   req.Height,
		Model:    req.Model,
	}

	ctx := c.Request().Context()
	var result *imagegen.Result
	var err error
	switch {
	case req.APIKey != "":
		// Caller-supplied keys get a dedicated client and skip the shared
		// cache so results never leak across keys.
		result, err = s.renderWithKey(ctx, provider, req.APIKey, render)
	case req.Force:
		result, err = s.renders.Force(ctx, renderKey{provider: provider, req: render})
	default:
		result, err = s.renders.Get(ctx, renderKey{provider: provider, req: render})
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.Logger().Errorf("image generation error (%s): %v", provider, err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON(err.Error()))
	}

	stored, storeErr := s.store(c, req, result)
	if storeErr != nil {
		c.Logger().Warnf("failed to persist image: %v", storeErr)
	}

	resp := imageResp{
		ID:        ksuid.New().String(),
		ImageData: fmt.Sprintf("data:%s;base64,%s", result.MimeType, base64.StdEncoding.EncodeToString(result.Data)),
		BlobURL:   stored.URL,
		Text:      result.Text,
		Prompt:    result.Prompt,
		Timestamp: result.Created.UnixMilli(),
		Metadata: map[string]any{
			"model":              result.Model,
			"width":              result.Width,
			"height":             result.Height,
			"steps":              result.Steps,
			"seed":               result.Seed,
			"promptLength":       len(result.Prompt),
			"wasPromptTruncated": result.Truncated,
		},
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) renderWithKey(ctx context.Context, provider, apiKey string, req imagegen.Request) (*imagegen.Result, error) {
	switch provider {
	case "gemini":
		r, err := imagegen.NewGeminiRenderer(apiKey, req.Model)
		if err != nil {
			return nil, err
		}
		return r.Render(ctx, req)
	case "together":
		return imagegen.NewTogetherRenderer(apiKey, req.Model).Render(ctx, req)
	default:
		return nil, fmt.Errorf("no %s image provider configured", provider)
	}
}

// store writes the rendered image to the blob store under the next sequence
// key for the request's project, optionally re-encoding to WebP.
func (s *Server) store(c echo.Context, req imageReq, result *imagegen.Result) (blob.Object, error) {
	if s.blobs == nil {
		return blob.Object{}, nil
	}

	project := utils.SanitizeFilename(cmp.Or(req.ProjectName, "generated"))

	data, ext := result.Data, "png"
	if strings.EqualFold(req.Format, "webp") {
		if encoded, err := toWebP(result.Data); err == nil {
			data, ext = encoded, "webp"
		} else {
			c.Logger().Warnf("webp encode failed, storing original: %v", err)
		}
	}

	// Reserving the sequence and writing the object must be atomic, or two
	// concurrent requests for the same project can claim the same key.
	s.storeMu.Lock()
	defer s.storeMu.Unlock()

	seq, err := s.blobs.NextSequence(project)
	if err != nil {
		return blob.Object{}, err
	}
	return s.blobs.Put(blob.Key(project, seq, ext), data)
}

func toWebP(data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 100}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
