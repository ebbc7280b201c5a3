package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"

	"storyreel/pkg/inference"
	"storyreel/pkg/prompt"
	"storyreel/pkg/utils"
)

type enhanceReq struct {
	Prompt        string `json:"prompt"`
	ModelProvider string `json:"modelProvider,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
}

type regenerateReq struct {
	SceneContent   string `json:"sceneContent"`
	PreviousPrompt string `json:"previousPrompt,omitempty"`
	ModelProvider  string `json:"modelProvider,omitempty"`
}

type regenerateResp struct {
	Prompt string            `json:"prompt"`
	Diff   []utils.WordDelta `json:"diff,omitempty"`
}

// POST /api/enhance-prompt
//
// Streams the enhanced prompt as SSE content chunks so the editor can show
// it forming.
func (s *Server) handleEnhancePrompt(c echo.Context) error {
	var req enhanceReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("Prompt is required"))
	}

	gen, _, ok := s.generator(req.ModelProvider)
	if req.APIKey != "" {
		// A caller-supplied key gets its own client rather than touching the
		// shared one.
		gen = inference.NewOpenAIGenerator(req.APIKey, "")
		ok = true
	}
	if !ok {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("No text generation provider configured"))
	}

	ctx := c.Request().Context()
	params := &openai.ChatCompletionNewParams{
		Temperature: openai.Float(0.6),
	}

	w := utils.NewSSEWriter(c)
	defer w.Close()

	for chunk, err := range gen.Stream(ctx, params, prompt.EnhanceSystem, prompt.EnhanceUser(req.Prompt)) {
		if err != nil {
			c.Logger().Errorf("enhance stream error: %v", err)
			_ = w.Send(map[string]string{"error": "Error processing stream"})
			return nil
		}
		if cancelled(c) {
			return nil
		}
		if err := w.Send(map[string]string{"content": chunk}); err != nil {
			return nil
		}
	}
	return nil
}

// POST /api/regenerate-prompt
//
// Produces a fresh prompt for a scene, deliberately steered away from the
// obvious interpretation. When the previous prompt is supplied the response
// carries a word-level diff so the UI can highlight what changed.
func (s *Server) handleRegeneratePrompt(c echo.Context) error {
	var req regenerateReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.SceneContent = strings.TrimSpace(req.SceneContent)
	if req.SceneContent == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("Scene content is required"))
	}

	gen, _, ok := s.generator(req.ModelProvider)
	if !ok {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("No text generation provider configured"))
	}

	generated, err := gen.Generate(c.Request().Context(), &openai.ChatCompletionNewParams{
		Temperature: openai.Float(0.8),
	}, "You are an expert at writing image generation prompts.", prompt.Regenerate(req.SceneContent))
	if err != nil {
		c.Logger().Errorf("prompt regeneration error: %v", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("Failed to regenerate prompt"))
	}

	resp := regenerateResp{Prompt: strings.TrimSpace(generated)}
	if req.PreviousPrompt != "" {
		resp.Diff = utils.DiffWords(req.PreviousPrompt, resp.Prompt)
	}
	return c.JSON(http.StatusOK, resp)
}
