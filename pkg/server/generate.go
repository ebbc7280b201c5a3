package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/openai/openai-go/v3"

	"storyreel/pkg/frame"
	"storyreel/pkg/prompt"
	"storyreel/pkg/utils"
)

type generateReq struct {
	Story         string `json:"story"`
	SceneCount    int    `json:"sceneCount"`
	ContinueFrom  int    `json:"continueFrom,omitempty"`
	ModelProvider string `json:"modelProvider,omitempty"`
}

type progressEvent struct {
	Type     string  `json:"type"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}

type sceneEvent struct {
	Type  string `json:"type"`
	Scene any    `json:"scene"`
}

type completeEvent struct {
	Type        string `json:"type"`
	TotalScenes int    `json:"totalScenes"`
	IsComplete  bool   `json:"isComplete"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var providerLabels = map[string]string{
	"openai":   "OpenAI GPT-4",
	"gemini":   "Google Gemini",
	"together": "Together AI",
}

func providerLabel(name string) string {
	if label, ok := providerLabels[name]; ok {
		return label
	}
	return name
}

// POST /api/generate-story-prompts
//
// Streams scene frames out of the model's token stream as SSE events. Scenes
// arrive as soon as their frame closes; the connection carries progress
// alongside, caps it at 95 until the stream drains, and finishes with a
// single complete event. Any upstream failure becomes one terminal error
// event; scenes already sent stay valid.
func (s *Server) handleGenerateStoryPrompts(c echo.Context) error {
	var req generateReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.Story = strings.TrimSpace(req.Story)
	if req.Story == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("Story content is required"))
	}
	if req.SceneCount <= 0 {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("Scene count must be positive"))
	}
	if req.ContinueFrom < 0 {
		req.ContinueFrom = 0
	}

	gen, providerName, ok := s.generator(req.ModelProvider)
	if !ok {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("No text generation provider configured"))
	}
	label := providerLabel(providerName)

	ctx := c.Request().Context()
	run := frame.NewRun(req.SceneCount, req.ContinueFrom)
	parser := new(frame.Parser)

	w := utils.NewSSEWriter(c)
	defer w.Close()

	initialMsg := fmt.Sprintf("Analyzing story structure using %s...", label)
	if req.ContinueFrom > 0 {
		initialMsg = fmt.Sprintf("Continuing from scene %d using %s...", req.ContinueFrom+1, label)
	}
	_ = w.Send(progressEvent{Type: "progress", Progress: run.InitialProgress(), Message: initialMsg})

	params := &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(sceneStreamBudget(req.Story, req.SceneCount)),
	}
	system := "You are an expert at breaking down stories into cinematic scenes and writing image generation prompts."
	user := prompt.SceneStream(req.Story, req.SceneCount, req.ContinueFrom)

	for chunk, err := range gen.Stream(ctx, params, system, user) {
		if err != nil {
			c.Logger().Errorf("scene stream error: %v", err)
			_ = w.Send(errorEvent{Type: "error", Message: "Failed to generate story prompts"})
			return nil
		}
		if cancelled(c) {
			return nil
		}

		for _, scene := range parser.Feed(chunk) {
			if !run.Accept(scene) {
				continue
			}
			if err := w.Send(sceneEvent{Type: "scene", Scene: scene}); err != nil {
				return nil
			}
			_ = w.Send(progressEvent{
				Type:     "progress",
				Progress: run.Progress(),
				Message:  fmt.Sprintf("Generated scene %d of %d using %s...", run.Highest(), req.SceneCount, label),
			})
		}
	}

	if cancelled(c) {
		return nil
	}

	totalScenes, isComplete := run.Finalize()
	finalMsg := "Generation complete!"
	if !isComplete {
		finalMsg = fmt.Sprintf("Generated %d scenes. You can continue generating more.", totalScenes)
	}
	_ = w.Send(progressEvent{Type: "progress", Progress: 100, Message: finalMsg})
	_ = w.Send(completeEvent{Type: "complete", TotalScenes: totalScenes, IsComplete: isComplete})
	return nil
}

// sceneStreamBudget leaves room for the model to echo the story back inside
// frames plus a prompt per scene.
func sceneStreamBudget(story string, sceneCount int) int64 {
	tokens, err := utils.NumTokensFromMessages(story)
	if err != nil {
		tokens = len(story) / 3
	}
	budget := int64(tokens*2 + sceneCount*256)
	return min(max(budget, 4096), 16384)
}
