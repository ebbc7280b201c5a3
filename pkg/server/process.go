package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"storyreel/pkg/schema"
	"storyreel/pkg/utils"
)

type processReq struct {
	Story         string `json:"story"`
	SceneCount    int    `json:"sceneCount"`
	SectionOnly   bool   `json:"sectionOnly,omitempty"`
	ModelProvider string `json:"modelProvider,omitempty"`
}

type sectionsResp struct {
	Scenes []schema.Segment `json:"scenes"`
}

type promptedResp struct {
	Scenes []schema.PromptedSegment `json:"scenes"`
}

// POST /api/process-story
//
// Splits the story into sceneCount segments and, unless sectionOnly is set,
// synthesizes an image prompt per segment. Segmentation never fails on model
// output: unusable JSON degrades to the deterministic splitter.
func (s *Server) handleProcessStory(c echo.Context) error {
	var req processReq
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

	eng, ok := s.engine(req.ModelProvider)
	if !ok {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("No text generation provider configured"))
	}

	ctx := c.Request().Context()
	segments, err := eng.Segment(ctx, req.Story, req.SceneCount)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		c.Logger().Errorf("segmentation error: %v", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("Failed to process story"))
	}

	if req.SectionOnly {
		return c.JSON(http.StatusOK, sectionsResp{Scenes: segments})
	}

	prompted := eng.SynthesizePrompts(ctx, segments)
	return c.JSON(http.StatusOK, promptedResp{Scenes: prompted})
}
