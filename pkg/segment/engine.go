package segment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"storyreel/pkg/inference"
	"storyreel/pkg/prompt"
	"storyreel/pkg/schema"
	"storyreel/pkg/utils"
)

// Engine divides a story into illustratable segments. It asks a model first
// and falls back to deterministic splitting when the model output cannot be
// used, so Segment never fails on parse errors alone.
type Engine struct {
	gen     inference.Generator
	limiter *rate.Limiter
}

func NewEngine(gen inference.Generator) *Engine {
	return &Engine{
		gen:     gen,
		limiter: rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
	}
}

// Segment returns exactly n contiguous segments covering story. Model output
// that fails to parse or comes back with the wrong shape is discarded in
// favor of the deterministic splitter.
func (e *Engine) Segment(ctx context.Context, story string, n int) ([]schema.Segment, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	analysis, err := e.gen.Generate(ctx, &openai.ChatCompletionNewParams{
		Temperature:         openai.Float(0.2),
		MaxCompletionTokens: openai.Int(512),
	}, "You are an expert story analyst.", prompt.Analysis(story))
	if err != nil {
		log.Warn("story analysis failed, continuing without", "err", err)
		analysis = "No analysis available."
	}

	raw, err := e.gen.Generate(ctx, &openai.ChatCompletionNewParams{
		Temperature:         openai.Float(0.3),
		MaxCompletionTokens: openai.Int(sectioningBudget(story, n)),
		ResponseFormat:      schema.SegmentationResponseFormat(),
	}, "You are an expert story analyst. Respond only with valid JSON.", prompt.Sectioning(story, analysis, n))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("model segmentation failed, using fallback splitter", "err", err)
		return FallbackSplit(story, n), nil
	}

	segments, err := parseSegmentation(raw, n)
	if err != nil {
		log.Warn("unusable segmentation from model, using fallback splitter", "err", err, "output", utils.LimitStr(raw, 200))
		return FallbackSplit(story, n), nil
	}
	return segments, nil
}

// sectioningBudget sizes the completion window to roughly the story itself
// plus per-segment summaries, since the model echoes the full text back.
func sectioningBudget(story string, n int) int64 {
	tokens, err := utils.NumTokensFromMessages(story)
	if err != nil {
		tokens = len(story) / 3
	}
	budget := int64(tokens + n*256)
	return min(max(budget, 4096), 16384)
}

func parseSegmentation(raw string, n int) ([]schema.Segment, error) {
	raw = utils.CleanJSON(raw)
	if obj, ok := utils.SliceJSONObject(raw); ok {
		raw = obj
	}

	var parsed schema.Segmentation
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("decode segmentation: %w", err)
	}
	if len(parsed.Scenes) == 0 {
		return nil, fmt.Errorf("segmentation contained no scenes")
	}
	if len(parsed.Scenes) != n {
		return nil, fmt.Errorf("expected %d scenes, model returned %d", n, len(parsed.Scenes))
	}
	// A single malformed element does not void the response; its fields are
	// defaulted instead.
	for i := range parsed.Scenes {
		parsed.Scenes[i].SceneNumber = i + 1
	}
	return parsed.Scenes, nil
}

// SynthesizePrompts generates one image prompt per segment concurrently,
// rate limited against the provider. A failed segment carries its error in
// place of a prompt; one failure never discards the other segments' work.
func (e *Engine) SynthesizePrompts(ctx context.Context, segments []schema.Segment) []schema.PromptedSegment {
	results := make([]schema.PromptedSegment, len(segments))

	group, ctx := errgroup.WithContext(ctx)
	for i, seg := range segments {
		results[i] = schema.PromptedSegment{
			Content:     seg.Content,
			SceneNumber: seg.SceneNumber,
			Summary:     seg.Summary,
		}
		group.Go(func() error {
			if err := e.limiter.Wait(ctx); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			generated, err := e.gen.Generate(ctx, &openai.ChatCompletionNewParams{
				Temperature:         openai.Float(0.7),
				MaxCompletionTokens: openai.Int(512),
			}, "You are an expert at writing image generation prompts.", prompt.ForSegment(seg))
			if err != nil {
				log.Warn("prompt synthesis failed", "scene", seg.SceneNumber, "err", err)
				results[i].Error = err.Error()
				return nil
			}
			results[i].Prompt = generated
			return nil
		})
	}
	group.Wait()
	return results
}
