package prompt

import (
	"fmt"
	"strings"

	"storyreel/pkg/schema"
)

// Analysis asks for a short structural read of the story before sectioning.
func Analysis(story string) string {
	return fmt.Sprintf(`You are an expert story analyst. Analyze the following story to understand its narrative structure, key events, and natural breaking points.

Story to analyze:
%s

Please provide a brief analysis of the story's structure, including:
1. Main narrative arcs or sections
2. Key events and turning points
3. Scene transitions (location changes, time jumps, POV shifts)
4. Emotional beats and pacing

Respond with a short analysis (2-3 sentences) that will help in creating meaningful scene divisions.`, story)
}

// Sectioning asks the model to break the story into exactly n contiguous
// segments, returned as a single JSON object.
func Sectioning(story, analysis string, n int) string {
	return fmt.Sprintf(`You are an expert story analyst. Break down the following story into exactly %[1]d logical, visually distinct scenes, ensuring the entire story is covered from beginning to end.

STORY ANALYSIS:
%[2]s

STORY:
%[3]s

GUIDELINES:
1. Create exactly %[1]d scenes that cover the entire story from start to finish
2. Each scene should represent a distinct moment, location, or narrative beat
3. Prioritize natural breaks in the story (time jumps, location changes, POV shifts)
4. Ensure each scene has clear visual elements that can be illustrated
5. Maintain narrative flow and continuity between scenes
6. Keep dialogue and action together when they belong to the same scene
7. Distribute content proportionally - longer sections of the story should get more scenes

IMPORTANT:
- The total number of scenes MUST be exactly %[1]d
- The ENTIRE story must be covered with NO content left out
- Each scene summary must be 4-5 sentences long, describing the scene's key elements, actions, emotions, and context
- Respond with ONLY a valid JSON object. Do not include any markdown formatting, code blocks, or additional text.

FORMAT:
{
  "scenes": [
    {
      "content": "The actual scene text from the story, including all relevant dialogue and action",
      "sceneNumber": 1,
      "summary": "Detailed 4-5 sentence summary of the scene's key elements."
    }
  ]
}`, n, analysis, story)
}

// SceneStream instructs the model to emit sentinel-framed scenes so they can
// be parsed incrementally off the token stream. When continueFrom is
// positive the model is asked to pick up at the next scene number; coverage
// continuity on resume is best-effort, carried by the wording alone.
func SceneStream(story string, sceneCount, continueFrom int) string {
	startScene := continueFrom + 1
	var task string
	if continueFrom > 0 {
		task = fmt.Sprintf("Continue breaking down the story from scene %d through scene %d, resuming where scene %d left off in the narrative", startScene, sceneCount, continueFrom)
	} else {
		task = fmt.Sprintf("Break down the story into exactly %d distinct cinematic scenes, from scene 1 through scene %d", sceneCount, sceneCount)
	}

	return fmt.Sprintf(`You are an expert at creating cinematic image generation prompts for animated movie-style storytelling.

Here is the entire story:
%s

CRITICAL REQUIREMENTS:
- The complete story spans exactly %d scenes, covered chronologically from beginning to end
- %s
- Each scene must cover a portion of the story in order; no portion may be skipped
- Each scene should be a complete visual moment that advances the story

IMPORTANT: You must respond in this EXACT format for each scene:

SCENE_START_[NUMBER]
STORY_CONTENT: [A brief 2-3 word description of the scene]
PROMPT: [A detailed cinematic image prompt for the scene]
SCENE_END

For the PROMPT section, write four labeled paragraphs:

Main Subject: describe the characters in view - gender, age, appearance, clothing, facial expression, and what they are doing.
Scene Context: the location, time of day, weather, and lighting that set the atmosphere.
Composition: camera angle, framing, depth of field, and any compositional technique such as rule of thirds or leading lines.
Style Notes: artistic style, color palette, and mood; cinematic and richly atmospheric.

GUIDELINES:
- Maintain visual consistency for characters and locations across scenes
- No dialogue or text in the images
- Vary camera angles and distances to keep the sequence visually interesting
- Each prompt must be detailed enough for high-quality AI image generation
- The STORY_CONTENT field is only a simple 2-3 word label; the PROMPT field carries all the detail

Generate scenes %d through %d now:`, story, sceneCount, task, startScene, sceneCount)
}

// ForSegment asks for a single image prompt derived from one story segment.
func ForSegment(seg schema.Segment) string {
	summary := seg.Summary
	if strings.TrimSpace(summary) == "" {
		summary = "No summary available"
	}
	return fmt.Sprintf(`You are an expert at creating image generation prompts for AI art tools like DALL-E, Midjourney, and Stable Diffusion.

SCENE SUMMARY:
%s

FULL SCENE CONTEXT:
%s

Create a detailed, vivid image prompt that captures the essence of this scene. Cover the characters (appearance, emotional state, posture, key actions), the environment (location, time of day, lighting, weather, notable props), the composition (camera angle, framing, depth of field), and the style and mood (artistic style, color palette, emotional tone).

IMPORTANT:
- Be specific and detailed in your descriptions
- Maintain consistency with the scene's content
- Focus on what can be visually represented
- Return ONLY the image prompt, no additional text or formatting.`, summary, seg.Content)
}

// Regenerate asks for a fresh visual interpretation of a scene's content.
func Regenerate(sceneContent string) string {
	return fmt.Sprintf(`You are an expert at creating image generation prompts for AI art tools like DALL-E, Midjourney, and Stable Diffusion.

Convert this story scene into a detailed, vivid image prompt with a fresh perspective:

Scene: %s

Create a prompt that includes character descriptions, environment details, mood and lighting, key visual elements and actions, artistic style suggestions, and camera or composition notes. Try to offer a different visual interpretation than what might be obvious.

IMPORTANT: Respond with ONLY the image prompt text. Do not include any formatting, explanations, or additional text.`, sceneContent)
}

// EnhanceSystem is the system prompt for the prompt-enhancement stream.
const EnhanceSystem = `You are an expert at enhancing image generation prompts, specializing in vivid, cinematic scenes with strong subject focus and environmental storytelling. Enhance the prompt you are given in three passes:

1. Subject Focus: sharpen the main subject's details - pose, expression, key characteristics, and emotional presence - so it stands out while staying in harmony with the scene.
2. Environmental Context: develop the atmosphere and mood with specific lighting (time of day, light sources, shadows) and supporting environmental elements across foreground, midground, and background.
3. Compositional Elements: suggest camera angle and perspective, depth of field and focus points, scene framing, and a camera lens focal length (35mm, 50mm, 85mm, 135mm).

Format the enhanced prompt in clear sections while keeping a natural flow:
Main Subject: [enhanced subject description]
Scene Context: [environmental and atmospheric details]
Composition: [camera and framing specifics]

Keep the original intent but make it more vivid and specific.`

// EnhanceUser wraps the original prompt for the enhancement request.
func EnhanceUser(prompt string) string {
	return fmt.Sprintf(`Original prompt: "%s"

Please enhance this prompt focusing on:
1. Making the main subject more vivid and detailed
2. Creating a rich environmental context
3. Specifying natural compositional elements

Keep the enhanced prompt flowing and narrative while maintaining the original intent.`, prompt)
}
