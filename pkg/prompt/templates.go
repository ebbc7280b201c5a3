package prompt

import (
	"fmt"
	"strings"
)

// Template holds the opaque style configuration applied around a scene
// description when building the final image prompt.
type Template struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Template    TemplateBody `json:"template"`
}

type TemplateBody struct {
	Style             string `json:"style"`
	Background        string `json:"background"`
	CinematicElements string `json:"cinematicElements"`
	FocalLength       string `json:"focalLength"`
	NegativePrompt    string `json:"negativePrompt"`
}

const baseNegative = "blurry, low quality, distorted, deformed, ugly, bad anatomy, out of frame, cropped, worst quality, low resolution, bad art"

// Defaults is the built-in template set. Callers may replace it with a set
// loaded from configuration; the wording is treated as opaque data.
var Defaults = []Template{
	{
		ID:          "no-template",
		Name:        "No Template",
		Description: "Use your prompt directly without any style enhancements or additional details.",
		Template: TemplateBody{
			NegativePrompt: baseNegative,
		},
	},
	{
		ID:          "cinematic-epic",
		Name:        "Cinematic Epic",
		Description: "An ultra-detailed cinematic style with grandiose composition and dramatic lighting.",
		Template: TemplateBody{
			Style:             "The illustration is crafted in a hyper-detailed cinematic style with expressive character designs, bold dynamic poses, and intricate stylized linework. The color palette is vibrant yet balanced, with luminous highlights and velvety shadows; textures such as fabric, metal, and skin are rendered with meticulous detail.",
			Background:        "The background is a rich, atmospheric setting rendered with a subtle bokeh effect and shallow depth of field to keep focus on the subject. Strategic light sources create dramatic silhouettes and enhance depth with volumetric lighting and soft god rays.",
			CinematicElements: "The artwork is framed in a widescreen 16:9 aspect ratio with high-contrast, purposeful lighting such as golden-hour rim light or intense backlighting. Shadows are deep and sculpted; environmental effects such as haze, drifting particles, or rain heighten the drama.",
			FocalLength:       "The scene is captured with the equivalent of a medium telephoto lens (approximately 85mm-135mm full-frame), delivering cinematic compression that isolates the subject and flattens perspective for a painterly quality.",
			NegativePrompt:    baseNegative + ", unnatural proportions, extra limbs, poorly drawn hands, text artifacts, watermarks, signatures, oversaturated colors, unbalanced composition",
		},
	},
	{
		ID:          "painterly-storybook",
		Name:        "Painterly Storybook",
		Description: "A soft painterly illustration style with warm storybook atmosphere.",
		Template: TemplateBody{
			Style:             "The illustration uses visible painterly brushwork with soft edges and layered glazes, closer to gouache than to photography. Character features are gently stylized and expressive.",
			Background:        "The background is loose and suggestive rather than literal, with warm ambient light and softly blended shapes that frame the subject without competing with it.",
			CinematicElements: "Framing is intimate, with the subject placed off-center and generous negative space. Light falls in broad warm washes; shadow detail stays soft and readable.",
			FocalLength:       "The scene reads like a 50mm normal-lens view: natural perspective, modest depth of field, nothing exaggerated.",
			NegativePrompt:    baseNegative + ", photorealistic rendering, harsh specular highlights, text artifacts, watermarks",
		},
	},
}

// Find returns the template with the given id from set, or false.
func Find(set []Template, id string) (Template, bool) {
	for _, t := range set {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Build combines a scene description with a template into the final prompt
// and negative prompt pair.
func Build(set []Template, sceneDescription, templateID string) (prompt, negative string, err error) {
	if templateID == "" {
		templateID = "no-template"
	}
	t, ok := Find(set, templateID)
	if !ok {
		return "", "", fmt.Errorf("template %s not found", templateID)
	}

	if t.ID == "no-template" {
		return sceneDescription + ", best quality, highly detailed", t.Template.NegativePrompt, nil
	}

	b := t.Template
	enhanced := strings.TrimSpace(fmt.Sprintf(`Scene: %s

Style: %s

Background Details: %s

Cinematic Elements: %s

Technical Details: %s

Additional Requirements: masterpiece, best quality, highly detailed, ultra sharp focus, professional composition`,
		sceneDescription, b.Style, b.Background, b.CinematicElements, b.FocalLength))

	return enhanced, b.NegativePrompt, nil
}
