package imagegen

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request carries everything needed to render one scene image. Zero values
// mean "use the provider default".
type Request struct {
	Prompt   string `json:"prompt"`
	Negative string `json:"negativePrompt,omitempty"`
	Seed     int64  `json:"seed,omitempty"`
	Steps    int    `json:"steps,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Result is a rendered image plus the metadata the gallery displays.
type Result struct {
	Data      []byte    `json:"-"`
	MimeType  string    `json:"mimeType"`
	Text      string    `json:"text,omitempty"`
	Prompt    string    `json:"prompt"`
	Model     string    `json:"model"`
	Seed      int64     `json:"seed,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Steps     int       `json:"steps,omitempty"`
	Truncated bool      `json:"wasPromptTruncated,omitempty"`
	Created   time.Time `json:"timestamp"`
}

// Renderer turns a prompt into image bytes.
type Renderer interface {
	Render(ctx context.Context, req Request) (*Result, error)
}

// ErrNoImage is returned when a provider responds without any image payload.
var ErrNoImage = fmt.Errorf("no image was generated")

const qualityEnhancement = "high quality cinematic illustration, detailed artwork, professional illustration, crisp details"

const baseAvoid = "blurry, distorted, low resolution, poor quality, deformed, pixelated"

// enhance folds the negative prompt into the text itself for providers
// without a separate negative channel.
func enhance(prompt, negative string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString(". ")
	b.WriteString(qualityEnhancement)
	b.WriteString("\n\nAvoid: ")
	if negative != "" {
		b.WriteString(negative)
		b.WriteString(", ")
	}
	b.WriteString(baseAvoid)
	return b.String()
}
