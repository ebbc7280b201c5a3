package schema

// Scene is one structured unit of streamed output: a numbered label plus the
// image-generation prompt derived for it.
type Scene struct {
	SceneNumber int    `json:"sceneNumber" jsonschema_description:"1-based position of the scene within the run"`
	Content     string `json:"content" jsonschema_description:"Short human-readable label for the scene"`
	Prompt      string `json:"prompt" jsonschema_description:"Detailed image-generation prompt for the scene"`
}

// Segment is the non-streaming decomposition unit: a contiguous slice of the
// source story with a model- or synthetically-produced summary.
type Segment struct {
	Content     string `json:"content" jsonschema_description:"Verbatim scene text taken from the story, including dialogue and action"`
	SceneNumber int    `json:"sceneNumber" jsonschema_description:"1-based position of the segment"`
	Summary     string `json:"summary" jsonschema_description:"Detailed 4-5 sentence summary of the segment's key elements"`
}

// Segmentation is the shape the sectioning model call must return.
type Segmentation struct {
	Scenes []Segment `json:"scenes" jsonschema_description:"Segments covering the entire story contiguously from start to end"`
}

// PromptedSegment is a Segment joined with its synthesized image prompt.
// Error carries a per-segment synthesis failure instead of voiding the batch.
type PromptedSegment struct {
	Content     string `json:"content"`
	Prompt      string `json:"prompt,omitempty"`
	SceneNumber int    `json:"sceneNumber"`
	Summary     string `json:"summary"`
	Error       string `json:"error,omitempty"`
}
