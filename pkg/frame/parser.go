package frame

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"storyreel/pkg/schema"
)

// Sentinel tokens the model is instructed to wrap every scene in.
const (
	StartSentinel = "SCENE_START_"
	EndSentinel   = "SCENE_END"
)

var (
	numberRX  = regexp.MustCompile(`^(\d+)`)
	contentRX = regexp.MustCompile(`(?s)(?:STORY_)?CONTENT:\s*(.*?)\s*(?:PROMPT:|SCENE_END)`)
	promptRX  = regexp.MustCompile(`(?s)PROMPT:\s*(.*?)\s*(?:STORY_CONTENT:|CONTENT:|SCENE_END)`)
)

// Parser turns an incrementally fed token stream into complete scenes.
//
// It keeps the raw text that has not yet formed a complete frame in an
// internal buffer and scans forward from a cursor, so text that was already
// inspected is never rescanned. A frame's span is minimal: from a start
// sentinel to the nearest end sentinel after it, and the end sentinel always
// closes the last started frame. Exactly the matched span is cut out of the
// buffer; any partial text before or after it stays put so an interleaved,
// still-forming frame is preserved.
type Parser struct {
	buffer    string
	scanFrom  int
	malformed int
}

// Feed appends a chunk of raw model output and returns every scene whose
// frame completed with this chunk, in the order they appear in the buffer.
func (p *Parser) Feed(chunk string) []schema.Scene {
	p.buffer += chunk

	var scenes []schema.Scene
	for {
		// The freshly appended chunk may complete an end sentinel that
		// began in an earlier chunk, so back the search up by one
		// sentinel length.
		from := max(p.scanFrom-len(EndSentinel)+1, 0)
		rel := strings.Index(p.buffer[from:], EndSentinel)
		if rel == -1 {
			p.scanFrom = len(p.buffer)
			return scenes
		}
		end := from + rel + len(EndSentinel)

		start := strings.LastIndex(p.buffer[:end], StartSentinel)
		if start == -1 {
			// Orphan end sentinel with no open frame; skip past it.
			p.scanFrom = end
			continue
		}

		span := p.buffer[start:end]
		scene, ok := parseFrame(span)
		if !ok {
			// A closed frame missing a required field. It stays in the
			// buffer in case the model is still writing it, but a frame
			// that never completes is simply never emitted.
			p.malformed++
			log.Warn("incomplete scene frame held in buffer", "span", len(span), "seen", p.malformed)
			p.scanFrom = end
			continue
		}

		scenes = append(scenes, scene)
		p.buffer = p.buffer[:start] + p.buffer[end:]
		p.scanFrom = start
	}
}

// Buffer returns the text that has not yet been consumed by a complete frame.
func (p *Parser) Buffer() string { return p.buffer }

// Malformed reports how many closed frames were missing a required field.
func (p *Parser) Malformed() int { return p.malformed }

// Scan parses every complete frame in buffer in one pass. It is a pure
// function of its input: the same buffer always produces the same scenes and
// the same remainder.
func Scan(buffer string) ([]schema.Scene, string) {
	var p Parser
	scenes := p.Feed(buffer)
	return scenes, p.Buffer()
}

// parseFrame extracts the scene number, content, and prompt fields from one
// sentinel-delimited span. The two labeled fields may appear in either order.
func parseFrame(span string) (schema.Scene, bool) {
	body := span[len(StartSentinel):]
	num := numberRX.FindStringSubmatch(body)
	if num == nil {
		return schema.Scene{}, false
	}
	n, err := strconv.Atoi(num[1])
	if err != nil || n <= 0 {
		return schema.Scene{}, false
	}

	content := contentRX.FindStringSubmatch(span)
	if content == nil {
		return schema.Scene{}, false
	}
	prompt := promptRX.FindStringSubmatch(span)
	if prompt == nil {
		return schema.Scene{}, false
	}

	return schema.Scene{
		SceneNumber: n,
		Content:     strings.TrimSpace(content[1]),
		Prompt:      strings.TrimSpace(prompt[1]),
	}, true
}
