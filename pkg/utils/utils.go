package utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ErrJSON produces a standard JSON error response.
func ErrJSON(msg string) map[string]any {
	return map[string]any{
		"success": false,
		"error":   msg,
	}
}

// SSEWriter streams server-sent events over an echo response. Every event is
// a single `data: <JSON>` frame; the event kind travels inside the payload.
type SSEWriter struct {
	c    echo.Context
	w    http.ResponseWriter
	fl   http.Flusher
	done bool
}

// NewSSEWriter initializes SSE headers and returns a writer.
func NewSSEWriter(c echo.Context) *SSEWriter {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	if f, ok := w.Writer.(http.Flusher); ok {
		f.Flush()
		return &SSEWriter{c: c, w: w, fl: f}
	}

	panic("SSE not supported: ResponseWriter not flushable")
}

// Send marshals data and writes it as one SSE data frame.
func (s *SSEWriter) Send(data any) error {
	if s.done {
		return nil
	}
	var payload string
	switch v := data.(type) {
	case string:
		payload = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		payload = string(b)
	}
	fmt.Fprintf(s.w, "data: %s\n\n", payload)
	s.fl.Flush()
	return nil
}

// Close finalizes the stream.
func (s *SSEWriter) Close() {
	if s.done {
		return
	}
	s.done = true
	s.fl.Flush()
}

// CleanJSON removes markdown code blocks from a string to extract raw JSON.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) >= 2 {
			if strings.HasPrefix(lines[0], "```") {
				lines = lines[1:]
			}
			if len(lines) > 0 && strings.HasPrefix(lines[len(lines)-1], "```") {
				lines = lines[:len(lines)-1]
			}
			s = strings.Join(lines, "\n")
		}
	}
	return strings.TrimSpace(s)
}

// SliceJSONObject cuts s down to the substring spanning the first '{' and
// the last '}', or returns false when no object braces are present.
func SliceJSONObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return s[start : end+1], true
}

// TruncateAtBoundary caps s at limit characters, preferring to cut at the
// last sentence or line break before the limit.
func TruncateAtBoundary(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	truncated := string(runes[:limit])
	breakPoint := max(strings.LastIndex(truncated, "."), strings.LastIndex(truncated, "\n"))
	if breakPoint > 0 {
		return truncated[:breakPoint+1]
	}
	return truncated
}

// LimitStr returns a string truncated to n characters with "..." appended if longer.
func LimitStr(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// SanitizeFilename replaces dangerous characters with underscores.
func SanitizeFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.TrimSpace(s)
	return s
}
