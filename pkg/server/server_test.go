package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyreel/pkg/blob"
	"storyreel/pkg/imagegen"
	"storyreel/pkg/inference"
)

// scriptedGenerator streams pre-baked chunks and answers Generate calls from
// a queue.
type scriptedGenerator struct {
	mu        sync.Mutex
	chunks    []string
	streamErr error
	replies   []string
	replyErrs []error
}

func (s *scriptedGenerator) Generate(context.Context, *openai.ChatCompletionNewParams, string, string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	var err error
	if len(s.replyErrs) > 0 {
		err = s.replyErrs[0]
		s.replyErrs = s.replyErrs[1:]
	}
	return reply, err
}

func (s *scriptedGenerator) Stream(context.Context, *openai.ChatCompletionNewParams, string, string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, chunk := range s.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if s.streamErr != nil {
			yield("", s.streamErr)
		}
	}
}

type staticRenderer struct {
	result *imagegen.Result
	err    error
}

func (r *staticRenderer) Render(context.Context, imagegen.Request) (*imagegen.Result, error) {
	return r.result, r.err
}

func newTestServer(t *testing.T, gen inference.Generator, renderer imagegen.Renderer) *Server {
	t.Helper()
	store, err := blob.NewDiskStore(t.TempDir(), "/images")
	require.NoError(t, err)

	cfg := Config{
		Generators:      map[string]inference.Generator{"openai": gen},
		DefaultProvider: "openai",
		Blobs:           store,
	}
	if renderer != nil {
		cfg.Renderers = map[string]imagegen.Renderer{"gemini": renderer, "together": renderer}
	}
	return NewServer(context.Background(), cfg)
}

func postJSON(s *Server, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(b)))
	req.Header.Set(echoHeaderContentType, "application/json")
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)
	return rec
}

const echoHeaderContentType = "Content-Type"

// sseEvents decodes every `data:` frame in an SSE body.
func sseEvents(t *testing.T, body string) []map[string]any {
	t.Helper()
	var events []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if !strings.HasPrefix(block, "data: ") {
			continue
		}
		var ev map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &ev))
		events = append(events, ev)
	}
	return events
}

func sceneChunks(n int) []string {
	var chunks []string
	for i := 1; i <= n; i++ {
		text := fmt.Sprintf("SCENE_START_%d\nSTORY_CONTENT: Scene %d happens.\nPROMPT: prompt %d\nSCENE_END\n", i, i, i)
		// Split each frame into small chunks to exercise incremental parsing.
		for len(text) > 0 {
			cut := min(7, len(text))
			chunks = append(chunks, text[:cut])
			text = text[cut:]
		}
	}
	return chunks
}

func TestGenerateStoryPromptsStreamsScenes(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{chunks: sceneChunks(2)}, nil)

	rec := postJSON(s, "/api/generate-story-prompts", map[string]any{
		"story":      "A story long enough to split.",
		"sceneCount": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	events := sseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)

	assert.Equal(t, "progress", events[0]["type"])
	assert.EqualValues(t, 0, events[0]["progress"])

	var sceneNumbers []int
	var sawComplete bool
	for _, ev := range events {
		switch ev["type"] {
		case "scene":
			scene := ev["scene"].(map[string]any)
			sceneNumbers = append(sceneNumbers, int(scene["sceneNumber"].(float64)))
			assert.NotEmpty(t, scene["content"])
			assert.NotEmpty(t, scene["prompt"])
		case "complete":
			sawComplete = true
			assert.EqualValues(t, 2, ev["totalScenes"])
			assert.Equal(t, true, ev["isComplete"])
		}
	}
	assert.Equal(t, []int{1, 2}, sceneNumbers)
	assert.True(t, sawComplete)

	// The last two events are the 100% progress then the completion.
	assert.Equal(t, "progress", events[len(events)-2]["type"])
	assert.EqualValues(t, 100, events[len(events)-2]["progress"])
	assert.Equal(t, "complete", events[len(events)-1]["type"])
}

func TestGenerateStoryPromptsProgressCap(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{chunks: sceneChunks(4)}, nil)

	rec := postJSON(s, "/api/generate-story-prompts", map[string]any{
		"story":      "Four scenes worth of story.",
		"sceneCount": 4,
	})
	events := sseEvents(t, rec.Body.String())

	for i, ev := range events[:len(events)-2] {
		if ev["type"] == "progress" && i > 0 {
			assert.LessOrEqual(t, ev["progress"].(float64), 95.0)
		}
	}
	assert.EqualValues(t, 100, events[len(events)-2]["progress"])
}

func TestGenerateStoryPromptsValidation(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, nil)

	rec := postJSON(s, "/api/generate-story-prompts", map[string]any{"story": "  ", "sceneCount": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	rec = postJSON(s, "/api/generate-story-prompts", map[string]any{"story": "ok", "sceneCount": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateStoryPromptsUpstreamFailure(t *testing.T) {
	chunks := sceneChunks(1)
	s := newTestServer(t, &scriptedGenerator{chunks: chunks, streamErr: errors.New("upstream down")}, nil)

	rec := postJSON(s, "/api/generate-story-prompts", map[string]any{
		"story":      "A story.",
		"sceneCount": 3,
	})
	events := sseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)

	// Scene 1 was already delivered before the failure and stays valid.
	var sawScene bool
	for _, ev := range events {
		if ev["type"] == "scene" {
			sawScene = true
		}
	}
	assert.True(t, sawScene)

	last := events[len(events)-1]
	assert.Equal(t, "error", last["type"])
	assert.NotEmpty(t, last["message"])
}

func TestGenerateStoryPromptsResume(t *testing.T) {
	// The model replays scene 5 then continues; 5 must not be re-emitted.
	var chunks []string
	for i := 5; i <= 7; i++ {
		chunks = append(chunks, fmt.Sprintf("SCENE_START_%d\nSTORY_CONTENT: c%d\nPROMPT: p%d\nSCENE_END\n", i, i, i))
	}
	s := newTestServer(t, &scriptedGenerator{chunks: chunks}, nil)

	rec := postJSON(s, "/api/generate-story-prompts", map[string]any{
		"story":        "A long story.",
		"sceneCount":   10,
		"continueFrom": 5,
	})
	events := sseEvents(t, rec.Body.String())
	require.NotEmpty(t, events)

	assert.Equal(t, "progress", events[0]["type"])
	assert.EqualValues(t, 50, events[0]["progress"])

	var sceneNumbers []int
	for _, ev := range events {
		if ev["type"] == "scene" {
			scene := ev["scene"].(map[string]any)
			sceneNumbers = append(sceneNumbers, int(scene["sceneNumber"].(float64)))
		}
	}
	assert.Equal(t, []int{6, 7}, sceneNumbers)

	last := events[len(events)-1]
	assert.Equal(t, "complete", last["type"])
	assert.EqualValues(t, 7, last["totalScenes"])
	assert.Equal(t, false, last["isComplete"])
}

func TestProcessStorySectionOnlyFallback(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"analysis", "not valid json at all"}}
	s := newTestServer(t, gen, nil)

	rec := postJSON(s, "/api/process-story", map[string]any{
		"story":       "Sentence one is long enough. Sentence two is long enough. Sentence three is long enough. Sentence four is long enough.",
		"sceneCount":  2,
		"sectionOnly": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scenes []struct {
			Content     string `json:"content"`
			SceneNumber int    `json:"sceneNumber"`
			Summary     string `json:"summary"`
		} `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scenes, 2)
	assert.Equal(t, 1, resp.Scenes[0].SceneNumber)
	assert.Equal(t, 2, resp.Scenes[1].SceneNumber)
	assert.Equal(t, 2, strings.Count(resp.Scenes[0].Content, "."))
	assert.Equal(t, 2, strings.Count(resp.Scenes[1].Content, "."))
}

func TestProcessStoryWithPrompts(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{
		"analysis",
		`{"scenes":[{"content":"Part one.","sceneNumber":1,"summary":"s1"},{"content":"Part two.","sceneNumber":2,"summary":"s2"}]}`,
		"prompt for a scene",
		"prompt for a scene",
	}}
	s := newTestServer(t, gen, nil)

	rec := postJSON(s, "/api/process-story", map[string]any{
		"story":      "Part one. Part two.",
		"sceneCount": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scenes []struct {
			Content string `json:"content"`
			Prompt  string `json:"prompt"`
			Error   string `json:"error"`
		} `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scenes, 2)
	for _, sc := range resp.Scenes {
		assert.Empty(t, sc.Error)
		assert.Equal(t, "prompt for a scene", sc.Prompt)
	}
}

func TestRegeneratePromptWithDiff(t *testing.T) {
	gen := &scriptedGenerator{replies: []string{"a burning forest at night"}}
	s := newTestServer(t, gen, nil)

	rec := postJSON(s, "/api/regenerate-prompt", map[string]any{
		"sceneContent":   "The forest catches fire.",
		"previousPrompt": "a dark forest at night",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Prompt string `json:"prompt"`
		Diff   []struct {
			Op   int    `json:"op"`
			Text string `json:"text"`
		} `json:"diff"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "a burning forest at night", resp.Prompt)
	assert.NotEmpty(t, resp.Diff)
}

func TestEnhancePromptStreams(t *testing.T) {
	gen := &scriptedGenerator{chunks: []string{"Main Subject: ", "a knight ", "at dawn"}}
	s := newTestServer(t, gen, nil)

	rec := postJSON(s, "/api/enhance-prompt", map[string]any{"prompt": "a knight"})
	require.Equal(t, http.StatusOK, rec.Code)

	events := sseEvents(t, rec.Body.String())
	require.Len(t, events, 3)
	var combined strings.Builder
	for _, ev := range events {
		combined.WriteString(ev["content"].(string))
	}
	assert.Equal(t, "Main Subject: a knight at dawn", combined.String())
}

func TestGenerateImagePersistsAndReturnsDataURL(t *testing.T) {
	renderer := &staticRenderer{result: &imagegen.Result{
		Data:     []byte("fakepng"),
		MimeType: "image/png",
		Prompt:   "a castle",
		Model:    "test-model",
		Created:  time.Now(),
	}}
	s := newTestServer(t, &scriptedGenerator{}, renderer)

	rec := postJSON(s, "/api/generate-image-together", map[string]any{
		"prompt":      "a castle",
		"projectName": "voyage",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		ID        string `json:"id"`
		ImageData string `json:"imageData"`
		BlobURL   string `json:"blobUrl"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.True(t, strings.HasPrefix(resp.ImageData, "data:image/png;base64,"))
	assert.Equal(t, "/images/voyage-1.png", resp.BlobURL)

	// The gallery sees it, with project and sequence parsed back out.
	listRec := httptest.NewRecorder()
	s.Echo.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/api/images", nil))
	require.Equal(t, http.StatusOK, listRec.Code)

	var list struct {
		Images []struct {
			ID             string `json:"id"`
			ProjectName    string `json:"projectName"`
			SequenceNumber int    `json:"sequenceNumber"`
		} `json:"images"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &list))
	require.Len(t, list.Images, 1)
	assert.Equal(t, "voyage-1.png", list.Images[0].ID)
	assert.Equal(t, "voyage", list.Images[0].ProjectName)
	assert.Equal(t, 1, list.Images[0].SequenceNumber)
}

func TestGenerateImageRequiresPrompt(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, &staticRenderer{})

	rec := postJSON(s, "/api/generate-image", map[string]any{"prompt": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteAndClearImages(t *testing.T) {
	renderer := &staticRenderer{result: &imagegen.Result{Data: []byte("x"), MimeType: "image/png", Created: time.Now()}}
	s := newTestServer(t, &scriptedGenerator{}, renderer)

	for i := 0; i < 2; i++ {
		rec := postJSON(s, "/api/generate-image", map[string]any{"prompt": fmt.Sprintf("image %d", i), "projectName": "p"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(s, "/api/images/delete", map[string]any{"key": "p-1.png"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(s, "/api/images/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Deleted int `json:"deleted"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Deleted)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, nil)

	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestConcurrentStoresGetDistinctKeys(t *testing.T) {
	s := newTestServer(t, &scriptedGenerator{}, nil)

	const n = 8
	keys := make([]string, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := s.Echo.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), httptest.NewRecorder())
			obj, err := s.store(c, imageReq{ProjectName: "voyage"}, &imagegen.Result{Data: []byte{byte(i)}})
			keys[i], errs[i] = obj.Key, err
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i, key := range keys {
		require.NoError(t, errs[i])
		assert.False(t, seen[key], "key %q written twice", key)
		seen[key] = true
	}

	objects, err := s.blobs.List("voyage")
	require.NoError(t, err)
	assert.Len(t, objects, n)
}
