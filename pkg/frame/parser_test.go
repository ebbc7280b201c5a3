package frame

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameText(n int, content, prompt string) string {
	return fmt.Sprintf("SCENE_START_%d\nSTORY_CONTENT: %s\nPROMPT: %s\nSCENE_END", n, content, prompt)
}

func TestScanSingleFrame(t *testing.T) {
	buffer := frameText(1, "A knight rides out at dawn.", "A lone knight on horseback, golden sunrise")

	scenes, rest := Scan(buffer)
	require.Len(t, scenes, 1)
	assert.Equal(t, 1, scenes[0].SceneNumber)
	assert.Equal(t, "A knight rides out at dawn.", scenes[0].Content)
	assert.Equal(t, "A lone knight on horseback, golden sunrise", scenes[0].Prompt)
	assert.Empty(t, rest)
}

func TestScanIsDeterministic(t *testing.T) {
	buffer := "narration before " + frameText(1, "Content one.", "Prompt one") + " trailing text"

	first, firstRest := Scan(buffer)
	second, secondRest := Scan(buffer)

	require.Equal(t, first, second)
	assert.Equal(t, firstRest, secondRest)
	assert.Equal(t, "narration before  trailing text", firstRest)
}

func TestScanBackToBackFramesNoBleed(t *testing.T) {
	buffer := frameText(1, "First scene text.", "first prompt") + frameText(2, "Second scene text.", "second prompt")

	scenes, rest := Scan(buffer)
	require.Len(t, scenes, 2)
	assert.Empty(t, rest)

	assert.Equal(t, 1, scenes[0].SceneNumber)
	assert.Equal(t, "First scene text.", scenes[0].Content)
	assert.NotContains(t, scenes[0].Content, "Second")
	assert.NotContains(t, scenes[0].Prompt, "second")

	assert.Equal(t, 2, scenes[1].SceneNumber)
	assert.Equal(t, "Second scene text.", scenes[1].Content)
	assert.NotContains(t, scenes[1].Content, "First")
}

func TestFeedAcrossChunkBoundaries(t *testing.T) {
	full := frameText(1, "Split across chunks.", "a split prompt")
	var p Parser

	// Cut in the middle of the end sentinel.
	cut := len(full) - 4
	scenes := p.Feed(full[:cut])
	assert.Empty(t, scenes)

	scenes = p.Feed(full[cut:])
	require.Len(t, scenes, 1)
	assert.Equal(t, "Split across chunks.", scenes[0].Content)
	assert.Empty(t, p.Buffer())
}

func TestFeedFieldOrderTolerance(t *testing.T) {
	buffer := "SCENE_START_3\nPROMPT: prompt first\nSTORY_CONTENT: content second\nSCENE_END"

	scenes, _ := Scan(buffer)
	require.Len(t, scenes, 1)
	assert.Equal(t, 3, scenes[0].SceneNumber)
	assert.Equal(t, "content second", scenes[0].Content)
	assert.Equal(t, "prompt first", scenes[0].Prompt)
}

func TestFeedBareContentLabel(t *testing.T) {
	buffer := "SCENE_START_2\nCONTENT: plain label\nPROMPT: still works\nSCENE_END"

	scenes, _ := Scan(buffer)
	require.Len(t, scenes, 1)
	assert.Equal(t, "plain label", scenes[0].Content)
}

func TestFeedIncompleteFrameStaysBuffered(t *testing.T) {
	var p Parser
	scenes := p.Feed("SCENE_START_1\nSTORY_CONTENT: no prompt yet")

	assert.Empty(t, scenes)
	assert.Contains(t, p.Buffer(), "no prompt yet")
}

func TestFeedMalformedClosedFrameCounted(t *testing.T) {
	var p Parser
	// Closed frame with no PROMPT field.
	scenes := p.Feed("SCENE_START_1\nSTORY_CONTENT: content only\nSCENE_END")

	assert.Empty(t, scenes)
	assert.Equal(t, 1, p.Malformed())
	assert.Contains(t, p.Buffer(), "content only")
}

func TestFeedRemovesExactSpanOnly(t *testing.T) {
	before := "SCENE_START_2\nSTORY_CONTENT: still forming"
	complete := frameText(1, "Done.", "done prompt")

	var p Parser
	scenes := p.Feed(before + complete)

	require.Len(t, scenes, 1)
	assert.Equal(t, 1, scenes[0].SceneNumber)
	assert.Equal(t, before, p.Buffer())
}

func TestFeedOrphanEndSentinel(t *testing.T) {
	var p Parser
	scenes := p.Feed("SCENE_END leftover " + frameText(1, "Real frame.", "real prompt"))

	require.Len(t, scenes, 1)
	assert.Equal(t, "Real frame.", scenes[0].Content)
}

func TestFeedTokenByToken(t *testing.T) {
	full := frameText(1, "One character at a time.", "slow prompt") + frameText(2, "Second.", "fast prompt")

	var p Parser
	var got []int
	for _, r := range full {
		for _, s := range p.Feed(string(r)) {
			got = append(got, s.SceneNumber)
		}
	}
	assert.Equal(t, []int{1, 2}, got)
	assert.Empty(t, p.Buffer())
}
