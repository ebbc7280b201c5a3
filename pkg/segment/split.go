package segment

import (
	"fmt"
	"regexp"
	"strings"

	"storyreel/pkg/schema"
)

var (
	paragraphRX  = regexp.MustCompile(`\n\s*\n+`)
	whitespaceRX = regexp.MustCompile(`\s+`)
)

// minSentenceLen filters out fragments too short to carry a scene on their
// own, unless dropping them would leave fewer sentences than segments.
const minSentenceLen = 20

// FallbackSplit deterministically divides story into exactly n contiguous
// segments without any model involvement. Paragraph boundaries are preferred;
// a story with too few paragraphs has its longest segments bisected until n
// exist; a story with no paragraph breaks at all is distributed by sentence.
// Very short inputs may yield fewer than n segments.
func FallbackSplit(story string, n int) []schema.Segment {
	story = strings.TrimSpace(story)
	if story == "" || n <= 0 {
		return nil
	}
	if n == 1 {
		return []schema.Segment{{Content: story, SceneNumber: 1, Summary: autoSummary(1)}}
	}

	paragraphs := splitParagraphs(story)
	if len(paragraphs) <= 1 {
		return splitBySentences(story, n)
	}

	segments := accumulateParagraphs(paragraphs, n)
	for len(segments) < n {
		segments = bisectLongest(segments)
	}
	return renumber(segments)
}

func splitParagraphs(story string) []string {
	var out []string
	for _, p := range paragraphRX.Split(story, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// accumulateParagraphs packs paragraphs into at most n segments, starting a
// new segment once the running word count passes the proportional threshold
// for the current segment index.
func accumulateParagraphs(paragraphs []string, n int) []schema.Segment {
	totalWords := 0
	for _, p := range paragraphs {
		totalWords += len(whitespaceRX.Split(p, -1))
	}
	wordsPerSegment := max(1, (totalWords+n-1)/n)

	var segments []schema.Segment
	var current []string
	wordCount := 0
	number := 1

	for _, p := range paragraphs {
		pw := len(whitespaceRX.Split(p, -1))
		if len(current) > 0 && wordCount+pw > number*wordsPerSegment && number < n {
			segments = append(segments, schema.Segment{
				Content:     strings.Join(current, " "),
				SceneNumber: number,
				Summary:     autoSummary(number),
			})
			current = nil
			number++
		}
		current = append(current, p)
		wordCount += pw
	}
	if len(current) > 0 && number <= n {
		segments = append(segments, schema.Segment{
			Content:     strings.Join(current, " "),
			SceneNumber: number,
			Summary:     autoSummary(number),
		})
	}
	return segments
}

// bisectLongest splits the longest segment in half by character length and
// renumbers the result.
func bisectLongest(segments []schema.Segment) []schema.Segment {
	longest := 0
	for i, s := range segments {
		if len(s.Content) > len(segments[longest].Content) {
			longest = i
		}
	}

	target := segments[longest]
	runes := []rune(target.Content)
	mid := len(runes) / 2
	first := strings.TrimSpace(string(runes[:mid]))
	second := strings.TrimSpace(string(runes[mid:]))

	out := make([]schema.Segment, 0, len(segments)+1)
	out = append(out, segments[:longest]...)
	out = append(out,
		schema.Segment{Content: first, Summary: fmt.Sprintf("Part 1 of split scene %d", target.SceneNumber)},
		schema.Segment{Content: second, Summary: fmt.Sprintf("Part 2 of split scene %d", target.SceneNumber)},
	)
	out = append(out, segments[longest+1:]...)
	return renumber(out)
}

// splitBySentences distributes the story's sentences evenly across n
// segments. Short fragments are dropped as noise unless that would leave
// fewer sentences than segments.
func splitBySentences(story string, n int) []schema.Segment {
	all := splitSentences(story)
	sentences := make([]string, 0, len(all))
	for _, s := range all {
		if len(strings.TrimSpace(s)) >= minSentenceLen {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) < n {
		sentences = all
	}
	if len(sentences) == 0 {
		return nil
	}

	perSegment := max(1, (len(sentences)+n-1)/n)
	var segments []schema.Segment
	for i := 0; i < n && i*perSegment < len(sentences); i++ {
		end := min((i+1)*perSegment, len(sentences))
		segments = append(segments, schema.Segment{
			Content:     strings.Join(sentences[i*perSegment:end], " "),
			SceneNumber: i + 1,
			Summary:     autoSummary(i + 1),
		})
	}
	return segments
}

// splitSentences cuts after terminal punctuation followed by whitespace.
func splitSentences(story string) []string {
	var out []string
	var cur strings.Builder
	runes := []rune(story)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if isTerminal(runes[i]) && (i+1 == len(runes) || isSpace(runes[i+1])) {
			s := strings.TrimSpace(cur.String())
			if s != "" {
				out = append(out, s)
			}
			cur.Reset()
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }
func isSpace(r rune) bool    { return r == ' ' || r == '\t' || r == '\n' || r == '\r' }

func renumber(segments []schema.Segment) []schema.Segment {
	for i := range segments {
		segments[i].SceneNumber = i + 1
	}
	return segments
}

func autoSummary(n int) string {
	return fmt.Sprintf("Scene %d (automatically generated)", n)
}
