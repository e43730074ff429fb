// Package chunker splits normalized legal text into article-sized chunks.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// PreambleLabel marks text that precedes the first article marker.
	PreambleLabel = "مقدمه"

	// preambleMinLength is the minimum length in runes for preamble text to
	// be kept as its own chunk. Thresholds count runes, not bytes: Persian
	// characters are two bytes each in UTF-8.
	preambleMinLength = 50

	// minChunkLength drops trivially short fragments, in runes.
	minChunkLength = 20

	// maxSectionLength caps paragraph-fallback chunks, in runes.
	maxSectionLength = 2000
)

// articleMarker matches the legal article marker: the word "ماده" followed by
// a number in Persian-indic, Arabic-indic, or ASCII digits.
var articleMarker = regexp.MustCompile(`ماده\s*([0-9۰-۹٠-٩]+)`)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// ArticleChunk is one (article number, content) pair in document order.
// ArticleNumber is empty for the degenerate whole-text chunk.
type ArticleChunk struct {
	ArticleNumber string
	Content       string
}

// Strategy is a chunking strategy. The regex marker strategy stands in for a
// real parser; keeping it behind this interface lets a more robust one be
// substituted without touching callers.
type Strategy interface {
	Chunk(text string) []ArticleChunk
}

// Split chunks normalized text, choosing the marker strategy when at least
// one article marker is present and falling back to paragraph grouping
// otherwise.
func Split(text string) []ArticleChunk {
	var s Strategy
	if articleMarker.MatchString(text) {
		s = MarkerStrategy{}
	} else {
		s = ParagraphStrategy{}
	}
	return s.Chunk(text)
}

// MarkerStrategy splits on "ماده N" markers. Each marker starts a chunk that
// spans to the next marker; text before the first marker is kept as a
// preamble chunk when long enough.
type MarkerStrategy struct{}

func (MarkerStrategy) Chunk(text string) []ArticleChunk {
	matches := articleMarker.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var chunks []ArticleChunk

	preamble := strings.TrimSpace(text[:matches[0][0]])
	if utf8.RuneCountInString(preamble) >= preambleMinLength {
		chunks = append(chunks, ArticleChunk{ArticleNumber: PreambleLabel, Content: preamble})
	}

	for i, m := range matches {
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[m[0]:end])
		if utf8.RuneCountInString(content) <= minChunkLength {
			continue
		}
		chunks = append(chunks, ArticleChunk{
			ArticleNumber: text[m[2]:m[3]],
			Content:       content,
		})
	}

	return chunks
}

// ParagraphStrategy groups blank-line-separated paragraphs into chunks capped
// at maxSectionLength, labeling each with a synthetic sequential section
// identifier. Used only when no article markers were found.
type ParagraphStrategy struct{}

func (ParagraphStrategy) Chunk(text string) []ArticleChunk {
	var paragraphs []string
	for _, p := range paragraphSplit.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	var chunks []ArticleChunk
	var current strings.Builder
	currentRunes := 0

	flush := func() {
		content := strings.TrimSpace(current.String())
		current.Reset()
		currentRunes = 0
		if utf8.RuneCountInString(content) <= minChunkLength {
			return
		}
		chunks = append(chunks, ArticleChunk{
			ArticleNumber: fmt.Sprintf("بخش %d", len(chunks)+1),
			Content:       content,
		})
	}

	for _, p := range paragraphs {
		runes := utf8.RuneCountInString(p)
		if currentRunes > 0 && currentRunes+runes > maxSectionLength {
			flush()
		}
		if currentRunes > 0 {
			current.WriteString("\n\n")
			currentRunes += 2
		}
		current.WriteString(p)
		currentRunes += runes
	}
	flush()

	// Degenerate case: nothing survived paragraph grouping but the document
	// itself is non-trivial. Emit it whole, unlabeled.
	if len(chunks) == 0 {
		if t := strings.TrimSpace(text); utf8.RuneCountInString(t) > minChunkLength {
			chunks = append(chunks, ArticleChunk{Content: t})
		}
	}

	return chunks
}
