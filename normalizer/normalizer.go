// Package normalizer turns raw scraped or pasted HTML into plain text
// suitable for article chunking.
package normalizer

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinContentLength is the floor below which ingestion callers treat the
// normalized text as insufficient content.
const MinContentLength = 100

var (
	spaceRun   = regexp.MustCompile(`[^\S\n]+`)
	newlineRun = regexp.MustCompile(`\n{3,}`)
	tagPattern = regexp.MustCompile(`<[^>]*>`)
)

// Normalize strips boilerplate markup from raw HTML and returns plain text.
// Non-content elements (script, style, head, nav, footer, header) are removed
// wholesale, block-level boundaries become newlines so paragraph structure
// survives tag stripping, entities are decoded, and whitespace is collapsed.
// It always returns a string; an empty result signals insufficient content
// to the caller.
func Normalize(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		// The net/html parser is close to infallible; strip tags as a last
		// resort so callers still get something to length-check.
		return collapse(tagPattern.ReplaceAllString(html, " "))
	}

	doc.Find("script, style, head, nav, footer, header").Remove()

	// Block boundaries must become newlines before text extraction, otherwise
	// adjacent articles run together on one line. Both sides of a block are
	// separators: inline text right before an element must not glue to its
	// first line.
	doc.Find("br").Each(func(_ int, s *goquery.Selection) {
		s.ReplaceWithHtml("\n")
	})
	doc.Find("div, p, li, tr, h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("\n")
		s.AppendHtml("\n")
	})

	return collapse(doc.Text())
}

func collapse(text string) string {
	// The parser decodes &nbsp; to U+00A0, which regexp \s does not match.
	text = strings.ReplaceAll(text, " ", " ")
	text = spaceRun.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	text = strings.Join(lines, "\n")

	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
