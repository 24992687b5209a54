package postservice

import (
	"bytes"
	"html"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	ExcerptLength  = 200
	wordsPerMinute = 200
	ellipsis       = "…"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	// raw HTML is allowed through goldmark and cleaned here instead
	ugcPolicy    = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// Render converts markdown to sanitised HTML. It never fails: input goldmark
// cannot convert is escaped and returned as a paragraph.
func Render(markdown string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "<p>" + html.EscapeString(markdown) + "</p>"
	}

	return ugcPolicy.Sanitize(buf.String())
}

// StripMarkdown returns the plain text of markdown with whitespace collapsed.
func StripMarkdown(markdown string) string {
	text := strictPolicy.Sanitize(Render(markdown))
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}

// Excerpt returns at most maxChars characters of plain text, cut at a word
// boundary and ending in an ellipsis when shortened.
func Excerpt(markdown string, maxChars int) string {
	return truncateWords(StripMarkdown(markdown), maxChars)
}

// ReadingTime estimates minutes to read markdown, never less than one.
func ReadingTime(markdown string) int {
	words := len(strings.Fields(StripMarkdown(markdown)))
	minutes := int(math.Ceil(float64(words) / wordsPerMinute))
	if minutes < 1 {
		return 1
	}
	return minutes
}

func truncateWords(text string, maxChars int) string {
	if maxChars <= 0 {
		return ""
	}

	if utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	limit := maxChars - utf8.RuneCountInString(ellipsis)
	if limit <= 0 {
		return ""
	}

	var out strings.Builder
	n := 0
	for _, word := range strings.Fields(text) {
		wl := utf8.RuneCountInString(word)
		sep := 0
		if n > 0 {
			sep = 1
		}
		if n+sep+wl > limit {
			break
		}
		if sep == 1 {
			out.WriteByte(' ')
		}
		out.WriteString(word)
		n += sep + wl
	}

	// a single word longer than the limit is cut mid-word
	if out.Len() == 0 {
		return truncate(text, limit) + ellipsis
	}

	return strings.TrimRight(out.String(), ",;:.-") + ellipsis
}

// truncate cuts s to at most max characters.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	r := []rune(s)
	return strings.TrimSpace(string(r[:max]))
}
