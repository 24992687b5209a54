package postservice

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	defaultSlug  = "post"
	maxSlugTries = 1000
)

var ErrSlugExhausted = errors.New("could not find a free slug")

// letters without a canonical decomposition into ASCII
var transliterations = map[rune]string{
	'ß': "ss", 'æ': "ae", 'Æ': "ae", 'ø': "o", 'Ø': "o", 'œ': "oe", 'Œ': "oe",
	'ł': "l", 'Ł': "l", 'đ': "d", 'Đ': "d", 'ð': "d", 'þ': "th", 'Þ': "th",
	'ı': "i", '&': " and ", '@': " at ",
}

// Slugify lowercases s, folds it to ASCII and joins the alphanumeric runs with
// single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range s {
		if t, ok := transliterations[r]; ok {
			b.WriteString(t)
			continue
		}
		b.WriteRune(r)
	}

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, b.String())
	if err != nil {
		folded = b.String()
	}

	var out strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if hyphen && out.Len() > 0 {
				out.WriteByte('-')
			}
			out.WriteRune(r)
			hyphen = false
		default:
			hyphen = true
		}
	}

	return out.String()
}

type SlugGenerator struct {
	lookup SlugLookup
}

func NewSlugGenerator(lookup SlugLookup) *SlugGenerator {
	return &SlugGenerator{lookup: lookup}
}

// Generate derives a slug from source that no live post other than excludeID
// uses, appending -1, -2, ... on collision. Pass 0 as excludeID for new posts.
//
// Two concurrent calls may return the same slug; the unique index on posts is
// the final guard.
func (g *SlugGenerator) Generate(ctx context.Context, source string, excludeID int) (string, error) {
	base := Slugify(source)
	if base == "" {
		base = defaultSlug
	}

	slug := base
	for i := 1; i <= maxSlugTries; i++ {
		exists, err := g.lookup.SlugExists(ctx, slug, excludeID)
		if err != nil {
			return "", err
		}

		if !exists {
			return slug, nil
		}

		slug = base + "-" + strconv.Itoa(i)
	}

	return "", ErrSlugExhausted
}
