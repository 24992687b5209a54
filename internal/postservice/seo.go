package postservice

import (
	"strings"
)

const (
	metaTitleLength       = 60
	metaDescriptionLength = 160
	defaultOGType         = "article"
	maxMetaKeywords       = 10
)

// ApplySEODefaults fills the blank SEO fields of p from its title, excerpt and
// content. Fields that already hold a value are never touched, so applying it
// twice changes nothing.
func ApplySEODefaults(p *Post, baseURL string) {
	seo := &p.SEO

	if strings.TrimSpace(seo.MetaTitle) == "" {
		seo.MetaTitle = truncate(strings.TrimSpace(p.Title), metaTitleLength)
	}

	if strings.TrimSpace(seo.MetaDescription) == "" {
		if excerpt := strings.TrimSpace(p.Excerpt); excerpt != "" {
			seo.MetaDescription = truncate(excerpt, metaDescriptionLength)
		} else {
			seo.MetaDescription = descriptionFromContent(p.Content)
		}
	}

	if strings.TrimSpace(seo.OGTitle) == "" {
		seo.OGTitle = seo.MetaTitle
	}

	if strings.TrimSpace(seo.OGDescription) == "" {
		seo.OGDescription = seo.MetaDescription
	}

	if strings.TrimSpace(seo.OGType) == "" {
		seo.OGType = defaultOGType
	}

	if strings.TrimSpace(seo.CanonicalURL) == "" && baseURL != "" && p.Slug != "" {
		seo.CanonicalURL = PostURL(baseURL, p.Slug)
	}

	if len(seo.MetaKeywords) > maxMetaKeywords {
		seo.MetaKeywords = seo.MetaKeywords[:maxMetaKeywords]
	}
}

func descriptionFromContent(content string) string {
	text := StripMarkdown(content)
	if d := truncateWords(text, metaDescriptionLength); d != "" {
		return d
	}
	return truncate(text, metaDescriptionLength)
}

func PostURL(baseURL, slug string) string {
	return strings.TrimRight(baseURL, "/") + "/posts/" + slug
}
