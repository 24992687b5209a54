package postservice

import (
	"strings"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

func validateTitle(v *common.Validator, title string) {
	v.Check(strings.TrimSpace(title) != "", "title", "must be provided")
	v.Check(v.CheckStringLength(title, 1, 255), "title", "must not be more than 255 characters long")
}

func validateContent(v *common.Validator, content string) {
	v.Check(strings.TrimSpace(content) != "", "content", "must be provided")
}

func validateSlug(v *common.Validator, slug string) {
	if slug == "" {
		return
	}
	v.Check(v.CheckStringLength(slug, 1, 255), "slug", "must not be more than 255 characters long")
	v.Check(Slugify(slug) != "", "slug", "must contain at least one letter or number")
}

func validateStatus(v *common.Validator, status events.Status) {
	v.Check(status.Valid(), "status", "must be one of draft, published or archived")
}

func validateSEO(v *common.Validator, seo SEO) {
	v.Check(len(seo.MetaKeywords) <= maxMetaKeywords, "meta_keywords", "must not contain more than 10 keywords")
	v.Check(v.CheckStringLength(seo.MetaTitle, 0, 255), "meta_title", "must not be more than 255 characters long")
	v.Check(v.CheckStringLength(seo.MetaDescription, 0, 500), "meta_description", "must not be more than 500 characters long")
}

func validateTags(v *common.Validator, tags []string) {
	for _, t := range tags {
		if Slugify(t) == "" {
			v.AddError("tags", "must only contain names with at least one letter or number")
			return
		}
	}
}

func validateInt(v *common.Validator, num int, name string) {
	v.Check(num > 0, name, "must be greater than zero")
}

func validatePost(v *common.Validator, p *Post) {
	validateTitle(v, p.Title)
	validateContent(v, p.Content)
	validateSlug(v, p.Slug)
	validateStatus(v, p.Status)
	validateSEO(v, p.SEO)
	validateTags(v, p.TagNames())
	validateInt(v, p.CategoryID, "category_id")
	validateInt(v, p.AuthorID, "author_id")
}
