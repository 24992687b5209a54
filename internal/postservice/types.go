package postservice

import (
	"context"
	"database/sql"
	"time"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

type Post struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
	// Content is stored in Markdown format.
	Content     string `json:"content"`
	ContentHTML string `json:"content_html"`
	Excerpt     string `json:"excerpt"`
	ReadingTime int    `json:"reading_time"`

	CategoryID int    `json:"category_id"`
	Category   string `json:"category"`
	Tags       []Tag  `json:"tags"`
	AuthorID   int    `json:"author_id"`
	Author     string `json:"author"`

	Status      events.Status `json:"status"`
	IsFeatured  bool          `json:"is_featured"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`

	SEO      SEO      `json:"seo"`
	Counters Counters `json:"counters"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	Version   int        `json:"version"`

	// slugSource is the text the current slug was derived from, kept so a
	// unique violation can be retried with the next suffix.
	slugSource string
}

type SEO struct {
	MetaTitle       string   `json:"meta_title"`
	MetaDescription string   `json:"meta_description"`
	MetaKeywords    []string `json:"meta_keywords"`
	OGTitle         string   `json:"og_title"`
	OGDescription   string   `json:"og_description"`
	OGImage         string   `json:"og_image"`
	OGType          string   `json:"og_type"`
	CanonicalURL    string   `json:"canonical_url"`
	IndexFollow     bool     `json:"index_follow"`
}

type Counters struct {
	Views    int `json:"views"`
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

type Tag struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Image struct {
	ID     int    `json:"id"`
	PostID int    `json:"post_id"`
	Path   string `json:"path"`
}

func (p *Post) IsDeleted() bool {
	return p.DeletedAt != nil
}

func (p *Post) IsPublished() bool {
	return p.Status == events.StatusPublished
}

// TagNames returns the tag names in their stored order.
func (p *Post) TagNames() []string {
	names := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		names = append(names, t.Name)
	}
	return names
}

func (p *Post) clone() *Post {
	c := *p
	c.Tags = append([]Tag(nil), p.Tags...)
	c.SEO.MetaKeywords = append([]string(nil), p.SEO.MetaKeywords...)
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		c.PublishedAt = &t
	}
	if p.DeletedAt != nil {
		t := *p.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

// Filters narrows, orders and paginates post listings.
type Filters struct {
	Status     events.Status
	CategoryID int
	Tag        string
	Search     string
	Featured   *bool
	Sort       string
	Limit      int
	Offset     int
}

type Metadata struct {
	Limit        int `json:"limit"`
	Offset       int `json:"offset"`
	TotalRecords int `json:"total_records"`
}

// postStore is the persistence layer behind the service and the observer.
type postStore interface {
	SlugLookup

	insert(ctx context.Context, p *Post) error
	update(ctx context.Context, p *Post) error
	saveQuietly(ctx context.Context, p *Post) error
	getByID(ctx context.Context, id int, withDeleted bool) (*Post, error)
	getBySlug(ctx context.Context, slug string) (*Post, error)
	list(ctx context.Context, f Filters) ([]Post, Metadata, error)
	softDelete(ctx context.Context, id int) (time.Time, error)
	restore(ctx context.Context, id int) error

	imagesForPost(ctx context.Context, postID int) ([]Image, error)
	deleteImage(ctx context.Context, id int) error
	softDeleteComments(ctx context.Context, postID int) error
	deleteViews(ctx context.Context, postID int) error
	detachTags(ctx context.Context, postID int) error
	detachLikes(ctx context.Context, postID int) error
}

// SlugLookup answers whether a slug is taken by a live post other than excludeID.
type SlugLookup interface {
	SlugExists(ctx context.Context, slug string, excludeID int) (bool, error)
}

// ImageStore removes image files owned by a post.
type ImageStore interface {
	Delete(path string) error
}

type PostModel struct {
	db *sql.DB
}

type Config struct {
	// BaseURL prefixes canonical and search document URLs, e.g. https://blog.example.com.
	BaseURL string
	// StrictCleanup aborts a deletion on the first failed cleanup step.
	StrictCleanup bool
}

type PostService struct {
	m      postStore
	hooks  PostLifecycleHooks
	slugs  *SlugGenerator
	c      common.PageCache
	logger common.Logger
}
