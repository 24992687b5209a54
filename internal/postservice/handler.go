package postservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

const maxSlugRetries = 5

var ErrNotDeleted = errors.New("post is not deleted")

var sortSafelist = []string{
	"id", "title", "created_at", "published_at", "views_count",
	"-id", "-title", "-created_at", "-published_at", "-views_count",
}

func NewPostService(db *sql.DB, c common.PageCache, dispatcher EventDispatcher, images ImageStore, logger common.Logger, cfg Config) *PostService {
	return newPostService(newPostModel(db), c, dispatcher, images, logger, cfg)
}

func newPostService(m postStore, c common.PageCache, dispatcher EventDispatcher, images ImageStore, logger common.Logger, cfg Config) *PostService {
	slugs := NewSlugGenerator(m)

	var invalidator common.CacheInvalidator
	if c != nil {
		invalidator = c
	}

	return &PostService{
		m:      m,
		hooks:  NewObserver(m, slugs, images, invalidator, dispatcher, NewLogSubscriber(logger), logger, cfg),
		slugs:  slugs,
		c:      c,
		logger: logger,
	}
}

type CreatePostRequest struct {
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	Content     string        `json:"content"`
	Excerpt     string        `json:"excerpt"`
	CategoryID  int           `json:"category_id"`
	AuthorID    int           `json:"-"`
	Tags        []string      `json:"tags"`
	Status      events.Status `json:"status"`
	IsFeatured  bool          `json:"is_featured"`
	PublishedAt *time.Time    `json:"published_at"`
	SEO         SEO           `json:"seo"`
	// IndexFollow defaults to true when omitted.
	IndexFollow *bool `json:"index_follow"`
}

func (r *CreatePostRequest) post() *Post {
	p := &Post{
		Title:       strings.TrimSpace(r.Title),
		Slug:        strings.TrimSpace(r.Slug),
		Content:     r.Content,
		Excerpt:     strings.TrimSpace(r.Excerpt),
		CategoryID:  r.CategoryID,
		AuthorID:    r.AuthorID,
		Tags:        tagsFromNames(r.Tags),
		Status:      r.Status,
		IsFeatured:  r.IsFeatured,
		PublishedAt: r.PublishedAt,
		SEO:         r.SEO,
	}

	if p.Status == "" {
		p.Status = events.StatusDraft
	}

	p.SEO.IndexFollow = true
	if r.IndexFollow != nil {
		p.SEO.IndexFollow = *r.IndexFollow
	}

	return p
}

// UpdatePostRequest holds the fields to change; nil fields are left as they are.
type UpdatePostRequest struct {
	Title       *string        `json:"title"`
	Slug        *string        `json:"slug"`
	Content     *string        `json:"content"`
	Excerpt     *string        `json:"excerpt"`
	CategoryID  *int           `json:"category_id"`
	Tags        *[]string      `json:"tags"`
	Status      *events.Status `json:"status"`
	IsFeatured  *bool          `json:"is_featured"`
	PublishedAt *time.Time     `json:"published_at"`
	SEO         *SEO           `json:"seo"`
	Version     *int           `json:"version"`
}

func (r *UpdatePostRequest) apply(p *Post) {
	if r.Title != nil {
		p.Title = strings.TrimSpace(*r.Title)
	}
	if r.Slug != nil {
		p.Slug = strings.TrimSpace(*r.Slug)
	}
	if r.Content != nil {
		p.Content = *r.Content
	}
	if r.Excerpt != nil {
		p.Excerpt = strings.TrimSpace(*r.Excerpt)
	}
	if r.CategoryID != nil {
		p.CategoryID = *r.CategoryID
	}
	if r.Tags != nil {
		p.Tags = tagsFromNames(*r.Tags)
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
	if r.IsFeatured != nil {
		p.IsFeatured = *r.IsFeatured
	}
	if r.PublishedAt != nil {
		p.PublishedAt = r.PublishedAt
	}
	if r.SEO != nil {
		p.SEO = *r.SEO
	}
	if r.Version != nil {
		p.Version = *r.Version
	}
}

func tagsFromNames(names []string) []Tag {
	seen := make(map[string]bool)
	tags := make([]Tag, 0, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		slug := Slugify(name)
		if name == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		tags = append(tags, Tag{Name: name, Slug: slug})
	}

	return tags
}

// CreatePost validates and stores a new post, running the create hooks around the insert.
func (s *PostService) CreatePost(ctx context.Context, req *CreatePostRequest) (*Post, error) {
	p := req.post()

	v := common.NewValidator()
	validatePost(v, p)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if err := s.hooks.BeforeCreate(ctx, p); err != nil {
		return nil, err
	}

	if err := s.persist(ctx, p, s.m.insert); err != nil {
		return nil, err
	}

	if err := s.hooks.AfterCreate(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// UpdatePost applies req to the post with the given ID. If req carries a
// version it must match the stored one.
func (s *PostService) UpdatePost(ctx context.Context, id int, req *UpdatePostRequest) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	old, err := s.m.getByID(ctx, id, false)
	if err != nil {
		return nil, err
	}

	p := old.clone()
	req.apply(p)

	validatePost(v, p)
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	if err := s.save(ctx, old, p); err != nil {
		return nil, err
	}

	return p, nil
}

// SetStatus moves every listed post to status. It is the admin bulk action
// and skips the field validation of UpdatePost; the update hooks still run.
func (s *PostService) SetStatus(ctx context.Context, ids []int, status events.Status) (int, error) {
	v := common.NewValidator()
	validateStatus(v, status)
	if !v.Valid() {
		return 0, v.ValidationError()
	}

	return s.bulk(ctx, ids, func(p *Post) bool {
		if p.Status == status {
			return false
		}
		p.Status = status
		return true
	})
}

// SetFeatured toggles the featured flag of every listed post.
func (s *PostService) SetFeatured(ctx context.Context, ids []int, featured bool) (int, error) {
	return s.bulk(ctx, ids, func(p *Post) bool {
		if p.IsFeatured == featured {
			return false
		}
		p.IsFeatured = featured
		return true
	})
}

func (s *PostService) bulk(ctx context.Context, ids []int, change func(p *Post) bool) (int, error) {
	var errs []error
	updated := 0

	for _, id := range ids {
		old, err := s.m.getByID(ctx, id, false)
		if err != nil {
			errs = append(errs, fmt.Errorf("post %d: %w", id, err))
			continue
		}

		p := old.clone()
		if !change(p) {
			continue
		}

		if err := s.save(ctx, old, p); err != nil {
			errs = append(errs, fmt.Errorf("post %d: %w", id, err))
			continue
		}
		updated++
	}

	return updated, errors.Join(errs...)
}

func (s *PostService) save(ctx context.Context, old, p *Post) error {
	if err := s.hooks.BeforeUpdate(ctx, old, p); err != nil {
		return err
	}

	if err := s.persist(ctx, p, s.m.update); err != nil {
		return err
	}

	return s.hooks.AfterUpdate(ctx, old, p)
}

// persist runs write and, while the slug is taken by another post, retries
// with the next free slug.
func (s *PostService) persist(ctx context.Context, p *Post, write func(context.Context, *Post) error) error {
	for attempt := 1; ; attempt++ {
		err := write(ctx, p)
		if !errors.Is(err, ErrDuplicateSlug) {
			return err
		}

		if attempt >= maxSlugRetries {
			return fmt.Errorf("%w: gave up after %d attempts: %v", ErrSlugExhausted, attempt, err)
		}

		source := p.slugSource
		if source == "" {
			source = p.Slug
		}

		slug, err := s.slugs.Generate(ctx, source, p.ID)
		if err != nil {
			return err
		}

		s.logger.Warn("slug taken, retrying", slog.String("slug", p.Slug), slog.String("next", slug), slog.Int("attempt", attempt))
		p.Slug = slug
	}
}

// DeletePost soft deletes a post after cleaning up what it owns.
func (s *PostService) DeletePost(ctx context.Context, id int) error {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return v.ValidationError()
	}

	p, err := s.m.getByID(ctx, id, false)
	if err != nil {
		return err
	}

	if err := s.hooks.BeforeDelete(ctx, p); err != nil {
		return err
	}

	deletedAt, err := s.m.softDelete(ctx, id)
	if err != nil {
		return err
	}
	p.DeletedAt = &deletedAt

	return s.hooks.AfterDelete(ctx, p)
}

// RestorePost brings back a soft deleted post.
func (s *PostService) RestorePost(ctx context.Context, id int) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	p, err := s.m.getByID(ctx, id, true)
	if err != nil {
		return nil, err
	}

	if !p.IsDeleted() {
		return nil, ErrNotDeleted
	}

	if err := s.m.restore(ctx, id); err != nil {
		return nil, err
	}
	p.DeletedAt = nil

	if err := s.hooks.AfterRestore(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// GetPostByID returns a live post in any status.
func (s *PostService) GetPostByID(ctx context.Context, id int) (*Post, error) {
	v := common.NewValidator()
	validateInt(v, id, "id")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	return s.m.getByID(ctx, id, false)
}

// GetPublishedPost returns a published post by slug, served from cache when possible.
func (s *PostService) GetPublishedPost(ctx context.Context, slug string) (*Post, error) {
	v := common.NewValidator()
	v.Check(slug != "", "slug", "must be provided")
	if !v.Valid() {
		return nil, v.ValidationError()
	}

	key := common.CacheKeyPost(slug)

	var cached Post
	if s.c != nil && s.c.Load(ctx, key, &cached) {
		return &cached, nil
	}

	p, err := s.m.getBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if !p.IsPublished() {
		return nil, ErrRecordNotFound
	}

	s.store(ctx, key, p, common.TagStatic)

	return p, nil
}

// ListPublishedPosts lists published posts for the public site. Results are cached.
func (s *PostService) ListPublishedPosts(ctx context.Context, f Filters) ([]Post, Metadata, error) {
	f.Status = events.StatusPublished
	if f.Sort == "" {
		f.Sort = "-published_at"
	}

	if err := normalizeFilters(&f); err != nil {
		return nil, Metadata{}, err
	}

	key := listCacheKey(f)

	var cached struct {
		Posts    []Post
		Metadata Metadata
	}
	if s.c != nil && s.c.Load(ctx, key, &cached) {
		return cached.Posts, cached.Metadata, nil
	}

	posts, meta, err := s.m.list(ctx, f)
	if err != nil {
		return nil, Metadata{}, err
	}

	cached.Posts, cached.Metadata = posts, meta
	s.store(ctx, key, cached, common.TagFeed)

	return posts, meta, nil
}

// ListPosts lists live posts in any status for the admin panel.
func (s *PostService) ListPosts(ctx context.Context, f Filters) ([]Post, Metadata, error) {
	if err := normalizeFilters(&f); err != nil {
		return nil, Metadata{}, err
	}

	return s.m.list(ctx, f)
}

// normalizeFilters applies the default limit of 10 and offset of 0 and checks the rest.
func normalizeFilters(f *Filters) error {
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Sort == "" {
		f.Sort = "-created_at"
	}
	f.Tag = Slugify(f.Tag)
	f.Search = strings.TrimSpace(f.Search)

	v := common.NewValidator()
	v.Check(common.PermittedValue(f.Sort, sortSafelist...), "sort", "invalid sort value")
	if f.Status != "" {
		validateStatus(v, f.Status)
	}
	if !v.Valid() {
		return v.ValidationError()
	}

	return nil
}

func listCacheKey(f Filters) string {
	featured := "any"
	if f.Featured != nil {
		featured = strconv.FormatBool(*f.Featured)
	}

	return common.CacheKeyPosts(
		string(f.Status),
		strconv.Itoa(f.CategoryID),
		f.Tag,
		strings.ToLower(f.Search),
		featured,
		f.Sort,
		strconv.Itoa(f.Limit),
		strconv.Itoa(f.Offset),
	)
}

func (s *PostService) store(ctx context.Context, key string, value any, tags ...string) {
	if s.c == nil {
		return
	}

	if err := s.c.Store(ctx, key, value, tags...); err != nil {
		s.logger.Warn("could not cache page", slog.String("key", key), slog.String("error", err.Error()))
	}
}
