package postservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

// PostLifecycleHooks is called by PostService around every write. Before
// hooks may change the post about to be stored; after hooks see the stored row.
type PostLifecycleHooks interface {
	BeforeCreate(ctx context.Context, p *Post) error
	AfterCreate(ctx context.Context, p *Post) error
	BeforeUpdate(ctx context.Context, old, p *Post) error
	AfterUpdate(ctx context.Context, old, p *Post) error
	BeforeDelete(ctx context.Context, p *Post) error
	AfterDelete(ctx context.Context, p *Post) error
	AfterRestore(ctx context.Context, p *Post) error
}

// Observer derives slugs, HTML, excerpts and SEO fields, invalidates caches,
// cleans up owned records on delete and dispatches status events.
type Observer struct {
	m           postStore
	slugs       *SlugGenerator
	images      ImageStore
	invalidator common.CacheInvalidator
	dispatcher  EventDispatcher
	subscriber  SignalSubscriber
	logger      common.Logger
	cfg         Config
	now         func() time.Time
}

func NewObserver(m postStore, slugs *SlugGenerator, images ImageStore, invalidator common.CacheInvalidator, dispatcher EventDispatcher, subscriber SignalSubscriber, logger common.Logger, cfg Config) *Observer {
	return &Observer{
		m:           m,
		slugs:       slugs,
		images:      images,
		invalidator: invalidator,
		dispatcher:  dispatcher,
		subscriber:  subscriber,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (o *Observer) BeforeCreate(ctx context.Context, p *Post) error {
	if p.Slug == "" {
		slug, err := o.slugs.Generate(ctx, p.Title, 0)
		if err != nil {
			return err
		}
		p.slugSource = p.Title
		p.Slug = slug
	} else {
		p.slugSource = p.Slug
		p.Slug = Slugify(p.Slug)
	}

	p.ContentHTML = Render(p.Content)
	ApplySEODefaults(p, o.cfg.BaseURL)
	o.stampPublishedAt(p)
	o.invalidate(ctx)

	return nil
}

func (o *Observer) AfterCreate(ctx context.Context, p *Post) error {
	if p.Excerpt == "" {
		p.Excerpt = Excerpt(p.Content, ExcerptLength)
	}
	p.ReadingTime = ReadingTime(p.Content)

	if err := o.m.saveQuietly(ctx, p); err != nil {
		return err
	}

	// reads between BeforeCreate and the insert may have cached the old pages
	o.invalidate(ctx)
	o.signal(ctx, SignalCreated, p)

	// a post created as published never passes through AfterUpdate
	if p.IsPublished() {
		o.dispatch(ctx, events.Published{Post: Snapshot(p, o.cfg.BaseURL)})
	}

	return nil
}

func (o *Observer) BeforeUpdate(ctx context.Context, old, p *Post) error {
	titleChanged := p.Title != old.Title
	contentChanged := p.Content != old.Content
	excerptChanged := p.Excerpt != old.Excerpt

	switch {
	case p.Slug == "" && titleChanged:
		slug, err := o.slugs.Generate(ctx, p.Title, p.ID)
		if err != nil {
			return err
		}
		p.slugSource = p.Title
		p.Slug = slug
	case p.Slug == "":
		p.Slug = old.Slug
		p.slugSource = old.Slug
	case p.Slug != old.Slug:
		p.slugSource = p.Slug
		p.Slug = Slugify(p.Slug)
	default:
		p.slugSource = p.Slug
	}

	if contentChanged {
		p.ContentHTML = Render(p.Content)
		p.ReadingTime = ReadingTime(p.Content)
		if !excerptChanged || p.Excerpt == "" {
			p.Excerpt = Excerpt(p.Content, ExcerptLength)
		}
	}

	if titleChanged || contentChanged || excerptChanged {
		ApplySEODefaults(p, o.cfg.BaseURL)
	}

	o.stampPublishedAt(p)
	o.invalidate(ctx)

	return nil
}

func (o *Observer) AfterUpdate(ctx context.Context, old, p *Post) error {
	o.invalidate(ctx)

	if old.Status == p.Status {
		return nil
	}

	snapshot := Snapshot(p, o.cfg.BaseURL)

	o.dispatch(ctx, events.StatusChanged{Post: snapshot, OldStatus: old.Status, NewStatus: p.Status})

	if events.IsPublishing(old.Status, p.Status) {
		o.dispatch(ctx, events.Published{Post: snapshot})
	}

	return nil
}

// BeforeDelete removes everything the post owns. Each step runs even if an
// earlier one failed; failures are logged and only abort the deletion when
// StrictCleanup is set.
func (o *Observer) BeforeDelete(ctx context.Context, p *Post) error {
	o.invalidate(ctx)

	var firstErr error
	cleanupFailed := func(step string, err error, args ...any) {
		attrs := append([]any{slog.Int("post_id", p.ID), slog.String("step", step), slog.String("error", err.Error())}, args...)
		o.logger.Error("post cleanup failed", attrs...)
		if firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", step, err)
		}
	}

	images, err := o.m.imagesForPost(ctx, p.ID)
	if err != nil {
		cleanupFailed("images", err)
	}

	for _, img := range images {
		if o.cfg.StrictCleanup && firstErr != nil {
			break
		}

		if err := o.images.Delete(img.Path); err != nil {
			cleanupFailed("image", err, slog.String("path", img.Path))
			continue
		}

		if err := o.m.deleteImage(ctx, img.ID); err != nil {
			cleanupFailed("image", err, slog.Int("image_id", img.ID))
		}
	}

	steps := []struct {
		name string
		fn   func(context.Context, int) error
	}{
		{"comments", o.m.softDeleteComments},
		{"views", o.m.deleteViews},
		{"tags", o.m.detachTags},
		{"likes", o.m.detachLikes},
	}

	for _, step := range steps {
		if o.cfg.StrictCleanup && firstErr != nil {
			break
		}

		if err := step.fn(ctx, p.ID); err != nil {
			cleanupFailed(step.name, err)
		}
	}

	if o.cfg.StrictCleanup {
		return firstErr
	}

	return nil
}

func (o *Observer) AfterDelete(ctx context.Context, p *Post) error {
	o.invalidate(ctx)
	o.signal(ctx, SignalDeleted, p)
	return nil
}

// AfterRestore only refreshes caches; slug and SEO fields are left as stored.
func (o *Observer) AfterRestore(ctx context.Context, p *Post) error {
	o.invalidate(ctx)
	o.signal(ctx, SignalRestored, p)
	return nil
}

func (o *Observer) stampPublishedAt(p *Post) {
	if p.IsPublished() && p.PublishedAt == nil {
		now := o.now().UTC()
		p.PublishedAt = &now
	}
}

func (o *Observer) invalidate(ctx context.Context) {
	if o.invalidator == nil {
		return
	}

	if err := o.invalidator.InvalidatePosts(ctx); err != nil {
		o.logger.Error("could not invalidate post cache", slog.String("error", err.Error()))
	}

	if err := o.invalidator.InvalidateByTags(ctx, common.PostCacheTags...); err != nil {
		o.logger.Error("could not invalidate tagged cache", slog.String("error", err.Error()))
	}
}

// dispatch is fire-and-forget: the write already happened, so a failed
// enqueue is logged rather than returned.
func (o *Observer) dispatch(ctx context.Context, e events.Event) {
	if o.dispatcher == nil {
		return
	}

	if err := o.dispatcher.Dispatch(ctx, e); err != nil {
		o.logger.Error("could not dispatch event", slog.String("event", string(e.EventName())), slog.Int("post_id", e.Subject().ID), slog.String("error", err.Error()))
	}
}

func (o *Observer) signal(ctx context.Context, s Signal, p *Post) {
	if o.subscriber != nil {
		o.subscriber.OnSignal(ctx, s, p)
	}
}
