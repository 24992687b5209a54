package searchservice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

func NewIndexListener(index IndexStore, logger common.Logger) *IndexListener {
	return &IndexListener{index: index, logger: logger, now: time.Now}
}

// Handle keeps the index in step with post status. A post entering published
// is upserted, a post leaving it is removed and other transitions are ignored.
func (l *IndexListener) Handle(ctx context.Context, job *events.Job) error {
	switch e := job.Decode().(type) {
	case events.Published:
		return l.upsert(ctx, e.Post)
	case events.StatusChanged:
		switch {
		case e.IsPublishing():
			return l.upsert(ctx, e.Post)
		case e.IsUnpublishing():
			if err := l.index.Remove(ctx, e.Post.ID); err != nil {
				return fmt.Errorf("remove post %d: %w", e.Post.ID, err)
			}
			l.logger.Info("post removed from index", slog.Int("post_id", e.Post.ID))
			return nil
		default:
			return nil
		}
	default:
		l.logger.Warn("unknown event for search index", slog.String("event", string(job.Event)), slog.String("job_id", job.ID))
		return nil
	}
}

func (l *IndexListener) upsert(ctx context.Context, post events.PostSnapshot) error {
	doc := Document{
		PostID:      post.ID,
		Title:       post.Title,
		Slug:        post.Slug,
		Excerpt:     post.Excerpt,
		Content:     post.Content,
		Author:      post.Author,
		Category:    post.Category,
		Tags:        post.Tags,
		URL:         post.URL,
		PublishedAt: post.PublishedAt,
		IndexedAt:   l.now().UTC(),
	}

	if err := l.index.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("upsert post %d: %w", post.ID, err)
	}

	l.logger.Info("post indexed", slog.Int("post_id", post.ID), slog.String("slug", post.Slug))
	return nil
}
