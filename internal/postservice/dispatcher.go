package postservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

type EventDispatcher interface {
	Dispatch(ctx context.Context, e events.Event) error
}

// QueueDispatcher enqueues one job per lane subscribed to the event. It does
// not wait for any listener.
type QueueDispatcher struct {
	mp          common.MessageProducer
	maxAttempts int
}

func NewQueueDispatcher(mp common.MessageProducer) *QueueDispatcher {
	return &QueueDispatcher{mp: mp, maxAttempts: events.DefaultMaxAttempts}
}

func (d *QueueDispatcher) Dispatch(ctx context.Context, e events.Event) error {
	var errs []error

	for _, lane := range events.LanesFor(e.EventName()) {
		job := events.NewJob(e, lane, d.maxAttempts)

		body, err := json.Marshal(job)
		if err != nil {
			return err
		}

		_, key := common.LaneQueue(lane)
		if err := d.mp.Publish(ctx, body, key, common.PostExchange); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s on %s: %w", e.EventName(), lane, err))
		}
	}

	return errors.Join(errs...)
}

// Snapshot builds the event view of p.
func Snapshot(p *Post, baseURL string) events.PostSnapshot {
	s := events.PostSnapshot{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		Excerpt:     p.Excerpt,
		Content:     StripMarkdown(p.Content),
		Author:      p.Author,
		Category:    p.Category,
		Tags:        p.TagNames(),
		Status:      p.Status,
		PublishedAt: p.PublishedAt,
	}

	if baseURL != "" {
		s.URL = PostURL(baseURL, p.Slug)
	} else {
		s.URL = "/posts/" + p.Slug
	}

	return s
}
