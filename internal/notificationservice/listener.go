package notificationservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

func NewNotificationListener(logger common.Logger, channels ...Channel) *NotificationListener {
	return &NotificationListener{channels: channels, logger: logger}
}

// Handle announces a Published event on every channel. The job fails only
// when every channel failed; partial delivery is logged and not retried.
func (l *NotificationListener) Handle(ctx context.Context, job *events.Job) error {
	e, ok := job.Decode().(events.Published)
	if !ok {
		l.logger.Warn("ignoring event on notifications lane", slog.String("event", string(job.Event)), slog.String("job_id", job.ID))
		return nil
	}

	if len(l.channels) == 0 {
		return nil
	}

	n := Notification{Post: e.Post}

	var errs []error
	for _, c := range l.channels {
		if err := c.Send(ctx, n); err != nil {
			l.logger.Warn("notification channel failed", slog.String("channel", c.Name()), slog.Int("post_id", e.Post.ID), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
		}
	}

	if len(errs) == len(l.channels) {
		return errors.Join(errs...)
	}

	l.logger.Info("post announced", slog.Int("post_id", e.Post.ID), slog.Int("channels", len(l.channels)-len(errs)))
	return nil
}
