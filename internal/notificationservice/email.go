package notificationservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sushihentaime/blogcms/internal/common"
)

const publishedTemplate = "post_published.html"

func NewEmailChannel(m Mailer, subscribers SubscriberSource, logger common.Logger) *EmailChannel {
	return &EmailChannel{m: m, subscribers: subscribers, logger: logger}
}

func (c *EmailChannel) Name() string { return "email" }

// Send mails every confirmed subscriber. It fails only when no subscriber
// could be reached, so a retry never mails the same list twice.
func (c *EmailChannel) Send(ctx context.Context, n Notification) error {
	recipients, err := c.subscribers.ConfirmedEmails(ctx)
	if err != nil {
		return fmt.Errorf("could not load subscribers: %w", err)
	}

	if len(recipients) == 0 {
		return nil
	}

	var errs []error
	for _, r := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := c.m.send(r, n.Post, publishedTemplate); err != nil {
			c.logger.Warn("could not send post email", slog.String("email", r), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if len(errs) == len(recipients) {
		return fmt.Errorf("no subscriber reached: %w", errors.Join(errs...))
	}

	c.logger.Info("post email sent", slog.Int("post_id", n.Post.ID), slog.Int("recipients", len(recipients)-len(errs)))
	return nil
}
