package postservice

import (
	"context"
	"log/slog"

	"github.com/sushihentaime/blogcms/internal/common"
)

// Signal is a lifecycle notice that carries no payload beyond the post.
type Signal int

const (
	SignalCreated Signal = iota + 1
	SignalDeleted
	SignalRestored
)

func (s Signal) String() string {
	switch s {
	case SignalCreated:
		return "post.created"
	case SignalDeleted:
		return "post.deleted"
	case SignalRestored:
		return "post.restored"
	default:
		return "post.unknown"
	}
}

type SignalSubscriber interface {
	OnSignal(ctx context.Context, s Signal, p *Post)
}

// LogSubscriber writes every signal to the log.
type LogSubscriber struct {
	logger common.Logger
}

func NewLogSubscriber(logger common.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger}
}

func (l *LogSubscriber) OnSignal(ctx context.Context, s Signal, p *Post) {
	l.logger.Info(s.String(), slog.Int("post_id", p.ID), slog.String("slug", p.Slug))
}
