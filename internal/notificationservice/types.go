package notificationservice

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"sync"

	"github.com/go-mail/mail/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

// Notification announces a newly published post.
type Notification struct {
	Post events.PostSnapshot
}

// Channel delivers a notification to one audience.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}

type NotificationListener struct {
	channels []Channel
	logger   common.Logger
}

type Mail struct {
	mu     sync.Mutex
	dialer Dialer
	parser TemplateParser
	sender string
}

type Mailer interface {
	send(recipient string, data any, templateFile string) error
}

type Template struct{}

type Dialer interface {
	DialAndSend(m ...*mail.Message) error
}

type TemplateParser interface {
	ParseTemplate(name string, data any) (*bytes.Buffer, *bytes.Buffer, *bytes.Buffer, error)
}

// SubscriberSource lists the addresses that receive post announcements.
type SubscriberSource interface {
	ConfirmedEmails(ctx context.Context) ([]string, error)
}

type SubscriberModel struct {
	db *sql.DB
}

type EmailChannel struct {
	m           Mailer
	subscribers SubscriberSource
	logger      common.Logger
}

// PushChannel publishes notifications on a Redis channel for connected clients.
type PushChannel struct {
	rdb     *redis.Client
	channel string
}

// WebhookChannel posts a Slack compatible message to an admin webhook.
type WebhookChannel struct {
	url    string
	client *http.Client
}
