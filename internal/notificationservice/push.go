package notificationservice

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const DefaultPushChannel = "notifications:posts"

type pushMessage struct {
	Type    string `json:"type"`
	PostID  int    `json:"post_id"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
	URL     string `json:"url"`
}

func NewPushChannel(rdb *redis.Client, channel string) *PushChannel {
	if channel == "" {
		channel = DefaultPushChannel
	}
	return &PushChannel{rdb: rdb, channel: channel}
}

func (c *PushChannel) Name() string { return "push" }

func (c *PushChannel) Send(ctx context.Context, n Notification) error {
	body, err := json.Marshal(pushMessage{
		Type:    "post.published",
		PostID:  n.Post.ID,
		Title:   n.Post.Title,
		Excerpt: n.Post.Excerpt,
		URL:     n.Post.URL,
	})
	if err != nil {
		return err
	}

	return c.rdb.Publish(ctx, c.channel, body).Err()
}
