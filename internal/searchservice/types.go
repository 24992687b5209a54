package searchservice

import (
	"context"
	"time"

	"github.com/sushihentaime/blogcms/internal/common"
)

// Document is the searchable view of a published post.
type Document struct {
	PostID      int        `bson:"_id" json:"post_id"`
	Title       string     `bson:"title" json:"title"`
	Slug        string     `bson:"slug" json:"slug"`
	Excerpt     string     `bson:"excerpt" json:"excerpt"`
	Content     string     `bson:"content" json:"content"`
	Author      string     `bson:"author" json:"author"`
	Category    string     `bson:"category" json:"category"`
	Tags        []string   `bson:"tags" json:"tags"`
	URL         string     `bson:"url" json:"url"`
	PublishedAt *time.Time `bson:"published_at,omitempty" json:"published_at,omitempty"`
	IndexedAt   time.Time  `bson:"indexed_at" json:"indexed_at"`
}

type IndexStore interface {
	Upsert(ctx context.Context, doc Document) error
	// Remove deletes the document of postID. Removing a missing document is not an error.
	Remove(ctx context.Context, postID int) error
}

type IndexListener struct {
	index  IndexStore
	logger common.Logger
	now    func() time.Time
}
