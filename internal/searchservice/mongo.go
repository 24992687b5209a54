package searchservice

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const collectionName = "post_documents"

// NewMongoClient connects to uri and verifies the connection.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return nil, err
	}

	return client, nil
}

// MongoIndex keeps one document per published post.
type MongoIndex struct {
	col *mongo.Collection
}

func NewMongoIndex(db *mongo.Database) *MongoIndex {
	return &MongoIndex{col: db.Collection(collectionName)}
}

// EnsureIndexes creates the secondary indexes used by search queries.
func (m *MongoIndex) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: "text"}, {Key: "excerpt", Value: "text"}, {Key: "content", Value: "text"}},
			Options: options.Index().SetName("idx_text"),
		},
		{
			Keys:    bson.D{{Key: "published_at", Value: -1}},
			Options: options.Index().SetName("idx_published_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetName("idx_slug"),
		},
	})

	return err
}

func (m *MongoIndex) Upsert(ctx context.Context, doc Document) error {
	update := bson.M{
		"$set": bson.M{
			"title":        doc.Title,
			"slug":         doc.Slug,
			"excerpt":      doc.Excerpt,
			"content":      doc.Content,
			"author":       doc.Author,
			"category":     doc.Category,
			"tags":         doc.Tags,
			"url":          doc.URL,
			"published_at": doc.PublishedAt,
			"indexed_at":   doc.IndexedAt,
		},
	}

	_, err := m.col.UpdateOne(ctx, bson.M{"_id": doc.PostID}, update, options.Update().SetUpsert(true))
	return err
}

func (m *MongoIndex) Remove(ctx context.Context, postID int) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"_id": postID})
	return err
}

// Get returns the stored document of postID.
func (m *MongoIndex) Get(ctx context.Context, postID int) (*Document, error) {
	var doc Document
	if err := m.col.FindOne(ctx, bson.M{"_id": postID}).Decode(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
