package searchservice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/mongo"
)

func testMongo(t *testing.T) *mongo.Database {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("could not start mongodb container: %v", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("could not get mongodb connection string: %v", err)
	}

	client, err := NewMongoClient(ctx, uri)
	if err != nil {
		t.Fatalf("could not connect to mongodb: %v", err)
	}

	t.Cleanup(func() {
		client.Disconnect(ctx)
		container.Terminate(ctx)
	})

	return client.Database("blogcms_test")
}

func TestMongoIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mongodb test in short mode")
	}

	ctx := context.Background()
	index := NewMongoIndex(testMongo(t))
	require.NoError(t, index.EnsureIndexes(ctx))

	publishedAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := Document{
		PostID:      9,
		Title:       "First",
		Slug:        "first",
		Tags:        []string{"go"},
		PublishedAt: &publishedAt,
		IndexedAt:   publishedAt,
	}

	require.NoError(t, index.Upsert(ctx, doc))

	doc.Title = "First, revised"
	require.NoError(t, index.Upsert(ctx, doc))

	got, err := index.Get(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "First, revised", got.Title)
	assert.Equal(t, []string{"go"}, got.Tags)

	count, err := index.col.CountDocuments(ctx, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, index.Remove(ctx, 9))
	require.NoError(t, index.Remove(ctx, 9))

	_, err = index.Get(ctx, 9)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
}
