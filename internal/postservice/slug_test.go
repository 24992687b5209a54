package postservice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/blogcms/internal/events"
)

func TestSlugify(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Hello World", want: "hello-world"},
		{name: "punctuation", in: "Hello, World! It's me.", want: "hello-world-it-s-me"},
		{name: "accents", in: "Crème Brûlée à la carte", want: "creme-brulee-a-la-carte"},
		{name: "german", in: "Straße über Größe", want: "strasse-uber-grosse"},
		{name: "ampersand", in: "Salt & Pepper", want: "salt-and-pepper"},
		{name: "surrounding separators", in: "  --Go 1.22--  ", want: "go-1-22"},
		{name: "digits only", in: "2024", want: "2024"},
		{name: "no ascii", in: "日本語", want: ""},
		{name: "empty", in: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Slugify(tc.in))
		})
	}
}

func TestGenerateSlug(t *testing.T) {
	ctx := context.Background()

	store := newMemoryStore()
	store.posts[1] = &Post{ID: 1, Slug: "hello-world"}
	store.posts[2] = &Post{ID: 2, Slug: "hello-world-1"}
	store.posts[3] = &Post{ID: 3, Slug: "post"}

	deletedAt := mustTime("2024-01-01T00:00:00Z")
	store.posts[4] = &Post{ID: 4, Slug: "archived-news", DeletedAt: &deletedAt}

	g := NewSlugGenerator(store)

	testCases := []struct {
		name      string
		source    string
		excludeID int
		want      string
	}{
		{name: "free", source: "Brand New", want: "brand-new"},
		{name: "collisions get the next suffix", source: "Hello World", want: "hello-world-2"},
		{name: "own slug is not a collision", source: "Hello World", excludeID: 1, want: "hello-world"},
		{name: "deleted posts release their slug", source: "Archived News", want: "archived-news"},
		{name: "empty falls back", source: "!!!", want: "post-1"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			slug, err := g.Generate(ctx, tc.source, tc.excludeID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, slug)
		})
	}
}

func TestGenerateSlugLookupError(t *testing.T) {
	store := newMemoryStore()
	store.failures["slug_exists"] = errors.New("connection reset")

	_, err := NewSlugGenerator(store).Generate(context.Background(), "Hello", 0)
	assert.EqualError(t, err, "connection reset")
}

func TestGenerateSlugNeverReturnsTakenSlug(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	g := NewSlugGenerator(store)

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		slug, err := g.Generate(ctx, "Same Title", 0)
		require.NoError(t, err)
		require.False(t, seen[slug], "slug %q returned twice", slug)

		seen[slug] = true
		store.posts[i+1] = &Post{ID: i + 1, Slug: slug, Status: events.StatusDraft}
	}

	assert.True(t, seen["same-title"])
	assert.True(t, seen["same-title-24"])
}
