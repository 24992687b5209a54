package postservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sushihentaime/blogcms/internal/common"
	"github.com/sushihentaime/blogcms/internal/events"
)

type serviceEnv struct {
	s          *PostService
	store      *memoryStore
	files      *fileStore
	cache      *common.Cache
	dispatcher *recordingDispatcher
	logger     *common.RecordingLogger
}

func setupService(t *testing.T, cfg Config) *serviceEnv {
	env := &serviceEnv{
		store:      newMemoryStore(),
		files:      &fileStore{fail: make(map[string]bool)},
		cache:      common.NewCache(5*time.Minute, 10*time.Minute),
		dispatcher: &recordingDispatcher{},
		logger:     &common.RecordingLogger{},
	}

	env.s = newPostService(env.store, env.cache, env.dispatcher, env.files, env.logger, cfg)

	t.Cleanup(env.cache.Flush)

	return env
}

func newPostRequest(title string) *CreatePostRequest {
	return &CreatePostRequest{
		Title:      title,
		Content:    "Some *markdown* content.",
		CategoryID: 1,
		AuthorID:   1,
	}
}

func TestCreatePost(t *testing.T) {
	testCases := []struct {
		name        string
		req         *CreatePostRequest
		expectedErr error
	}{
		{
			name: "valid post",
			req:  newPostRequest("Test Post"),
		},
		{
			name: "empty title",
			req: &CreatePostRequest{
				Content:    "content",
				CategoryID: 1,
				AuthorID:   1,
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"title": "must be provided"}},
		},
		{
			name: "empty content",
			req: &CreatePostRequest{
				Title:      "Test Post",
				CategoryID: 1,
				AuthorID:   1,
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"content": "must be provided"}},
		},
		{
			name: "missing category",
			req: &CreatePostRequest{
				Title:    "Test Post",
				Content:  "content",
				AuthorID: 1,
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"category_id": "must be greater than zero"}},
		},
		{
			name: "invalid status",
			req: &CreatePostRequest{
				Title:      "Test Post",
				Content:    "content",
				CategoryID: 1,
				AuthorID:   1,
				Status:     "scheduled",
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"status": "must be one of draft, published or archived"}},
		},
		{
			name: "too many keywords",
			req: &CreatePostRequest{
				Title:      "Test Post",
				Content:    "content",
				CategoryID: 1,
				AuthorID:   1,
				SEO:        SEO{MetaKeywords: []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}},
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"meta_keywords": "must not contain more than 10 keywords"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupService(t, Config{})

			p, err := env.s.CreatePost(context.Background(), tc.req)
			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr, err)
				assert.Empty(t, env.store.posts)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, 1, p.ID)
			assert.Equal(t, events.StatusDraft, p.Status)
			assert.True(t, p.SEO.IndexFollow)
			assert.Empty(t, env.dispatcher.events)
		})
	}
}

func TestCreatePostSlugs(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	first, err := env.s.CreatePost(ctx, newPostRequest("Hello World!!"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world", first.Slug)
	assert.Equal(t, "Hello World!!", first.SEO.MetaTitle)

	second, err := env.s.CreatePost(ctx, newPostRequest("Hello World!!"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world-1", second.Slug)

	third, err := env.s.CreatePost(ctx, newPostRequest("Hello World!!"))
	require.NoError(t, err)
	assert.Equal(t, "hello-world-2", third.Slug)
}

func TestCreatePostRetriesTakenSlug(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	// another writer claims the slug between the lookup and the insert
	env.store.takenSlugs["race"] = true
	env.store.posts[99] = &Post{ID: 99, Slug: "race-1"}
	env.store.nextID = 100

	p, err := env.s.CreatePost(ctx, newPostRequest("Race"))
	require.NoError(t, err)

	// race-1 belongs to post 99, so the retry lands on race-2
	assert.Equal(t, "race-2", p.Slug)
	assert.Equal(t, []string{"slug taken, retrying"}, env.logger.Messages("WARN"))
}

func TestCreatePostGivesUpOnSlugRetries(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	for _, slug := range []string{"busy", "busy-1", "busy-2", "busy-3", "busy-4"} {
		env.store.takenSlugs[slug] = true
	}

	_, err := env.s.CreatePost(ctx, newPostRequest("Busy"))

	require.ErrorIs(t, err, ErrSlugExhausted)
	assert.False(t, errors.Is(err, ErrDuplicateSlug))
	assert.Len(t, env.logger.Messages("WARN"), maxSlugRetries-1)
}

func TestCreatePostPublished(t *testing.T) {
	env := setupService(t, Config{BaseURL: "https://blog.example.com"})

	req := newPostRequest("Launch")
	req.Status = events.StatusPublished

	p, err := env.s.CreatePost(context.Background(), req)
	require.NoError(t, err)

	require.NotNil(t, p.PublishedAt)
	assert.Equal(t, []events.Name{events.NamePublished}, env.dispatcher.names())
	assert.Equal(t, "Some markdown content.", p.Excerpt)
	assert.Equal(t, 1, p.ReadingTime)
}

func TestCreatePostTags(t *testing.T) {
	env := setupService(t, Config{})

	req := newPostRequest("Tagged")
	req.Tags = []string{"Go", " go ", "Web Dev", ""}

	p, err := env.s.CreatePost(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, []Tag{{Name: "Go", Slug: "go"}, {Name: "Web Dev", Slug: "web-dev"}}, p.Tags)
}

func TestUpdatePostPublishes(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	draft, err := env.s.CreatePost(ctx, newPostRequest("Draft"))
	require.NoError(t, err)
	require.Nil(t, draft.PublishedAt)

	status := events.StatusPublished
	before := time.Now().UTC()

	p, err := env.s.UpdatePost(ctx, draft.ID, &UpdatePostRequest{Status: &status})
	require.NoError(t, err)

	require.NotNil(t, p.PublishedAt)
	assert.WithinDuration(t, before, *p.PublishedAt, 5*time.Second)
	assert.Equal(t, 2, p.Version)

	published := 0
	for _, name := range env.dispatcher.names() {
		if name == events.NamePublished {
			published++
		}
	}
	assert.Equal(t, 1, published)
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name        string
		req         func(p *Post) *UpdatePostRequest
		expectedErr error
	}{
		{
			name: "valid update",
			req: func(p *Post) *UpdatePostRequest {
				title := "Updated"
				return &UpdatePostRequest{Title: &title}
			},
		},
		{
			name: "empty title",
			req: func(p *Post) *UpdatePostRequest {
				title := " "
				return &UpdatePostRequest{Title: &title}
			},
			expectedErr: common.ValidationError{Errors: map[string]string{"title": "must be provided"}},
		},
		{
			name: "stale version",
			req: func(p *Post) *UpdatePostRequest {
				title := "Updated"
				version := p.Version + 5
				return &UpdatePostRequest{Title: &title, Version: &version}
			},
			expectedErr: ErrEditConflict,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			env := setupService(t, Config{})

			created, err := env.s.CreatePost(ctx, newPostRequest("Original"))
			require.NoError(t, err)

			p, err := env.s.UpdatePost(ctx, created.ID, tc.req(created))
			if tc.expectedErr != nil {
				assert.Equal(t, tc.expectedErr, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "Updated", p.Title)
			assert.Equal(t, "original", p.Slug)
		})
	}
}

func TestUpdatePostNotFound(t *testing.T) {
	env := setupService(t, Config{})

	_, err := env.s.UpdatePost(context.Background(), 42, &UpdatePostRequest{})
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestSetStatus(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	a, err := env.s.CreatePost(ctx, newPostRequest("A"))
	require.NoError(t, err)
	b, err := env.s.CreatePost(ctx, newPostRequest("B"))
	require.NoError(t, err)

	// bulk actions skip field validation
	env.store.posts[b.ID].Title = ""

	updated, err := env.s.SetStatus(ctx, []int{a.ID, b.ID, 404}, events.StatusPublished)
	assert.ErrorIs(t, err, ErrRecordNotFound)
	assert.Equal(t, 2, updated)

	assert.Equal(t, events.StatusPublished, env.store.posts[a.ID].Status)
	assert.Equal(t, events.StatusPublished, env.store.posts[b.ID].Status)
	assert.NotNil(t, env.store.posts[b.ID].PublishedAt)

	env.dispatcher.reset()

	updated, err = env.s.SetStatus(ctx, []int{a.ID}, events.StatusPublished)
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
	assert.Empty(t, env.dispatcher.events)

	_, err = env.s.SetStatus(ctx, []int{a.ID}, "deleted")
	assert.Equal(t, common.ValidationError{Errors: map[string]string{"status": "must be one of draft, published or archived"}}, err)
}

func TestSetFeatured(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	p, err := env.s.CreatePost(ctx, newPostRequest("A"))
	require.NoError(t, err)

	updated, err := env.s.SetFeatured(ctx, []int{p.ID}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
	assert.True(t, env.store.posts[p.ID].IsFeatured)
	assert.Empty(t, env.dispatcher.events)
}

func TestDeleteAndRestorePost(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	p, err := env.s.CreatePost(ctx, newPostRequest("Hello"))
	require.NoError(t, err)

	env.store.images[p.ID] = []Image{
		{ID: 1, PostID: p.ID, Path: "1.png"},
		{ID: 2, PostID: p.ID, Path: "2.png"},
		{ID: 3, PostID: p.ID, Path: "3.png"},
	}
	env.files.fail["2.png"] = true

	require.NoError(t, env.s.DeletePost(ctx, p.ID))

	assert.True(t, env.store.posts[p.ID].IsDeleted())
	assert.Equal(t, []string{"1.png", "3.png"}, env.files.deleted)
	assert.Equal(t, []string{"post cleanup failed"}, env.logger.Messages("ERROR"))

	_, err = env.s.GetPostByID(ctx, p.ID)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// the slug is free again while the post is deleted
	other, err := env.s.CreatePost(ctx, newPostRequest("Hello"))
	require.NoError(t, err)
	assert.Equal(t, "hello", other.Slug)

	_, err = env.s.RestorePost(ctx, p.ID)
	assert.ErrorIs(t, err, ErrDuplicateSlug)

	require.NoError(t, env.s.DeletePost(ctx, other.ID))

	restored, err := env.s.RestorePost(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, restored.IsDeleted())
	assert.Equal(t, "hello", restored.Slug)

	_, err = env.s.RestorePost(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotDeleted)
}

func TestDeletePostStrictCleanup(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{StrictCleanup: true})

	p, err := env.s.CreatePost(ctx, newPostRequest("Hello"))
	require.NoError(t, err)

	env.store.failures["comments"] = errors.New("lock timeout")

	err = env.s.DeletePost(ctx, p.ID)
	assert.ErrorContains(t, err, "lock timeout")
	assert.False(t, env.store.posts[p.ID].IsDeleted())
}

func TestGetPublishedPost(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	req := newPostRequest("Public")
	req.Status = events.StatusPublished
	public, err := env.s.CreatePost(ctx, req)
	require.NoError(t, err)

	_, err = env.s.CreatePost(ctx, newPostRequest("Hidden"))
	require.NoError(t, err)

	p, err := env.s.GetPublishedPost(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, public.ID, p.ID)

	_, err = env.s.GetPublishedPost(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, []string{"getBySlug"}, env.store.calls, "second read is served from cache")

	_, err = env.s.GetPublishedPost(ctx, "hidden")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	// any write drops cached pages
	title := "Public, edited"
	_, err = env.s.UpdatePost(ctx, public.ID, &UpdatePostRequest{Title: &title})
	require.NoError(t, err)

	p, err = env.s.GetPublishedPost(ctx, "public")
	require.NoError(t, err)
	assert.Equal(t, "Public, edited", p.Title)
}

func TestListPublishedPosts(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	for _, title := range []string{"One", "Two", "Three"} {
		req := newPostRequest(title)
		req.Status = events.StatusPublished
		req.Tags = []string{"go"}
		_, err := env.s.CreatePost(ctx, req)
		require.NoError(t, err)
	}

	_, err := env.s.CreatePost(ctx, newPostRequest("Draft"))
	require.NoError(t, err)

	posts, meta, err := env.s.ListPublishedPosts(ctx, Filters{Tag: "Go", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, Metadata{Limit: 2, Offset: 0, TotalRecords: 3}, meta)

	_, _, err = env.s.ListPublishedPosts(ctx, Filters{Tag: "Go", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, countCalls(env.store.calls, "list"))

	_, _, err = env.s.ListPublishedPosts(ctx, Filters{Sort: "password"})
	assert.Equal(t, common.ValidationError{Errors: map[string]string{"sort": "invalid sort value"}}, err)
}

func TestListPosts(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	for _, title := range []string{"One", "Two"} {
		_, err := env.s.CreatePost(ctx, newPostRequest(title))
		require.NoError(t, err)
	}

	posts, meta, err := env.s.ListPosts(ctx, Filters{Status: events.StatusDraft})
	require.NoError(t, err)
	assert.Len(t, posts, 2)
	assert.Equal(t, 10, meta.Limit)
	assert.Equal(t, "Two", posts[0].Title)
}

func countCalls(calls []string, name string) int {
	n := 0
	for _, c := range calls {
		if c == name {
			n++
		}
	}
	return n
}

func TestUpdatePostDropsPagesCachedMidWrite(t *testing.T) {
	ctx := context.Background()
	env := setupService(t, Config{})

	req := newPostRequest("Cached Title")
	req.Status = events.StatusPublished
	created, err := env.s.CreatePost(ctx, req)
	require.NoError(t, err)

	// a public read lands after BeforeUpdate flushed the cache but before the
	// new row is stored
	env.store.beforeUpdate = func() {
		_, err := env.s.GetPublishedPost(ctx, created.Slug)
		require.NoError(t, err)
	}

	title := "Fresh Title"
	_, err = env.s.UpdatePost(ctx, created.ID, &UpdatePostRequest{Title: &title})
	require.NoError(t, err)

	env.store.beforeUpdate = nil

	got, err := env.s.GetPublishedPost(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, "Fresh Title", got.Title)
}
