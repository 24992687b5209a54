package postservice

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sushihentaime/blogcms/internal/events"
)

// memoryStore keeps posts in memory and enforces the live slug uniqueness
// and version checks of the posts table.
type memoryStore struct {
	mu     sync.Mutex
	nextID int
	posts  map[int]*Post
	images map[int][]Image

	// failures forces the named cleanup step to fail.
	failures map[string]error
	// takenSlugs are reported free by SlugExists but rejected on write,
	// simulating a concurrent writer.
	takenSlugs map[string]bool

	calls      []string
	quietSaves int

	// beforeUpdate runs ahead of every update, outside the lock.
	beforeUpdate func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		nextID:     1,
		posts:      make(map[int]*Post),
		images:     make(map[int][]Image),
		failures:   make(map[string]error),
		takenSlugs: make(map[string]bool),
	}
}

func (s *memoryStore) SlugExists(ctx context.Context, slug string, excludeID int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.failures["slug_exists"]; err != nil {
		return false, err
	}

	return s.slugTaken(slug, excludeID), nil
}

func (s *memoryStore) slugTaken(slug string, excludeID int) bool {
	for _, p := range s.posts {
		if p.ID != excludeID && p.Slug == slug && !p.IsDeleted() {
			return true
		}
	}
	return false
}

func (s *memoryStore) insert(ctx context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimed(p.Slug) || s.slugTaken(p.Slug, 0) {
		return ErrDuplicateSlug
	}

	p.ID = s.nextID
	s.nextID++
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	p.Version = 1

	s.posts[p.ID] = p.clone()
	return nil
}

// claimed stores a post under slug when it is one of takenSlugs, as if
// another writer had inserted it first.
func (s *memoryStore) claimed(slug string) bool {
	if !s.takenSlugs[slug] {
		return false
	}

	delete(s.takenSlugs, slug)
	s.posts[s.nextID] = &Post{ID: s.nextID, Slug: slug, Status: events.StatusDraft}
	s.nextID++
	return true
}

func (s *memoryStore) update(ctx context.Context, p *Post) error {
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.posts[p.ID]
	if !ok || stored.IsDeleted() || stored.Version != p.Version {
		return ErrEditConflict
	}

	if s.claimed(p.Slug) || s.slugTaken(p.Slug, p.ID) {
		return ErrDuplicateSlug
	}

	p.Version++
	p.UpdatedAt = time.Now().UTC()

	s.posts[p.ID] = p.clone()
	return nil
}

func (s *memoryStore) saveQuietly(ctx context.Context, p *Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quietSaves++

	stored, ok := s.posts[p.ID]
	if !ok {
		return ErrRecordNotFound
	}
	stored.Excerpt = p.Excerpt
	stored.ReadingTime = p.ReadingTime
	return nil
}

func (s *memoryStore) getByID(ctx context.Context, id int, withDeleted bool) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || (p.IsDeleted() && !withDeleted) {
		return nil, ErrRecordNotFound
	}
	return p.clone(), nil
}

func (s *memoryStore) getBySlug(ctx context.Context, slug string) (*Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "getBySlug")

	for _, p := range s.posts {
		if p.Slug == slug && !p.IsDeleted() {
			return p.clone(), nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *memoryStore) list(ctx context.Context, f Filters) ([]Post, Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, "list")

	var matched []Post
	for _, p := range s.posts {
		switch {
		case p.IsDeleted():
			continue
		case f.Status != "" && p.Status != f.Status:
			continue
		case f.CategoryID != 0 && p.CategoryID != f.CategoryID:
			continue
		case f.Featured != nil && p.IsFeatured != *f.Featured:
			continue
		case f.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(f.Search)):
			continue
		case f.Tag != "" && !hasTag(p, f.Tag):
			continue
		}
		matched = append(matched, *p.clone())
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if f.sortDirection() == "DESC" {
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	}

	total := len(matched)
	start := min(f.Offset, total)
	end := min(start+f.Limit, total)

	return matched[start:end], Metadata{Limit: f.Limit, Offset: f.Offset, TotalRecords: total}, nil
}

func hasTag(p *Post, slug string) bool {
	for _, t := range p.Tags {
		if t.Slug == slug {
			return true
		}
	}
	return false
}

func (s *memoryStore) softDelete(ctx context.Context, id int) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || p.IsDeleted() {
		return time.Time{}, ErrRecordNotFound
	}

	now := time.Now().UTC()
	p.DeletedAt = &now
	return now, nil
}

func (s *memoryStore) restore(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok || !p.IsDeleted() {
		return ErrRecordNotFound
	}

	if s.slugTaken(p.Slug, id) {
		return ErrDuplicateSlug
	}

	p.DeletedAt = nil
	return nil
}

func (s *memoryStore) step(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, name)
	return s.failures[name]
}

func (s *memoryStore) imagesForPost(ctx context.Context, postID int) ([]Image, error) {
	if err := s.step("images"); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Image(nil), s.images[postID]...), nil
}

func (s *memoryStore) deleteImage(ctx context.Context, id int) error {
	if err := s.step("delete_image"); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for postID, imgs := range s.images {
		for i, img := range imgs {
			if img.ID == id {
				s.images[postID] = append(imgs[:i], imgs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (s *memoryStore) softDeleteComments(ctx context.Context, postID int) error {
	return s.step("comments")
}

func (s *memoryStore) deleteViews(ctx context.Context, postID int) error {
	return s.step("views")
}

func (s *memoryStore) detachTags(ctx context.Context, postID int) error {
	return s.step("tags")
}

func (s *memoryStore) detachLikes(ctx context.Context, postID int) error {
	return s.step("likes")
}

// fileStore records deleted paths and fails for the paths in fail.
type fileStore struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (f *fileStore) Delete(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail[path] {
		return errors.New("permission denied")
	}
	f.deleted = append(f.deleted, path)
	return nil
}

// recordingDispatcher keeps every dispatched event in order.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, e events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.events = append(d.events, e)
	return d.err
}

func (d *recordingDispatcher) names() []events.Name {
	d.mu.Lock()
	defer d.mu.Unlock()

	names := make([]events.Name, 0, len(d.events))
	for _, e := range d.events {
		names = append(names, e.EventName())
	}
	return names
}

func (d *recordingDispatcher) reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = nil
}

// countingInvalidator counts invalidation calls.
type countingInvalidator struct {
	mu    sync.Mutex
	posts int
	tags  [][]string
	err   error
}

func (c *countingInvalidator) InvalidatePosts(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts++
	return c.err
}

func (c *countingInvalidator) InvalidateByTags(ctx context.Context, tags ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append(c.tags, tags)
	return c.err
}

type recordingSubscriber struct {
	signals []Signal
}

func (r *recordingSubscriber) OnSignal(ctx context.Context, s Signal, p *Post) {
	r.signals = append(r.signals, s)
}

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}
