package events

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
)

// Statuses lists every status a post may hold.
var Statuses = []Status{StatusDraft, StatusPublished, StatusArchived}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}

	return false
}

// IsPublishing reports whether moving from old to new makes a post visible.
func IsPublishing(old, new Status) bool {
	return old != StatusPublished && new == StatusPublished
}

// IsUnpublishing reports whether moving from old to new hides a published post.
func IsUnpublishing(old, new Status) bool {
	return old == StatusPublished && new != StatusPublished
}

type Name string

const (
	NamePublished     Name = "post.published"
	NameStatusChanged Name = "post.status_changed"
)

// Lane is a named queue that listeners consume from. Lanes are independent of
// each other: a backlog on one never delays the other.
type Lane string

const (
	LaneSearchIndex   Lane = "search-index"
	LaneNotifications Lane = "notifications"
)

// DefaultMaxAttempts is how many times a listener job is tried before it is
// moved to the failed jobs queue.
const DefaultMaxAttempts = 3

var subscriptions = map[Name][]Lane{
	NamePublished:     {LaneSearchIndex, LaneNotifications},
	NameStatusChanged: {LaneSearchIndex},
}

// LanesFor returns the lanes whose listeners subscribe to the named event.
func LanesFor(name Name) []Lane {
	return subscriptions[name]
}

// PostSnapshot is the denormalized view of a post carried by events. Content
// is plain text, markdown already stripped.
type PostSnapshot struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Slug        string     `json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content"`
	Author      string     `json:"author"`
	Category    string     `json:"category"`
	Tags        []string   `json:"tags"`
	URL         string     `json:"url"`
	Status      Status     `json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

type Event interface {
	EventName() Name
	Subject() PostSnapshot
}

type Published struct {
	Post PostSnapshot
}

func (e Published) EventName() Name       { return NamePublished }
func (e Published) Subject() PostSnapshot { return e.Post }

type StatusChanged struct {
	Post      PostSnapshot
	OldStatus Status
	NewStatus Status
}

func (e StatusChanged) EventName() Name       { return NameStatusChanged }
func (e StatusChanged) Subject() PostSnapshot { return e.Post }

func (e StatusChanged) IsPublishing() bool {
	return IsPublishing(e.OldStatus, e.NewStatus)
}

func (e StatusChanged) IsUnpublishing() bool {
	return IsUnpublishing(e.OldStatus, e.NewStatus)
}

// Job is the queue envelope for one event delivered to one lane.
type Job struct {
	ID          string       `json:"id"`
	Event       Name         `json:"event"`
	Lane        Lane         `json:"lane"`
	Attempts    int          `json:"attempts"`
	MaxAttempts int          `json:"max_attempts"`
	Post        PostSnapshot `json:"post"`
	OldStatus   Status       `json:"old_status,omitempty"`
	NewStatus   Status       `json:"new_status,omitempty"`
	EnqueuedAt  time.Time    `json:"enqueued_at"`
	LastError   string       `json:"last_error,omitempty"`
	FailedAt    *time.Time   `json:"failed_at,omitempty"`
}

func NewJob(e Event, lane Lane, maxAttempts int) *Job {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	job := &Job{
		ID:          uuid.NewString(),
		Event:       e.EventName(),
		Lane:        lane,
		MaxAttempts: maxAttempts,
		Post:        e.Subject(),
		EnqueuedAt:  time.Now().UTC(),
	}

	if sc, ok := e.(StatusChanged); ok {
		job.OldStatus = sc.OldStatus
		job.NewStatus = sc.NewStatus
	}

	return job
}

// Decode rebuilds the typed event carried by the job. It returns nil for an
// unknown event name.
func (j *Job) Decode() Event {
	switch j.Event {
	case NamePublished:
		return Published{Post: j.Post}
	case NameStatusChanged:
		return StatusChanged{Post: j.Post, OldStatus: j.OldStatus, NewStatus: j.NewStatus}
	default:
		return nil
	}
}
