package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitions(t *testing.T) {
	all := append([]Status{"", "unknown"}, Statuses...)

	for _, old := range all {
		for _, new := range all {
			t.Run(string(old)+"->"+string(new), func(t *testing.T) {
				assert.Equal(t, old != StatusPublished && new == StatusPublished, IsPublishing(old, new))
				assert.Equal(t, old == StatusPublished && new != StatusPublished, IsUnpublishing(old, new))

				e := StatusChanged{OldStatus: old, NewStatus: new}
				assert.Equal(t, IsPublishing(old, new), e.IsPublishing())
				assert.Equal(t, IsUnpublishing(old, new), e.IsUnpublishing())
				assert.False(t, e.IsPublishing() && e.IsUnpublishing())
			})
		}
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusDraft.Valid())
	assert.True(t, StatusPublished.Valid())
	assert.True(t, StatusArchived.Valid())
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("").Valid())
}

func TestLanesFor(t *testing.T) {
	assert.Equal(t, []Lane{LaneSearchIndex, LaneNotifications}, LanesFor(NamePublished))
	assert.Equal(t, []Lane{LaneSearchIndex}, LanesFor(NameStatusChanged))
	assert.Empty(t, LanesFor(Name("post.created")))
}

func TestNewJob(t *testing.T) {
	post := PostSnapshot{ID: 7, Title: "Hello", Status: StatusArchived}

	t.Run("status changed keeps both statuses", func(t *testing.T) {
		job := NewJob(StatusChanged{Post: post, OldStatus: StatusPublished, NewStatus: StatusArchived}, LaneSearchIndex, 0)

		assert.NotEmpty(t, job.ID)
		assert.Equal(t, DefaultMaxAttempts, job.MaxAttempts)
		assert.Equal(t, LaneSearchIndex, job.Lane)

		body, err := json.Marshal(job)
		require.NoError(t, err)

		var decoded Job
		require.NoError(t, json.Unmarshal(body, &decoded))

		e, ok := decoded.Decode().(StatusChanged)
		require.True(t, ok)
		assert.True(t, e.IsUnpublishing())
		assert.Equal(t, 7, e.Post.ID)
	})

	t.Run("published", func(t *testing.T) {
		job := NewJob(Published{Post: post}, LaneNotifications, 5)

		assert.Equal(t, 5, job.MaxAttempts)
		assert.Empty(t, job.OldStatus)
		assert.IsType(t, Published{}, job.Decode())
	})

	t.Run("unknown event", func(t *testing.T) {
		job := &Job{Event: "post.viewed"}
		assert.Nil(t, job.Decode())
	})
}
