package taskstore

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry() *Registry {
	return NewRegistry(time.Hour, time.Minute)
}

func TestRegistryCreate(t *testing.T) {
	r := newTestRegistry()

	task := r.Create("file-1")
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, domain.StatusPending, task.Status)
	assert.Equal(t, "file-1", task.FileID)
	assert.False(t, task.CreatedAt.IsZero())

	got, ok := r.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, task, got)
}

func TestRegistryHappyPath(t *testing.T) {
	r := newTestRegistry()
	task := r.Create("file-1")

	require.NoError(t, r.MarkInProgress(task.ID))

	got, _ := r.Task(task.ID)
	assert.Equal(t, domain.StatusInProgress, got.Status)

	result := json.RawMessage(`{"label":"cat"}`)
	require.NoError(t, r.Complete(task.ID, result))

	got, _ = r.Task(task.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, result, got.Result)
	assert.False(t, got.CompletedAt.IsZero())
	assert.True(t, got.Status.Terminal())
}

func TestRegistryTransitionsAreMonotonic(t *testing.T) {
	r := newTestRegistry()

	// completing a pending task skips in_progress
	task := r.Create("f")
	assert.ErrorIs(t, r.Complete(task.ID, nil), domain.ErrInvalidTransition)

	// double in_progress
	require.NoError(t, r.MarkInProgress(task.ID))
	assert.ErrorIs(t, r.MarkInProgress(task.ID), domain.ErrInvalidTransition)

	// terminal states never move again
	require.NoError(t, r.Complete(task.ID, nil))
	assert.ErrorIs(t, r.Fail(task.ID, "late"), domain.ErrInvalidTransition)
	assert.ErrorIs(t, r.MarkInProgress(task.ID), domain.ErrInvalidTransition)

	got, _ := r.Task(task.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestRegistryFailFromPending(t *testing.T) {
	r := newTestRegistry()
	task := r.Create("f")

	// a task can fail before dispatch ever starts
	require.NoError(t, r.Fail(task.ID, "queue full"))

	got, _ := r.Task(task.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "queue full", got.Error)
	assert.False(t, got.CompletedAt.IsZero())
}

func TestRegistryUnknownTask(t *testing.T) {
	r := newTestRegistry()

	_, ok := r.Task("ghost")
	assert.False(t, ok)
	assert.ErrorIs(t, r.MarkInProgress("ghost"), domain.ErrTaskNotFound)
	assert.ErrorIs(t, r.Complete("ghost", nil), domain.ErrTaskNotFound)
	assert.ErrorIs(t, r.Fail("ghost", "x"), domain.ErrTaskNotFound)
}

func TestRegistryDeleteExpired(t *testing.T) {
	r := NewRegistry(time.Hour, time.Minute)

	done := r.Create("f1")
	require.NoError(t, r.Fail(done.ID, "boom"))

	active := r.Create("f2")

	// completion happened "now", so an hour from now it is expired
	deleted := r.deleteExpired(time.Now().Add(2 * time.Hour))
	assert.Equal(t, 1, deleted)

	_, ok := r.Task(done.ID)
	assert.False(t, ok)

	// pending tasks survive any amount of time
	_, ok = r.Task(active.ID)
	assert.True(t, ok)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry()

	var wg sync.WaitGroup
	ids := make([]string, 50)

	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			task := r.Create("file")
			ids[i] = task.ID
			_ = r.MarkInProgress(task.ID)
			_ = r.Complete(task.ID, json.RawMessage(`{}`))
		}(i)
	}
	wg.Wait()

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
		got, ok := r.Task(id)
		require.True(t, ok)
		assert.Equal(t, domain.StatusCompleted, got.Status)
	}
	assert.Len(t, seen, len(ids))
}
