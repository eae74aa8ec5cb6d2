package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"

	"github.com/google/uuid"
)

// Registry is the in-memory task table. It is deliberately memory-resident:
// tasks do not survive a restart, callers re-submit if they need the result
// again. All access goes through the mutex, so a reader never observes a
// half-updated record, and transitions are one-directional:
// pending -> in_progress -> completed | failed.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task

	retention       time.Duration
	cleanupInterval time.Duration
}

func NewRegistry(retention, cleanupInterval time.Duration) *Registry {
	return &Registry{
		tasks:           make(map[string]domain.Task),
		retention:       retention,
		cleanupInterval: cleanupInterval,
	}
}

// Create registers a new pending task for the given file.
func (r *Registry) Create(fileID string) domain.Task {
	t := domain.Task{
		ID:        uuid.NewString(),
		Status:    domain.StatusPending,
		FileID:    fileID,
		CreatedAt: time.Now(),
	}

	r.mu.Lock()
	r.tasks[t.ID] = t
	r.mu.Unlock()

	return t
}

func (r *Registry) Task(id string) (domain.Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	return t, ok
}

func (r *Registry) MarkInProgress(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status != domain.StatusPending {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, domain.StatusInProgress)
	}

	t.Status = domain.StatusInProgress
	r.tasks[id] = t
	return nil
}

// Complete stores the result payload and seals the task. Only an in-progress
// task can complete: an outcome is never recorded before dispatch began.
func (r *Registry) Complete(id string, result json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status != domain.StatusInProgress {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, domain.StatusCompleted)
	}

	t.Status = domain.StatusCompleted
	t.Result = result
	t.CompletedAt = time.Now()
	r.tasks[id] = t
	return nil
}

// Fail seals the task with the error detail. Allowed from any non-terminal
// state: a task can fail before dispatch ever starts (e.g. the work queue
// rejected the job).
func (r *Registry) Fail(id string, detail string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, t.Status, domain.StatusFailed)
	}

	t.Status = domain.StatusFailed
	t.Error = detail
	t.CompletedAt = time.Now()
	r.tasks[id] = t
	return nil
}

// StartCleanup evicts terminal tasks some time after completion so the
// registry does not grow without bound under sustained load.
func (r *Registry) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(r.cleanupInterval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if n := r.deleteExpired(now); n > 0 {
					slog.Info("task registry cleanup", slog.Int("deleted_tasks", n))
				}
			}
		}
	}()
}

func (r *Registry) deleteExpired(now time.Time) int {
	border := now.Add(-r.retention)

	r.mu.Lock()
	defer r.mu.Unlock()

	deleted := 0
	for id, t := range r.tasks {
		if t.Status.Terminal() && t.CompletedAt.Before(border) {
			delete(r.tasks, id)
			deleted++
		}
	}
	return deleted
}
