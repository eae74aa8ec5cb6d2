// Package notify fans a task's terminal event out to independent sinks.
// Notification is best-effort: sink errors are logged, never propagated,
// and the dispatcher is never blocked beyond the sinks' own timeouts.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"
)

// Event is the wire payload delivered to every sink.
type Event struct {
	TaskID    string            `json:"taskId"`
	Status    domain.TaskStatus `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Result    json.RawMessage   `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
}

type Sink interface {
	Name() string
	Send(ctx context.Context, event Event) error
}

type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Notify delivers the event to every sink regardless of the others'
// outcomes. Returns true when at least one sink was attempted.
func (f *Fanout) Notify(ctx context.Context, task domain.Task) bool {
	if len(f.sinks) == 0 {
		return false
	}

	event := Event{
		TaskID:    task.ID,
		Status:    task.Status,
		Timestamp: time.Now().Unix(),
		Result:    task.Result,
		Error:     task.Error,
	}

	for _, s := range f.sinks {
		if err := s.Send(ctx, event); err != nil {
			slog.Warn("notification sink failed",
				slog.String("sink", s.Name()),
				slog.String("task_id", task.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return true
}

// NoopSink stands in when no bus and no webhook are configured.
type NoopSink struct{}

func (NoopSink) Name() string { return "noop" }

func (NoopSink) Send(ctx context.Context, event Event) error {
	slog.Debug("notification dropped, no sink configured",
		slog.String("task_id", event.TaskID),
	)
	return nil
}
