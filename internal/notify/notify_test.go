package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	mu     sync.Mutex
	name   string
	err    error
	events []Event
}

func (s *memorySink) Name() string { return s.name }

func (s *memorySink) Send(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func TestFanoutNoSinks(t *testing.T) {
	f := NewFanout()
	assert.False(t, f.Notify(context.Background(), domain.Task{ID: "t1"}))
}

func TestFanoutNoopSinkReportsDelivery(t *testing.T) {
	f := NewFanout(NoopSink{})
	assert.True(t, f.Notify(context.Background(), domain.Task{ID: "t1", Status: domain.StatusFailed}))
}

func TestFanoutDeliversToAllSinks(t *testing.T) {
	a := &memorySink{name: "a"}
	b := &memorySink{name: "b"}
	f := NewFanout(a, b)

	task := domain.Task{
		ID:          "t1",
		Status:      domain.StatusCompleted,
		CompletedAt: time.Now(),
		Result:      json.RawMessage(`{"ok":true}`),
	}

	assert.True(t, f.Notify(context.Background(), task))

	for _, s := range []*memorySink{a, b} {
		require.Len(t, s.events, 1)
		event := s.events[0]
		assert.Equal(t, "t1", event.TaskID)
		assert.Equal(t, domain.StatusCompleted, event.Status)
		assert.NotZero(t, event.Timestamp)
		assert.JSONEq(t, `{"ok":true}`, string(event.Result))
	}
}

func TestFanoutFailingSinkDoesNotBlockOthers(t *testing.T) {
	bad := &memorySink{name: "bad", err: errors.New("down")}
	good := &memorySink{name: "good"}
	f := NewFanout(bad, good)

	assert.True(t, f.Notify(context.Background(), domain.Task{ID: "t1", Status: domain.StatusFailed, Error: "boom"}))

	require.Len(t, good.events, 1)
	assert.Equal(t, "boom", good.events[0].Error)
}
