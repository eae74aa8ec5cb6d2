package analysis

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jb-platform/fileserver/internal/domain"
	taskstore "github.com/jb-platform/fileserver/internal/infra/store/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFiles struct {
	objects map[string][]byte
}

func (f *fakeFiles) Open(ctx context.Context, name string) (io.ReadCloser, int64, error) {
	b, ok := f.objects[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", domain.ErrFileNotFound, name)
	}
	return io.NopCloser(bytes.NewReader(b)), int64(len(b)), nil
}

type captureNotifier struct {
	mu    sync.Mutex
	tasks []domain.Task
}

func (n *captureNotifier) Notify(ctx context.Context, task domain.Task) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task)
	return true
}

func (n *captureNotifier) captured() []domain.Task {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.Task(nil), n.tasks...)
}

func newDispatcherEnv(t *testing.T, aiURL string) (*Dispatcher, *taskstore.Registry, *fakeFiles, *captureNotifier) {
	t.Helper()
	registry := taskstore.NewRegistry(time.Hour, time.Minute)
	files := &fakeFiles{objects: map[string][]byte{
		"uploads/doc.pdf": []byte("pdf bytes"),
	}}
	notifier := &captureNotifier{}
	client := NewClient(aiURL, "", 5*time.Second)

	return NewDispatcher(client, registry, files, notifier, "http://cb.local"), registry, files, notifier
}

func TestDispatchCompletesTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"label":"invoice"}`))
	}))
	defer srv.Close()

	d, registry, _, notifier := newDispatcherEnv(t, srv.URL)
	task := registry.Create("file-1")

	d.Dispatch(context.Background(), "uploads/doc.pdf", "file-1", task.ID)

	got, ok := registry.Task(task.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.JSONEq(t, `{"label":"invoice"}`, string(got.Result))
	assert.Empty(t, got.Error)

	captured := notifier.captured()
	require.Len(t, captured, 1)
	assert.Equal(t, domain.StatusCompleted, captured[0].Status)
}

func TestDispatchRemoteErrorFailsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("classifier exploded"))
	}))
	defer srv.Close()

	d, registry, _, notifier := newDispatcherEnv(t, srv.URL)
	task := registry.Create("file-1")

	d.Dispatch(context.Background(), "uploads/doc.pdf", "file-1", task.ID)

	got, _ := registry.Task(task.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "classifier exploded", got.Error)

	require.Len(t, notifier.captured(), 1)
}

func TestDispatchUnreachableServiceFailsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	d, registry, _, _ := newDispatcherEnv(t, srv.URL)
	task := registry.Create("file-1")

	d.Dispatch(context.Background(), "uploads/doc.pdf", "file-1", task.ID)

	got, _ := registry.Task(task.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
}

func TestDispatchMissingFileFailsTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("classifier must not be called for a missing file")
	}))
	defer srv.Close()

	d, registry, _, notifier := newDispatcherEnv(t, srv.URL)
	task := registry.Create("file-1")

	d.Dispatch(context.Background(), "uploads/ghost.pdf", "file-1", task.ID)

	got, _ := registry.Task(task.ID)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, "file not found: uploads/ghost.pdf", got.Error)

	require.Len(t, notifier.captured(), 1)
}

func TestDispatchUnknownTaskIsNoOp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no work expected for an unknown task")
	}))
	defer srv.Close()

	d, _, _, notifier := newDispatcherEnv(t, srv.URL)

	d.Dispatch(context.Background(), "uploads/doc.pdf", "file-1", "ghost-task")

	assert.Empty(t, notifier.captured())
}
