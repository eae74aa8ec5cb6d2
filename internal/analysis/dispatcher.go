package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path"

	"github.com/jb-platform/fileserver/internal/domain"
)

type Registry interface {
	Task(id string) (domain.Task, bool)
	MarkInProgress(id string) error
	Complete(id string, result json.RawMessage) error
	Fail(id string, detail string) error
}

type FileOpener interface {
	Open(ctx context.Context, name string) (io.ReadCloser, int64, error)
}

type Notifier interface {
	Notify(ctx context.Context, task domain.Task) bool
}

type Analyzer interface {
	Analyze(ctx context.Context, file io.Reader, filename string, opts Options) (json.RawMessage, error)
}

// Dispatcher drives one task through the classifier call and records the
// outcome. Errors stay inside the task record: the upload caller already got
// its response and learns the outcome by polling.
type Dispatcher struct {
	client      Analyzer
	registry    Registry
	files       FileOpener
	notifier    Notifier
	callbackURL string
}

func NewDispatcher(client Analyzer, registry Registry, files FileOpener, notifier Notifier, callbackURL string) *Dispatcher {
	return &Dispatcher{
		client:      client,
		registry:    registry,
		files:       files,
		notifier:    notifier,
		callbackURL: callbackURL,
	}
}

// Dispatch runs in a background worker. The task reaches in_progress before
// any outcome is recorded; terminal states trigger the notification fan-out.
func (d *Dispatcher) Dispatch(ctx context.Context, storedName, fileID, taskID string) {
	logger := slog.With(
		slog.String("task_id", taskID),
		slog.String("file_id", fileID),
	)

	if err := d.registry.MarkInProgress(taskID); err != nil {
		logger.Error("mark task in progress", slog.String("error", err.Error()))
		return
	}

	f, _, err := d.files.Open(ctx, storedName)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, domain.ErrFileNotFound) {
			detail = "file not found: " + storedName
		}
		d.fail(ctx, taskID, detail, logger)
		return
	}
	defer f.Close()

	logger.Info("analysis dispatch start")

	result, err := d.client.Analyze(ctx, f, path.Base(storedName), Options{
		FileID:   fileID,
		TaskID:   taskID,
		Detailed: true,
		Webhook:  d.callbackURL,
	})
	if err != nil {
		d.fail(ctx, taskID, err.Error(), logger)
		return
	}

	if err := d.registry.Complete(taskID, result); err != nil {
		logger.Error("complete task", slog.String("error", err.Error()))
		return
	}

	logger.Info("analysis completed")
	d.notifyTerminal(ctx, taskID)
}

func (d *Dispatcher) fail(ctx context.Context, taskID, detail string, logger *slog.Logger) {
	logger.Error("analysis failed", slog.String("detail", detail))
	if err := d.registry.Fail(taskID, detail); err != nil {
		logger.Error("fail task", slog.String("error", err.Error()))
		return
	}
	d.notifyTerminal(ctx, taskID)
}

func (d *Dispatcher) notifyTerminal(ctx context.Context, taskID string) {
	task, ok := d.registry.Task(taskID)
	if !ok {
		return
	}
	d.notifier.Notify(ctx, task)
}
