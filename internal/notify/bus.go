package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// BusSink publishes completion events to a JetStream subject.
type BusSink struct {
	js      nats.JetStreamContext
	subject string
}

func NewBusSink(js nats.JetStreamContext, subject string) *BusSink {
	return &BusSink{js: js, subject: subject}
}

func (s *BusSink) Name() string { return "bus" }

func (s *BusSink) Send(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: s.subject,
		Data:    data,
		Header:  nats.Header{},
	}

	ack, err := s.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish event for task %s: %w", event.TaskID, err)
	}

	slog.Debug("analysis event published",
		slog.String("task_id", event.TaskID),
		slog.String("subject", s.subject),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence),
	)

	return nil
}
