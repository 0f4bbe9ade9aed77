package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/natsconn"
)

type Handlers struct {
	// Bulk runs one batch. Returned errors are retried with backoff unless
	// wrapped with Permanent.
	Bulk func(ctx context.Context, job BulkJob) error
}

type Worker struct {
	Log      *zap.Logger
	JS       nats.JetStreamContext
	Handlers Handlers

	MaxDeliver int
	// AckWait must exceed the longest batch.
	AckWait time.Duration
}

func NewWorker(log *zap.Logger, nc *nats.Conn, handlers Handlers) (*Worker, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Worker{Log: log, JS: js, Handlers: handlers, MaxDeliver: 5, AckWait: 15 * time.Minute}, nil
}

func (w *Worker) EnsureStream() error {
	return natsconn.EnsureStream(w.JS, Stream, StreamSubjects, 7*24*time.Hour)
}

func (w *Worker) Run(ctx context.Context) error {
	if err := w.EnsureStream(); err != nil {
		return err
	}

	sub, err := w.JS.PullSubscribe(SubjectBulkRun, durableBulk, nats.AckWait(w.AckWait))
	if err != nil {
		return err
	}
	return w.consumeLoop(ctx, sub, SubjectBulkRun)
}

func (w *Worker) consumeLoop(ctx context.Context, sub *nats.Subscription, subj string) error {
	w.Log.Info("consumer started", zap.String("subject", subj))
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := sub.Fetch(1, nats.MaxWait(2*time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, m := range msgs {
			_ = w.handleMsg(ctx, m)
		}
	}
}

func (w *Worker) handleMsg(ctx context.Context, m *nats.Msg) error {
	md, _ := m.Metadata()
	numDelivered := uint64(1)
	if md != nil {
		numDelivered = md.NumDelivered
	}

	if w.MaxDeliver > 0 && int(numDelivered) > w.MaxDeliver {
		_ = w.publishDLQ(m.Subject, m.Data, fmt.Sprintf("max deliveries exceeded: %d", numDelivered))
		_ = m.Ack()
		return nil
	}

	var j BulkJob
	if err := json.Unmarshal(m.Data, &j); err != nil {
		w.Log.Warn("bad payload", zap.String("subject", m.Subject), zap.Error(err))
		_ = w.publishDLQ(m.Subject, m.Data, "bad payload: "+err.Error())
		_ = m.Ack()
		return nil
	}
	if err := j.validate(); err != nil {
		w.Log.Warn("invalid bulk job", zap.String("batch_id", j.BatchID), zap.Error(err))
		_ = w.publishDLQ(m.Subject, m.Data, err.Error())
		_ = m.Ack()
		return nil
	}

	if err := w.Handlers.Bulk(ctx, j); err != nil {
		var perm *PermanentError
		if errors.As(err, &perm) {
			w.Log.Warn("bulk job rejected", zap.String("batch_id", j.BatchID), zap.Error(err))
			_ = w.publishDLQ(m.Subject, m.Data, err.Error())
			_ = m.Ack()
			return err
		}
		w.Log.Warn("bulk job failed", zap.String("batch_id", j.BatchID), zap.Uint64("attempt", numDelivered), zap.Error(err))
		_ = m.NakWithDelay(backoffDelay(numDelivered))
		return err
	}
	_ = m.Ack()
	return nil
}

func (w *Worker) publishDLQ(subject string, data []byte, reason string) error {
	msg := map[string]any{"subject": subject, "reason": reason, "payload": json.RawMessage(data)}
	b, _ := json.Marshal(msg)
	_, err := w.JS.Publish(SubjectDLQ, b)
	return err
}
