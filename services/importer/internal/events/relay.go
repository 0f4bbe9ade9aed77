package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectProgress carries every progress event; consumers filter on Type.
const SubjectProgress = "importer.progress"

// AsyncPublisher is the part of nats.JetStreamContext Relay needs.
type AsyncPublisher interface {
	PublishAsync(subj string, data []byte, opts ...nats.PubOpt) (nats.PubAckFuture, error)
}

// Relay mirrors progress events to JetStream so other instances and
// dashboards can follow batches run by the worker. Publishing is
// fire-and-forget; a nil Relay is a no-op.
type Relay struct {
	js  AsyncPublisher
	log *zap.Logger
}

func NewRelay(js AsyncPublisher, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	return &Relay{js: js, log: log}
}

func (r *Relay) Publish(ev Event) {
	if r == nil || r.js == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		r.log.Warn("progress: marshal failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if _, err := r.js.PublishAsync(SubjectProgress, data, nats.MsgId(msgID(ev))); err != nil {
		r.log.Warn("progress: publish failed", zap.String("batch_id", ev.BatchID), zap.Error(err))
	}
}

func msgID(ev Event) string {
	return fmt.Sprintf("%s.%s.%d", ev.BatchID, ev.Type, ev.Index)
}

// Sink receives progress events.
type Sink interface {
	Publish(ev Event)
}

// Fanout publishes each event to every sink in order.
type Fanout []Sink

func (f Fanout) Publish(ev Event) {
	for _, s := range f {
		s.Publish(ev)
	}
}
