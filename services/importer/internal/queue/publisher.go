package queue

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
)

// JetStreamPublisher is the publishing half of nats.JetStreamContext.
type JetStreamPublisher interface {
	Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error)
}

// Publisher enqueues bulk jobs and reports finished batches.
type Publisher struct {
	JS JetStreamPublisher
}

// Enqueue publishes job; the batch id doubles as the dedup id.
func (p *Publisher) Enqueue(ctx context.Context, job BulkJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return err
	}
	_, err = p.JS.Publish(SubjectBulkRun, b, nats.MsgId(job.BatchID), nats.Context(ctx))
	return err
}

// Done publishes a batch report to importer.bulk.done.
func (p *Publisher) Done(ctx context.Context, batchID string, report any) error {
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = p.JS.Publish(SubjectBulkDone, b, nats.MsgId(batchID+".done"), nats.Context(ctx))
	return err
}
