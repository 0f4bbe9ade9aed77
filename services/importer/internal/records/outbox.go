package records

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/example/anime-import/internal/platform/natsconn"
)

const (
	EventsStream  = "ANIME_EVENTS"
	EventsSubject = "anime.>"
)

// OutboxRelay publishes pending importer_outbox rows to JetStream.
type OutboxRelay struct {
	Log          *zap.Logger
	DB           *pgxpool.Pool
	JS           nats.JetStreamContext
	BatchSize    int
	PollInterval time.Duration
}

type outboxRow struct {
	ID        string
	EventType string
	Payload   json.RawMessage
}

func NewOutboxRelay(log *zap.Logger, db *pgxpool.Pool, nc *nats.Conn) (*OutboxRelay, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &OutboxRelay{
		Log:          log,
		DB:           db,
		JS:           js,
		BatchSize:    100,
		PollInterval: 2 * time.Second,
	}, nil
}

// Run polls until ctx is done.
func (p *OutboxRelay) Run(ctx context.Context) error {
	if err := natsconn.EnsureStream(p.JS, EventsStream, EventsSubject, 7*24*time.Hour); err != nil {
		return err
	}

	ticker := time.NewTicker(p.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.flushOnce(ctx); err != nil {
				p.Log.Warn("outbox flush failed", zap.Error(err))
			}
		}
	}
}

func (p *OutboxRelay) flushOnce(ctx context.Context) error {
	tx, err := p.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id::text, event_type, payload
FROM importer_outbox
WHERE published_at IS NULL
ORDER BY created_at
LIMIT $1
FOR UPDATE SKIP LOCKED
`, p.BatchSize)
	if err != nil {
		return err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (outboxRow, error) {
		var item outboxRow
		err := row.Scan(&item.ID, &item.EventType, &item.Payload)
		return item, err
	})
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, err := p.JS.Publish(item.EventType, item.Payload, nats.MsgId(item.ID)); err != nil {
			return err
		}
		ids = append(ids, item.ID)
	}

	if _, err := tx.Exec(ctx, `UPDATE importer_outbox SET published_at = now() WHERE id::text = ANY($1)`, ids); err != nil {
		return err
	}
	p.Log.Debug("outbox flushed", zap.Int("count", len(ids)))
	return tx.Commit(ctx)
}
