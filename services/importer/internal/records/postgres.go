package records

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/anime-import/services/importer/internal/anime"
)

// EventAnimeCreated is the outbox event type, also used as the NATS subject.
const EventAnimeCreated = "anime.created"

//go:embed schema.sql
var schema string

// PostgresStore writes records directly, together with an outbox event in the
// same transaction.
type PostgresStore struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, rec anime.Record) (string, error) {
	altJSON, _ := json.Marshal(nonNil(rec.AlternativeNames))
	genresJSON, _ := json.Marshal(nonNil(rec.Genres))
	now := s.now().UTC()
	id := uuid.New()

	var seasonYear *int
	if rec.SeasonYear != 0 {
		seasonYear = &rec.SeasonYear
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", &PersistenceError{Message: "db begin", Err: err}
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO anime (id, title, slug, alternative_names, description, cover_url, genres, status, type, episode_count, studio, season, season_year, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)`,
		id, rec.Title, rec.Slug, altJSON, rec.Description, rec.CoverURL, genresJSON,
		string(rec.Status), string(rec.Type), rec.EpisodeCount, rec.Studio, string(rec.Season), seasonYear, now,
	); err != nil {
		return "", mapError(err)
	}

	if err := insertOutboxEvent(ctx, tx, map[string]any{
		"anime_id": id.String(),
		"slug":     rec.Slug,
		"title":    rec.Title,
	}); err != nil {
		return "", &PersistenceError{Message: "db outbox", Err: err}
	}
	if err := tx.Commit(ctx); err != nil {
		return "", &PersistenceError{Message: "db commit", Err: err}
	}
	return id.String(), nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO importer_outbox (id, event_type, payload) VALUES ($1,$2,$3)`,
		uuid.New(), EventAnimeCreated, b,
	)
	return err
}

const uniqueViolation = "23505"

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		msg := "duplicate anime"
		switch pgErr.ConstraintName {
		case "anime_slug_key":
			msg = "slug already exists"
		case "anime_title_lower_idx":
			msg = "title already exists"
		}
		return &PersistenceError{Message: msg, Err: errors.Join(ErrDuplicate, err)}
	}
	return &PersistenceError{Message: "db insert", Err: err}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
