package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/resolve-cli/internal/db"
	"github.com/sells-group/resolve-cli/internal/model"
)

// PostgresSink implements Sink on pgxpool for shared deployments. Bulk
// writes use COPY; entity upserts go through a temp table.
type PostgresSink struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresSink with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresSink, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresSink{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; tests hand in pgxmock here.
func NewPostgresWithPool(pool db.Pool) *PostgresSink {
	return &PostgresSink{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id            TEXT PRIMARY KEY,
	identifier    TEXT,
	name          TEXT,
	fields        JSONB NOT NULL,
	history       JSONB NOT NULL,
	quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL,
	reconciled_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS provenance (
	id                TEXT PRIMARY KEY,
	entity_id         TEXT NOT NULL,
	field_key         TEXT NOT NULL,
	winner_source     TEXT,
	winner_value      TEXT,
	winner_tier       INTEGER,
	winner_confidence DOUBLE PRECISION,
	previous_value    TEXT,
	previous_source   TEXT,
	value_changed     BOOLEAN NOT NULL DEFAULT FALSE,
	attempts          JSONB NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS review_candidates (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL,
	source_name TEXT NOT NULL,
	record_name TEXT,
	entity_id   TEXT NOT NULL,
	entity_name TEXT,
	similarity  DOUBLE PRECISION NOT NULL,
	strategy    TEXT NOT NULL,
	reason      TEXT,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_identifier ON entities(identifier);
CREATE INDEX IF NOT EXISTS idx_provenance_entity ON provenance(entity_id, field_key);
CREATE INDEX IF NOT EXISTS idx_reviews_entity ON review_candidates(entity_id);
`

func (s *PostgresSink) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

var entityColumns = []string{
	"id", "identifier", "name", "fields", "history",
	"quality_score", "created_at", "reconciled_at",
}

func (s *PostgresSink) SaveEntities(ctx context.Context, entities []*model.CanonicalEntity) error {
	rows := make([][]any, 0, len(entities))
	for _, e := range entities {
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal fields for %s", e.ID)
		}
		history, err := json.Marshal(e.History)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal history for %s", e.ID)
		}
		rows = append(rows, []any{
			e.ID, e.Identifier, e.Name(), string(fields), string(history),
			e.QualityScore, e.CreatedAt.UTC(), nullableTime(e.ReconciledAt),
		})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "entities",
		Columns:      entityColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return err
}

func (s *PostgresSink) SaveProvenance(ctx context.Context, records []model.FieldProvenance) error {
	rows := make([][]any, 0, len(records))
	for _, p := range records {
		attempts, err := json.Marshal(p.Attempts)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal attempts")
		}
		rows = append(rows, []any{
			uuid.NewString(), p.EntityID, p.FieldKey, p.WinnerSource, jsonValue(p.WinnerValue),
			p.WinnerTier, p.WinnerConfidence, jsonValue(p.PreviousValue), p.PreviousSource,
			p.ValueChanged, string(attempts), p.CreatedAt.UTC(),
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "provenance", []string{
		"id", "entity_id", "field_key", "winner_source", "winner_value",
		"winner_tier", "winner_confidence", "previous_value", "previous_source",
		"value_changed", "attempts", "created_at",
	}, rows)
	return err
}

func (s *PostgresSink) SaveReviews(ctx context.Context, candidates []model.ReviewCandidate) error {
	rows := make([][]any, 0, len(candidates))
	for _, r := range candidates {
		rows = append(rows, []any{
			uuid.NewString(), r.RecordID, r.SourceName, r.RecordName,
			r.EntityID, r.EntityName, r.Similarity, string(r.Strategy), r.Reason, r.CreatedAt.UTC(),
		})
	}

	_, err := db.CopyFrom(ctx, s.pool, "review_candidates", []string{
		"id", "record_id", "source_name", "record_name", "entity_id",
		"entity_name", "similarity", "strategy", "reason", "created_at",
	}, rows)
	return err
}

func (s *PostgresSink) ListEntities(ctx context.Context) ([]EntitySummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(identifier, ''), COALESCE(name, ''), quality_score,
			COALESCE(reconciled_at, 'epoch'::timestamptz)
		FROM entities ORDER BY quality_score DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var out []EntitySummary
	for rows.Next() {
		var e EntitySummary
		if err := rows.Scan(&e.ID, &e.Identifier, &e.Name, &e.QualityScore, &e.ReconciledAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list entities")
}

func (s *PostgresSink) ListReviews(ctx context.Context, limit int) ([]model.ReviewCandidate, error) {
	q := `
		SELECT record_id, source_name, COALESCE(record_name, ''), entity_id,
			COALESCE(entity_name, ''), similarity, strategy, COALESCE(reason, ''), created_at
		FROM review_candidates ORDER BY similarity DESC, id`
	args := []any{}
	if limit > 0 {
		q += " LIMIT $1"
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list reviews")
	}
	defer rows.Close()

	var out []model.ReviewCandidate
	for rows.Next() {
		var r model.ReviewCandidate
		var strategy string
		if err := rows.Scan(&r.RecordID, &r.SourceName, &r.RecordName, &r.EntityID,
			&r.EntityName, &r.Similarity, &strategy, &r.Reason, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review")
		}
		r.Strategy = model.MatchStrategy(strategy)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list reviews")
}
