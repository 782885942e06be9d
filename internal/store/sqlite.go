package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/resolve-cli/internal/model"
)

// SQLiteSink implements Sink using modernc.org/sqlite. The default sink for
// local batch runs.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteSink{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entities (
	id            TEXT PRIMARY KEY,
	identifier    TEXT,
	name          TEXT,
	fields        TEXT NOT NULL,
	history       TEXT NOT NULL,
	quality_score REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL,
	reconciled_at DATETIME
);

CREATE TABLE IF NOT EXISTS provenance (
	id                TEXT PRIMARY KEY,
	entity_id         TEXT NOT NULL REFERENCES entities(id),
	field_key         TEXT NOT NULL,
	winner_source     TEXT,
	winner_value      TEXT,
	winner_tier       INTEGER,
	winner_confidence REAL,
	previous_value    TEXT,
	previous_source   TEXT,
	value_changed     INTEGER NOT NULL DEFAULT 0,
	attempts          TEXT NOT NULL,
	created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS review_candidates (
	id          TEXT PRIMARY KEY,
	record_id   TEXT NOT NULL,
	source_name TEXT NOT NULL,
	record_name TEXT,
	entity_id   TEXT NOT NULL,
	entity_name TEXT,
	similarity  REAL NOT NULL,
	strategy    TEXT NOT NULL,
	reason      TEXT,
	created_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_identifier ON entities(identifier);
CREATE INDEX IF NOT EXISTS idx_provenance_entity ON provenance(entity_id, field_key);
CREATE INDEX IF NOT EXISTS idx_reviews_entity ON review_candidates(entity_id);
`

func (s *SQLiteSink) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

func (s *SQLiteSink) SaveEntities(ctx context.Context, entities []*model.CanonicalEntity) error {
	for _, e := range entities {
		fields, err := json.Marshal(e.Fields)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal fields for %s", e.ID)
		}
		history, err := json.Marshal(e.History)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal history for %s", e.ID)
		}

		_, err = s.db.ExecContext(ctx, `
			INSERT INTO entities (id, identifier, name, fields, history, quality_score, created_at, reconciled_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				identifier = excluded.identifier,
				name = excluded.name,
				fields = excluded.fields,
				history = excluded.history,
				quality_score = excluded.quality_score,
				reconciled_at = excluded.reconciled_at`,
			e.ID, e.Identifier, e.Name(), string(fields), string(history),
			e.QualityScore, e.CreatedAt.UTC(), nullableTime(e.ReconciledAt),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert entity %s", e.ID)
		}
	}
	return nil
}

func (s *SQLiteSink) SaveProvenance(ctx context.Context, records []model.FieldProvenance) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin provenance tx")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO provenance (id, entity_id, field_key, winner_source, winner_value,
			winner_tier, winner_confidence, previous_value, previous_source,
			value_changed, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare provenance insert")
	}
	defer stmt.Close()

	for _, p := range records {
		attempts, err := json.Marshal(p.Attempts)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal attempts")
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.NewString(), p.EntityID, p.FieldKey, p.WinnerSource, jsonValue(p.WinnerValue),
			p.WinnerTier, p.WinnerConfidence, jsonValue(p.PreviousValue), p.PreviousSource,
			p.ValueChanged, string(attempts), p.CreatedAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert provenance for %s.%s", p.EntityID, p.FieldKey)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit provenance")
}

func (s *SQLiteSink) SaveReviews(ctx context.Context, candidates []model.ReviewCandidate) error {
	for _, r := range candidates {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO review_candidates (id, record_id, source_name, record_name,
				entity_id, entity_name, similarity, strategy, reason, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), r.RecordID, r.SourceName, r.RecordName,
			r.EntityID, r.EntityName, r.Similarity, string(r.Strategy), r.Reason, r.CreatedAt.UTC(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert review candidate for %s", r.EntityID)
		}
	}
	return nil
}

func (s *SQLiteSink) ListEntities(ctx context.Context) ([]EntitySummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(identifier, ''), COALESCE(name, ''), quality_score, reconciled_at
		FROM entities ORDER BY quality_score DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var out []EntitySummary
	for rows.Next() {
		var e EntitySummary
		var reconciled sql.NullTime
		if err := rows.Scan(&e.ID, &e.Identifier, &e.Name, &e.QualityScore, &reconciled); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		if reconciled.Valid {
			e.ReconciledAt = reconciled.Time
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list entities")
}

func (s *SQLiteSink) ListReviews(ctx context.Context, limit int) ([]model.ReviewCandidate, error) {
	q := `
		SELECT record_id, source_name, COALESCE(record_name, ''), entity_id,
			COALESCE(entity_name, ''), similarity, strategy, COALESCE(reason, ''), created_at
		FROM review_candidates ORDER BY similarity DESC, id`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list reviews")
	}
	defer rows.Close()

	var out []model.ReviewCandidate
	for rows.Next() {
		var r model.ReviewCandidate
		var strategy string
		if err := rows.Scan(&r.RecordID, &r.SourceName, &r.RecordName, &r.EntityID,
			&r.EntityName, &r.Similarity, &strategy, &r.Reason, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review")
		}
		r.Strategy = model.MatchStrategy(strategy)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list reviews")
}

// jsonValue serializes arbitrary field values for storage in a TEXT column.
func jsonValue(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(b)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
