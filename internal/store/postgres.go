package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/orato-ai/orato/internal/analysis"
)

// Schema is the SQL DDL for the transcriptions table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
    id         TEXT PRIMARY KEY,
    text       TEXT NOT NULL,
    duration   DOUBLE PRECISION NOT NULL DEFAULT 0,
    language   TEXT NOT NULL DEFAULT '',
    analysis   JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created ON transcriptions(created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database. The analysis
// result is serialised as JSONB.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a [PostgresStore] over the given connection or
// pool. The caller is responsible for calling [PostgresStore.Migrate] to
// ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, t *Transcription) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	analysisJSON, err := marshalAnalysis(t.Analysis)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO transcriptions (id, text, duration, language, analysis)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		t.ID, t.Text, t.Duration, t.Language, analysisJSON,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store: create: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Transcription, error) {
	const query = `
		SELECT id, text, duration, language, analysis, created_at, updated_at
		FROM transcriptions
		WHERE id = $1`

	var t Transcription
	var analysisJSON []byte
	err := s.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Text, &t.Duration, &t.Language, &analysisJSON, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get %q: %w", id, err)
	}

	if t.Analysis, err = unmarshalAnalysis(analysisJSON); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *PostgresStore) Update(ctx context.Context, t *Transcription) error {
	analysisJSON, err := marshalAnalysis(t.Analysis)
	if err != nil {
		return err
	}

	const query = `
		UPDATE transcriptions SET
			text = $2, duration = $3, language = $4, analysis = $5,
			updated_at = now()
		WHERE id = $1
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		t.ID, t.Text, t.Duration, t.Language, analysisJSON,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("store: update: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM transcriptions WHERE id = $1`
	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("store: delete %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, opts ListOptions) (*Page, error) {
	opts = opts.normalize()

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM transcriptions`).Scan(&total); err != nil {
		return nil, fmt.Errorf("store: list count: %w", err)
	}

	const query = `
		SELECT id, text, duration, language, analysis, created_at, updated_at
		FROM transcriptions
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`

	rows, err := s.db.Query(ctx, query, opts.Limit, (opts.Page-1)*opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	items := make([]Transcription, 0, opts.Limit)
	for rows.Next() {
		var t Transcription
		var analysisJSON []byte
		if err := rows.Scan(
			&t.ID, &t.Text, &t.Duration, &t.Language, &analysisJSON, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("store: list scan: %w", err)
		}
		if t.Analysis, err = unmarshalAnalysis(analysisJSON); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}

	return &Page{
		Items: items,
		Page:  opts.Page,
		Limit: opts.Limit,
		Total: total,
		Pages: pageCount(total, opts.Limit),
	}, nil
}

func marshalAnalysis(a *analysis.Result) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("store: marshal analysis: %w", err)
	}
	return b, nil
}

func unmarshalAnalysis(b []byte) (*analysis.Result, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var a analysis.Result
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("store: unmarshal analysis: %w", err)
	}
	return &a, nil
}
