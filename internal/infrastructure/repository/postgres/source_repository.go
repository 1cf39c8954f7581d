package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/chatbot-rag/internal/core/domain"
)

type SourceRepository struct {
	db *sql.DB
}

func NewSourceRepository(db *sql.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SourceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sources (
	id TEXT PRIMARY KEY,
	source_type TEXT NOT NULL,
	origin TEXT NOT NULL,
	namespace TEXT NOT NULL DEFAULT '',
	extra JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	message TEXT,
	chunks_processed INTEGER NOT NULL DEFAULT 0,
	vectors_uploaded INTEGER NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sources_status ON sources(status);
CREATE INDEX IF NOT EXISTS idx_sources_namespace ON sources(namespace);
CREATE INDEX IF NOT EXISTS idx_sources_created_at ON sources(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SourceRepository) Create(ctx context.Context, src *domain.Source) error {
	extraJSON, err := json.Marshal(src.Extra)
	if err != nil {
		return fmt.Errorf("marshal extra: %w", err)
	}

	// Re-registering an existing id restarts its ingestion lifecycle.
	_, err = r.db.ExecContext(ctx, `
INSERT INTO sources (
	id, source_type, origin, namespace, extra, status, message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (id) DO UPDATE SET
	source_type = EXCLUDED.source_type,
	origin = EXCLUDED.origin,
	namespace = EXCLUDED.namespace,
	extra = EXCLUDED.extra,
	status = EXCLUDED.status,
	message = EXCLUDED.message,
	updated_at = EXCLUDED.updated_at
`,
		src.ID, string(src.Type), src.Origin, src.Namespace, extraJSON,
		string(src.Status), src.Message, src.CreatedAt, src.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, source_type, origin, namespace, extra, status, message, created_at, updated_at
FROM sources
WHERE id = $1
`, id)

	var src domain.Source
	var extraRaw []byte
	var srcType, status string
	var message sql.NullString

	err := row.Scan(
		&src.ID, &srcType, &src.Origin, &src.Namespace, &extraRaw,
		&status, &message, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "postgres.GetByID", fmt.Errorf("source %s", id))
		}
		return nil, fmt.Errorf("scan source: %w", err)
	}

	if len(extraRaw) > 0 {
		if err := json.Unmarshal(extraRaw, &src.Extra); err != nil {
			return nil, fmt.Errorf("unmarshal extra: %w", err)
		}
	}
	src.Type = domain.SourceType(srcType)
	src.Status = domain.SourceStatus(status)
	src.Message = message.String
	return &src, nil
}

func (r *SourceRepository) UpdateStatus(ctx context.Context, id string, status domain.SourceStatus, message string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sources
SET status = $2, message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), message, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update source status: %w", err)
	}
	return requireRow(res, "postgres.UpdateStatus", id)
}

func (r *SourceRepository) SaveReport(ctx context.Context, report domain.IngestReport) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sources
SET status = $2, message = $3, chunks_processed = $4, vectors_uploaded = $5, duration_seconds = $6, updated_at = $7
WHERE id = $1
`,
		report.SourceID, string(report.SourceStatus()), report.Message,
		report.ChunksProcessed, report.VectorsUploaded, report.DurationSeconds(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save ingest report: %w", err)
	}
	return requireRow(res, "postgres.SaveReport", report.SourceID)
}

func requireRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("source %s", id))
	}
	return nil
}
