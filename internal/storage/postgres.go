package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"custos/internal/infrastructure"
	"custos/pkg/contracts/domain"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS analyses (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	file_name   TEXT NOT NULL DEFAULT '',
	columns     JSONB NOT NULL,
	uploaded_at TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS analyses_uploaded_at_idx ON analyses (uploaded_at DESC);

CREATE TABLE IF NOT EXISTS expense_rows (
	analysis_id TEXT NOT NULL REFERENCES analyses (id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	row_id      TEXT NOT NULL,
	account     TEXT NOT NULL,
	amounts     JSONB NOT NULL,
	row_total   DOUBLE PRECISION NOT NULL,
	source_row  INTEGER NOT NULL,
	PRIMARY KEY (analysis_id, position)
);
`

const uniqueViolation = "23505"

var rowColumns = []string{"analysis_id", "position", "row_id", "account", "amounts", "row_total", "source_row"}

// PostgresConfig configures the connection pool
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

// PostgresStore keeps analyses in PostgreSQL. Schema and rows of an analysis
// are written in one transaction.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects, verifies the connection and creates missing tables
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	store := &PostgresStore{
		pool:   pool,
		logger: infrastructure.WithComponent(logger, "postgres_store"),
	}
	if err := store.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the tables if they do not exist
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Create inserts an analysis with all of its rows
func (s *PostgresStore) Create(ctx context.Context, a *domain.Analysis) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO analyses (id, name, file_name, columns, uploaded_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			a.ID, a.Name, a.FileName, schemaOf(a), a.UploadedAt, a.UpdatedAt)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("analysis %s: %w", a.ID, ErrAlreadyExists)
		}
		if err != nil {
			return fmt.Errorf("failed to insert analysis: %w", err)
		}
		return s.copyRows(ctx, tx, a)
	})
}

// Get loads an analysis and its rows in dataset order
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Analysis, error) {
	a := &domain.Analysis{Dataset: &domain.Dataset{}}
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, file_name, columns, uploaded_at, updated_at
		FROM analyses WHERE id = $1`, id).
		Scan(&a.ID, &a.Name, &a.FileName, &a.Dataset.Schema, &a.UploadedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT row_id, account, amounts, row_total, source_row
		FROM expense_rows WHERE analysis_id = $1 ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load rows: %w", err)
	}
	a.Dataset.Rows, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ExpenseRow, error) {
		var r domain.ExpenseRow
		err := row.Scan(&r.RowID, &r.Account, &r.Values, &r.RowTotal, &r.SourceRow)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rows: %w", err)
	}
	return a, nil
}

// List returns summaries newest first
func (s *PostgresStore) List(ctx context.Context, limit int) ([]domain.AnalysisSummary, error) {
	query := `
		SELECT a.id, a.name, a.file_name, a.uploaded_at, a.updated_at,
		       (SELECT count(*) FROM expense_rows r WHERE r.analysis_id = a.id),
		       (SELECT count(*) FROM jsonb_array_elements(a.columns->'columns') c WHERE c->>'kind' = 'data')
		FROM analyses a
		ORDER BY a.uploaded_at DESC, a.id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AnalysisSummary, error) {
		var sum domain.AnalysisSummary
		err := row.Scan(&sum.ID, &sum.Name, &sum.FileName, &sum.UploadedAt, &sum.UpdatedAt, &sum.RowCount, &sum.ColumnCount)
		return sum, err
	})
}

// Update stores the name and replaces the dataset of an existing analysis
func (s *PostgresStore) Update(ctx context.Context, a *domain.Analysis) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE analyses SET name = $2, columns = $3, updated_at = $4 WHERE id = $1`,
			a.ID, a.Name, schemaOf(a), a.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update analysis: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("analysis %s: %w", a.ID, ErrNotFound)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM expense_rows WHERE analysis_id = $1`, a.ID); err != nil {
			return fmt.Errorf("failed to clear rows: %w", err)
		}
		return s.copyRows(ctx, tx, a)
	})
}

// Delete removes an analysis; its rows follow through the foreign key
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	return nil
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}
	return nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) copyRows(ctx context.Context, tx pgx.Tx, a *domain.Analysis) error {
	if a.Dataset == nil || len(a.Dataset.Rows) == 0 {
		return nil
	}

	copyRows := make([][]any, len(a.Dataset.Rows))
	for i, r := range a.Dataset.Rows {
		copyRows[i] = []any{a.ID, i, r.RowID, r.Account, r.Values, r.RowTotal, r.SourceRow}
	}
	n, err := tx.CopyFrom(ctx, pgx.Identifier{"expense_rows"}, rowColumns, pgx.CopyFromRows(copyRows))
	if err != nil {
		return fmt.Errorf("failed to copy rows: %w", err)
	}

	s.logger.Debug("Rows stored",
		slog.String("analysis_id", a.ID),
		slog.Int64("rows", n))
	return nil
}

func schemaOf(a *domain.Analysis) domain.Schema {
	if a.Dataset == nil {
		return domain.Schema{Columns: []domain.Column{}}
	}
	return a.Dataset.Schema
}
