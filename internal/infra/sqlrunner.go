package infra

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is the contract the warehouse writer and hydration tool depend
// on for executing SQL. Tests provide fakes; production uses SQLRunner.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// SQLRunner executes SQL against a pgx pool with statement-level logging.
// Statements may carry a leading "-- name" comment used as the log tag.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger zerolog.Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: logger}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	name := statementName(query)
	tag, err := r.Pool.Exec(ctx, query, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] exec error", name)
		return tag, err
	}
	r.Logger.Debug().Msgf("sql[%s] exec ok", name)
	return tag, nil
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	name := statementName(query)
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		r.Logger.Error().Err(err).Msgf("sql[%s] query error", name)
		return nil, err
	}
	return rows, nil
}

func statementName(query string) string {
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(trimmed, "-- ") {
		if idx := strings.IndexByte(trimmed, '\n'); idx > 3 {
			return strings.TrimSpace(trimmed[3:idx])
		}
	}
	if idx := strings.IndexAny(trimmed, " \n"); idx > 0 {
		return strings.ToLower(trimmed[:idx])
	}
	return "sql"
}

var _ SQLExecutor = (*SQLRunner)(nil)
