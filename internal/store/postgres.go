package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/basecamp/stockstatus/internal/stock"
)

// rowQuerier is the part of *pgxpool.Pool used by Postgres.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads the stock table directly over a pgx pool.
type Postgres struct {
	pool  *pgxpool.Pool
	db    rowQuerier
	table string
	query string
}

// OpenPostgres builds a pool for cfg.DatabaseURL. Connections are made
// lazily, so an unreachable database surfaces on the first FetchLatest.
func OpenPostgres(ctx context.Context, cfg Config) (*Postgres, error) {
	if cfg.DatabaseURL == "" {
		return nil, &Error{
			Code:    CodeConfig,
			Message: "database URL not configured",
			Hint:    "Set STOCKSTATUS_DATABASE_URL or database_url in config",
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, ErrConfig(fmt.Sprintf("parse connection string: %v", err))
	}
	poolCfg.MinConns = 0
	poolCfg.MaxConns = 2
	if cfg.UserAgent != "" {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.UserAgent
	}
	if cfg.Timeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.Timeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, ErrNetwork(fmt.Errorf("create pool: %w", err))
	}

	p := newPostgres(pool, cfg.Table)
	p.pool = pool
	return p, nil
}

func newPostgres(db rowQuerier, table string) *Postgres {
	if table == "" {
		table = DefaultTable
	}
	return &Postgres{
		db:    db,
		table: table,
		query: selectLatest(table),
	}
}

func selectLatest(table string) string {
	return "SELECT id::text, available::int, updated_at FROM " +
		pgx.Identifier{table}.Sanitize() + " LIMIT 1"
}

// Describe implements Store.
func (p *Postgres) Describe() FetchInfo {
	return FetchInfo{Backend: BackendPostgres, Table: p.table, Target: p.query}
}

// Close implements Store.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// FetchLatest reads at most one row. No rows is not an error.
func (p *Postgres) FetchLatest(ctx context.Context) (*stock.Record, error) {
	var (
		id        *string
		available *int
		updated   *time.Time
	)
	err := p.db.QueryRow(ctx, p.query).Scan(&id, &available, &updated)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		var connErr *pgconn.ConnectError
		if ctx.Err() != nil || errors.As(err, &connErr) {
			return nil, ErrNetwork(err)
		}
		return nil, &Error{Code: CodeStore, Message: err.Error(), Cause: err}
	}

	rec := &stock.Record{}
	if id != nil {
		rec.ID = *id
	}
	if available != nil {
		rec.Available = *available
	}
	if updated != nil {
		rec.UpdatedAt = updated.UTC().Format(time.RFC3339Nano)
	}
	return rec, nil
}
