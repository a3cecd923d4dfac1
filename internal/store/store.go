// Package store provides the backends that read the stock table.
package store

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/basecamp/stockstatus/internal/stock"
)

// Backend names a store implementation.
type Backend string

const (
	BackendREST     Backend = "rest"
	BackendPostgres Backend = "postgres"
)

// DefaultTable is the table read when none is configured.
const DefaultTable = "stock"

// Store is a stock.Fetcher bound to a concrete backend.
type Store interface {
	stock.Fetcher

	// Describe returns a short label like "rest stock" for traces.
	Describe() FetchInfo

	// Close releases connections held by the backend.
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Backend     Backend
	URL         string // PostgREST / Supabase project URL
	Key         string // API key sent as apikey and bearer token
	Table       string
	DatabaseURL string // postgres connection string
	Timeout     time.Duration
	UserAgent   string
	HTTPClient  *http.Client
}

// ParseBackend validates a backend name. Empty means BackendREST.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendREST:
		return BackendREST, nil
	case BackendPostgres, "postgresql", "pg":
		return BackendPostgres, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want rest or postgres)", s)
	}
}

// New opens the backend described by cfg.
func New(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}

	switch cfg.Backend {
	case "", BackendREST:
		return NewREST(cfg)
	case BackendPostgres:
		return OpenPostgres(ctx, cfg)
	default:
		return nil, ErrConfig(fmt.Sprintf("unknown backend %q", cfg.Backend))
	}
}
