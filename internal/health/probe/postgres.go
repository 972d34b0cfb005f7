package probe

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres probes the backing database with a pool ping
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a database probe. The pool connects lazily, so a
// down database surfaces in Probe, not here.
func NewPostgres(databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// A probe needs a single connection, not a working pool
	cfg.MaxConns = 1

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create probe pool: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Probe(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close releases the probe's connection
func (p *Postgres) Close() {
	p.pool.Close()
}
