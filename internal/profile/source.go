// internal/profile/source.go
package profile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/config"
	"github.com/xkilldash9x/jobfill/internal/store"
)

// Source is the externally owned profile record.
type Source = schemas.ProfileSource

var (
	_ Source = (*FileSource)(nil)
	_ Source = (*PostgresSource)(nil)
)

// Open builds the source selected by cfg. The returned func releases any
// database pool and is safe to call when there is none.
func Open(ctx context.Context, cfg config.Interface, logger *zap.Logger) (Source, func(), error) {
	pc := cfg.Profile()
	switch pc.Source {
	case config.SourcePostgres:
		pool, st, err := connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		src, err := NewPostgresSource(st, PoolDialer(pool), logger)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return src, pool.Close, nil
	case config.SourceFile, "":
		src, err := NewFileSource(pc.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		return src, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown profile source %q", pc.Source)
}

// OpenStore connects to the configured database for commands that write
// the profile.
func OpenStore(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*store.Store, func(), error) {
	pool, st, err := connect(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return st, pool.Close, nil
}

func connect(ctx context.Context, cfg config.Interface, logger *zap.Logger) (*pgxpool.Pool, *store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	st, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pool, st, nil
}
