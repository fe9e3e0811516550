// internal/profile/postgres.go
package profile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
	"github.com/xkilldash9x/jobfill/internal/store"
)

// Dialer hands out a dedicated connection for LISTEN and a func that
// returns it.
type Dialer func(ctx context.Context) (store.NotifyConn, func(), error)

// PoolDialer acquires listener connections from pool.
func PoolDialer(pool *pgxpool.Pool) Dialer {
	return func(ctx context.Context) (store.NotifyConn, func(), error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to acquire listener connection: %w", err)
		}
		return conn.Conn(), conn.Release, nil
	}
}

// PostgresSource reads the profile row kept under schemas.ProfileStorageKey.
type PostgresSource struct {
	store  *store.Store
	dial   Dialer
	key    string
	logger *zap.Logger
}

// NewPostgresSource binds a source to st. dial may be nil, in which case
// Watch fails.
func NewPostgresSource(st *store.Store, dial Dialer, logger *zap.Logger) (*PostgresSource, error) {
	if st == nil {
		return nil, fmt.Errorf("cannot initialize postgres profile source with a nil store")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSource{
		store:  st,
		dial:   dial,
		key:    schemas.ProfileStorageKey,
		logger: logger.Named("profile_pg"),
	}, nil
}

func (s *PostgresSource) Load(ctx context.Context) (*schemas.Profile, error) {
	p, err := s.store.LoadProfile(ctx, s.key)
	if err != nil {
		return nil, err
	}
	Normalize(p)
	return p, nil
}

// Watch emits for every notification naming this source's key.
func (s *PostgresSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	if s.dial == nil {
		return nil, fmt.Errorf("postgres profile source has no listener connection")
	}
	conn, release, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}
	feed, err := s.store.Listen(ctx, conn)
	if err != nil {
		release()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer release()
		for payload := range feed {
			if payload != "" && payload != s.key {
				continue
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out, nil
}
