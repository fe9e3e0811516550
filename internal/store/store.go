// internal/store/store.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ProfileChannel is the NOTIFY channel the profile editor signals on.
const ProfileChannel = "jobfill_profile"

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// NotifyConn is a dedicated connection that can wait for notifications.
// *pgx.Conn satisfies it.
type NotifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
}

// Store keeps the profile record in a single key-value row.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const sqlCreateProfiles = `
        CREATE TABLE IF NOT EXISTS profiles (
            key        text PRIMARY KEY,
            data       jsonb NOT NULL,
            updated_at timestamptz NOT NULL DEFAULT now()
        );
    `

const sqlSelectProfile = `SELECT data FROM profiles WHERE key = $1;`

const sqlUpsertProfile = `
        INSERT INTO profiles (key, data, updated_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (key) DO UPDATE SET
            data = EXCLUDED.data,
            updated_at = EXCLUDED.updated_at;
    `

// EnsureSchema creates the profiles table when it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, sqlCreateProfiles); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}
	return nil
}

// LoadProfile reads the record stored under key. A missing row yields
// (nil, nil): no profile has been saved yet.
func (s *Store) LoadProfile(ctx context.Context, key string) (*schemas.Profile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, sqlSelectProfile, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query profile %q: %w", key, err)
	}
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var p schemas.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %q: %w", key, err)
	}
	return &p, nil
}

// SaveProfile upserts the record under key and notifies listeners inside the
// same transaction, so a listener never reloads before the write is visible.
func (s *Store) SaveProfile(ctx context.Context, key string, p *schemas.Profile) error {
	if p == nil {
		return fmt.Errorf("cannot save a nil profile")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlUpsertProfile, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert profile %q: %w", key, err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2);", ProfileChannel, key); err != nil {
		return fmt.Errorf("failed to notify profile change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Profile saved.", zap.String("key", key), zap.Int("bytes", len(data)))
	return nil
}

// Listen subscribes conn to ProfileChannel and forwards each notification
// payload. The channel closes when ctx is done or the connection fails.
func (s *Store) Listen(ctx context.Context, conn NotifyConn) (<-chan string, error) {
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{ProfileChannel}.Sanitize()); err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", ProfileChannel, err)
	}

	out := make(chan string, 1)
	go func() {
		defer close(out)
		for {
			n, err := conn.WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Warn("Profile notification feed stopped.", zap.Error(err))
				}
				return
			}
			select {
			case out <- n.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
