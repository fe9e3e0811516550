package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/jobfill/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyTime is a matcher that accepts any value (used for timestamps we can't predict exactly)
var anyTime = ArgumentMatcherFunc(func(v interface{}) bool {
	ts, ok := v.(time.Time)
	return ok && ts.Location() == time.UTC
})

// profileNamed matches an encoded profile whose personal name is name.
func profileNamed(name string) ArgumentMatcherFunc {
	return func(v interface{}) bool {
		data, ok := v.([]byte)
		if !ok {
			return false
		}
		var p schemas.Profile
		if err := json.Unmarshal(data, &p); err != nil || p.PersonalInfo == nil {
			return false
		}
		return p.PersonalInfo.Name == name
	}
}

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing().WillReturnError(nil)
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

// -- Test Cases: Construction --

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool(pgxmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr, "Error from ping should be propagated")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t, zap.NewNop())
	mockPool.ExpectExec(flexibleSQLMatcher(sqlCreateProfiles)).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

// -- Test Cases: LoadProfile --

func TestLoadProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("should decode the stored record", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		rows := pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`{"personalInfo":{"name":"홍길동","birthdate":{"year":1995,"month":3,"day":5}}}`))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectProfile)).
			WithArgs(schemas.ProfileStorageKey).
			WillReturnRows(rows)

		p, err := s.LoadProfile(ctx, schemas.ProfileStorageKey)
		require.NoError(t, err)
		require.NotNil(t, p)
		require.NotNil(t, p.PersonalInfo)
		assert.Equal(t, "홍길동", p.PersonalInfo.Name)
		assert.Equal(t, schemas.NewDate(1995, 3, 5), p.PersonalInfo.Birthdate)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should report a missing row as no profile", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectProfile)).
			WithArgs(schemas.ProfileStorageKey).
			WillReturnError(pgx.ErrNoRows)

		p, err := s.LoadProfile(ctx, schemas.ProfileStorageKey)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("should report a JSON null as no profile", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectProfile)).
			WithArgs(schemas.ProfileStorageKey).
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte("null")))

		p, err := s.LoadProfile(ctx, schemas.ProfileStorageKey)
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("should wrap query failures", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		queryErr := errors.New("connection reset")
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectProfile)).
			WithArgs(schemas.ProfileStorageKey).
			WillReturnError(queryErr)

		_, err := s.LoadProfile(ctx, schemas.ProfileStorageKey)
		require.Error(t, err)
		assert.ErrorIs(t, err, queryErr)
	})

	t.Run("should reject a corrupt record", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectProfile)).
			WithArgs(schemas.ProfileStorageKey).
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"personalInfo":`)))

		_, err := s.LoadProfile(ctx, schemas.ProfileStorageKey)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode profile")
	})
}

// -- Test Cases: SaveProfile --

func TestSaveProfile(t *testing.T) {
	ctx := context.Background()
	profile := &schemas.Profile{PersonalInfo: &schemas.PersonalInfo{Name: "홍길동"}}

	t.Run("should upsert and notify without rollback errors", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(observedZapCore))

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertProfile)).
			WithArgs(schemas.ProfileStorageKey, profileNamed("홍길동"), anyTime).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectExec(regexp.QuoteMeta("SELECT pg_notify($1, $2);")).
			WithArgs(ProfileChannel, schemas.ProfileStorageKey).
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		// Expect Commit AND the subsequent Rollback (which returns ErrTxClosed)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveProfile(ctx, schemas.ProfileStorageKey, profile))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, observedLogs.All(), "Expected no errors logged on successful commit")
	})

	t.Run("should roll back when the upsert fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		execErr := errors.New("disk full")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpsertProfile)).
			WithArgs(schemas.ProfileStorageKey, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(execErr)
		mockPool.ExpectRollback()

		err := s.SaveProfile(ctx, schemas.ProfileStorageKey, profile)
		require.Error(t, err)
		assert.ErrorIs(t, err, execErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should refuse a nil profile", func(t *testing.T) {
		s, mockPool := newMockStore(t, zap.NewNop())
		require.Error(t, s.SaveProfile(ctx, schemas.ProfileStorageKey, nil))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

// -- Test Cases: Listen --

type fakeNotifyConn struct {
	mu      sync.Mutex
	execs   []string
	execErr error
	notes   chan *pgconn.Notification
}

func (f *fakeNotifyConn) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, sql)
	return pgconn.NewCommandTag("LISTEN"), f.execErr
}

func (f *fakeNotifyConn) WaitForNotification(ctx context.Context) (*pgconn.Notification, error) {
	select {
	case n, ok := <-f.notes:
		if !ok {
			return nil, errors.New("conn closed")
		}
		return n, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestListen(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("should forward payloads until cancelled", func(t *testing.T) {
		s, _ := newMockStore(t, zap.NewNop())
		conn := &fakeNotifyConn{notes: make(chan *pgconn.Notification, 2)}
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		feed, err := s.Listen(ctx, conn)
		require.NoError(t, err)
		assert.Equal(t, []string{`LISTEN "jobfill_profile"`}, conn.execs)

		conn.notes <- &pgconn.Notification{Channel: ProfileChannel, Payload: schemas.ProfileStorageKey}
		select {
		case got := <-feed:
			assert.Equal(t, schemas.ProfileStorageKey, got)
		case <-time.After(time.Second):
			t.Fatal("notification was not forwarded")
		}

		cancel()
		for range feed {
		}
	})

	t.Run("should close the feed when the connection drops", func(t *testing.T) {
		observedZapCore, observedLogs := observer.New(zapcore.WarnLevel)
		s, _ := newMockStore(t, zap.New(observedZapCore))
		conn := &fakeNotifyConn{notes: make(chan *pgconn.Notification)}

		feed, err := s.Listen(context.Background(), conn)
		require.NoError(t, err)
		close(conn.notes)

		for range feed {
		}
		assert.Equal(t, 1, observedLogs.FilterMessage("Profile notification feed stopped.").Len())
	})

	t.Run("should fail when LISTEN is refused", func(t *testing.T) {
		s, _ := newMockStore(t, zap.NewNop())
		conn := &fakeNotifyConn{execErr: errors.New("permission denied")}

		_, err := s.Listen(context.Background(), conn)
		require.Error(t, err)
		assert.Contains(t, err.Error(), ProfileChannel)
	})
}
