// Package memory is an in-process backend implementing dbx.Transactor and
// the repository manager contract. It is used with the "memory" DSN and
// by tests.
//
// Transactions take a store-wide lock for their whole duration and restore
// a snapshot of every table when fn fails or panics, so callers observe the
// same all-or-nothing behaviour as with PostgreSQL. Statements outside a
// transaction lock per call. Transactions do not nest.
//
// Everything runs one transaction at a time, including any I/O fn performs
// while the lock is held: registration mails its code inside the transaction,
// so a slow SMTP server stalls every other caller. A transaction waiting for
// the lock gives up when its context is done.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
)

// ErrSQLUnsupported is returned when a memory handle is used as a SQL connection.
var ErrSQLUnsupported = errors.New("memory: SQL statements are not supported")

// Store holds all tables.
type Store struct {
	lock     chan struct{}
	now      func() time.Time
	accounts map[string]models.Account
	pending  map[string]models.PendingRegistration
	codes    map[string]models.OneTimeCode
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for created/updated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		lock:     make(chan struct{}, 1),
		accounts: map[string]models.Account{},
		pending:  map[string]models.PendingRegistration{},
		codes:    map[string]models.OneTimeCode{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// handle is the dbx.DBTX given to memory repositories. It carries no SQL
// connection, only whether the store lock is already held.
type handle struct {
	inTx bool
}

func (h *handle) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrSQLUnsupported
}

func (h *handle) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrSQLUnsupported
}

func (h *handle) QueryRowContext(context.Context, string, ...any) *sql.Row {
	panic(ErrSQLUnsupported)
}

var conn = &handle{}

// Conn returns the non-transactional handle.
func (s *Store) Conn() dbx.DBTX { return conn }

// RunInTx runs fn while holding the store lock. The tables are restored to
// their state before fn if it returns an error or panics.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case s.lock <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.lock }()

	snap := s.snapshot()
	defer func() {
		if p := recover(); p != nil {
			s.restore(snap)
			panic(p)
		}
		if err != nil {
			s.restore(snap)
		}
	}()

	return fn(ctx, &handle{inTx: true})
}

// RunMigrations is a no-op; the memory schema is implicit.
func (s *Store) RunMigrations(context.Context, *sql.DB) error { return nil }

// locked runs fn under the store lock unless db already holds it.
func (s *Store) locked(db dbx.DBTX, fn func() error) error {
	if h, ok := db.(*handle); ok && h.inTx {
		return fn()
	}
	s.lock <- struct{}{}
	defer func() { <-s.lock }()
	return fn()
}

type snapshot struct {
	accounts map[string]models.Account
	pending  map[string]models.PendingRegistration
	codes    map[string]models.OneTimeCode
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		accounts: maps.Clone(s.accounts),
		pending:  maps.Clone(s.pending),
		codes:    maps.Clone(s.codes),
	}
}

func (s *Store) restore(snap snapshot) {
	s.accounts = snap.accounts
	s.pending = snap.pending
	s.codes = snap.codes
}
