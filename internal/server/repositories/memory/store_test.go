package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/dbx"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ repomanager.RepositoryManager = (*Store)(nil)
	_ dbx.Transactor                = (*Store)(nil)
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newStore() *Store {
	return NewStore(WithClock(func() time.Time { return t0 }))
}

func TestRunInTx_CommitAndRollback(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	err := s.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.Accounts(tx).Create(ctx, &models.Account{Username: "alice", Email: "alice@example.com"})
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		_, err := s.Accounts(tx).Create(ctx, &models.Account{Username: "bob", Email: "bob@example.com"})
		require.NoError(t, err)
		_, err = s.Pending(tx).Create(ctx, &models.PendingRegistration{Email: "carol@example.com"})
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	list, err := s.Accounts(s.Conn()).List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].Username)

	_, err = s.Pending(s.Conn()).GetByEmail(ctx, "carol@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestRunInTx_PanicRestoresAndRethrows(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	require.Panics(t, func() {
		_ = s.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
			_, _ = s.OneTimeCodes(tx).Create(ctx, &models.OneTimeCode{Email: "a@example.com", ExpiresAt: t0.Add(time.Minute)})
			panic("kaboom")
		})
	})

	_, err := s.OneTimeCodes(s.Conn()).FindLive(ctx, "a@example.com", t0)
	require.ErrorIs(t, err, common.ErrorNotFound)

	// lock was released
	_, err = s.Accounts(s.Conn()).List(ctx)
	require.NoError(t, err)
}

func TestRunInTx_CanceledContext(t *testing.T) {
	s := newStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.RunInTx(ctx, func(context.Context, dbx.DBTX) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRunInTx_WaitingTxGivesUpOnContext(t *testing.T) {
	s := newStore()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.RunInTx(context.Background(), func(context.Context, dbx.DBTX) error {
			close(entered)
			<-release // a slow mail send, for example
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	called := false
	err := s.RunInTx(ctx, func(context.Context, dbx.DBTX) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)

	close(release)
	require.NoError(t, <-done)

	// the lock is free again
	require.NoError(t, s.RunInTx(context.Background(), func(context.Context, dbx.DBTX) error { return nil }))
}

func TestHandle_SQLUnsupported(t *testing.T) {
	s := newStore()
	_, err := s.Conn().ExecContext(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, ErrSQLUnsupported)
	_, err = s.Conn().QueryContext(context.Background(), "SELECT 1")
	require.ErrorIs(t, err, ErrSQLUnsupported)
	require.Panics(t, func() { s.Conn().QueryRowContext(context.Background(), "SELECT 1") })
	require.NoError(t, s.RunMigrations(context.Background(), nil))
}

func TestAccounts_Uniqueness(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	repo := s.Accounts(s.Conn())

	alice, err := repo.Create(ctx, &models.Account{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)
	assert.Equal(t, t0, alice.CreatedAt)

	_, err = repo.Create(ctx, &models.Account{Username: "alice", Email: "other@example.com"})
	require.ErrorIs(t, err, common.ErrorConflict)
	_, err = repo.Create(ctx, &models.Account{Username: "other", Email: "alice@example.com"})
	require.ErrorIs(t, err, common.ErrorConflict)

	bob, err := repo.Create(ctx, &models.Account{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)

	_, err = repo.UpdateProfile(ctx, bob.ID, "alice", "bob@example.com")
	require.ErrorIs(t, err, common.ErrorConflict)

	updated, err := repo.UpdateProfile(ctx, bob.ID, "bobby", "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bobby", updated.Username)

	_, err = repo.UpdateProfile(ctx, "missing", "x", "y")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAccounts_Mutations(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	repo := s.Accounts(s.Conn())

	a, err := repo.Create(ctx, &models.Account{Username: "alice", Email: "alice@example.com", Role: "user"})
	require.NoError(t, err)

	got, err := repo.UpdateRole(ctx, a.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", got.Role)

	require.NoError(t, repo.UpdateAvatar(ctx, a.ID, models.Avatar{PublicID: "p", URL: "u"}))
	require.NoError(t, repo.UpdatePassword(ctx, a.ID, "h2"))

	got, err = repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", got.PasswordHash)
	assert.Equal(t, "p", got.Avatar.PublicID)

	require.NoError(t, repo.Delete(ctx, a.ID))
	require.ErrorIs(t, repo.Delete(ctx, a.ID), common.ErrorNotFound)
	require.ErrorIs(t, repo.UpdatePassword(ctx, a.ID, "h3"), common.ErrorNotFound)
}

func TestAccounts_ResetToken(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	repo := s.Accounts(s.Conn())

	a, err := repo.Create(ctx, &models.Account{Username: "alice", Email: "alice@example.com", PasswordHash: "old"})
	require.NoError(t, err)

	require.NoError(t, repo.SetResetToken(ctx, a.ID, "digest", t0.Add(30*time.Minute)))

	_, err = repo.ConsumeResetToken(ctx, "digest", t0.Add(30*time.Minute), "new")
	require.ErrorIs(t, err, common.ErrorNotFound, "expiry is exclusive")
	_, err = repo.ConsumeResetToken(ctx, "other", t0, "new")
	require.ErrorIs(t, err, common.ErrorNotFound)

	got, err := repo.ConsumeResetToken(ctx, "digest", t0, "new")
	require.NoError(t, err)
	assert.Equal(t, "new", got.PasswordHash)
	assert.Nil(t, got.ResetPasswordTokenHash)
	assert.Nil(t, got.ResetPasswordExpire)

	_, err = repo.ConsumeResetToken(ctx, "digest", t0, "newer")
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, repo.SetResetToken(ctx, a.ID, "d2", t0.Add(time.Hour)))
	require.NoError(t, repo.ClearResetToken(ctx, a.ID))
	got, err = repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, got.ResetPasswordTokenHash)
	assert.Nil(t, got.ResetPasswordExpire)
}

func TestCodes_ConsumeClearsPendingReference(t *testing.T) {
	s := newStore()
	ctx := context.Background()
	codes := s.OneTimeCodes(s.Conn())
	pend := s.Pending(s.Conn())

	c, err := codes.Create(ctx, &models.OneTimeCode{Email: "alice@example.com", CodeHash: "h", ExpiresAt: t0.Add(time.Minute)})
	require.NoError(t, err)
	_, err = pend.Create(ctx, &models.PendingRegistration{Email: "alice@example.com", OTPID: &c.ID})
	require.NoError(t, err)

	_, err = pend.Create(ctx, &models.PendingRegistration{Email: "alice@example.com"})
	require.ErrorIs(t, err, common.ErrorConflict)

	live, err := codes.FindLive(ctx, "alice@example.com", t0)
	require.NoError(t, err)
	assert.Equal(t, c.ID, live.ID)

	consumed, err := codes.Consume(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "h", consumed.CodeHash)

	_, err = codes.Consume(ctx, "alice@example.com")
	require.ErrorIs(t, err, common.ErrorNotFound)

	p, err := pend.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Nil(t, p.OTPID)
}

func TestSweeps(t *testing.T) {
	now := t0
	s := NewStore(WithClock(func() time.Time { return now }))
	ctx := context.Background()
	codes := s.OneTimeCodes(s.Conn())
	pend := s.Pending(s.Conn())

	_, _ = codes.Create(ctx, &models.OneTimeCode{Email: "old@example.com", ExpiresAt: t0.Add(time.Minute)})
	_, _ = pend.Create(ctx, &models.PendingRegistration{Email: "old@example.com"})

	now = t0.Add(2 * time.Hour)
	_, _ = codes.Create(ctx, &models.OneTimeCode{Email: "new@example.com", ExpiresAt: now.Add(time.Minute)})
	_, _ = pend.Create(ctx, &models.PendingRegistration{Email: "new@example.com"})

	n, err := codes.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = pend.DeleteCreatedBefore(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = pend.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)

	n, err = codes.DeleteByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := pend.DeleteByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestConcurrentCreate_SingleWinner(t *testing.T) {
	s := newStore()
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.RunInTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
				_, err := s.Accounts(tx).Create(ctx, &models.Account{Username: "alice", Email: "alice@example.com"})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, common.ErrorConflict)
	}
	assert.Equal(t, 1, ok)
}
