package services

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []sentMail
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func (m *fakeMailer) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "no mail sent")
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

var (
	codePattern  = regexp.MustCompile(`verification code is: (\S+)`)
	resetPattern = regexp.MustCompile(`/password/reset/([0-9a-f]+)`)
)

func (m *fakeMailer) lastCode(t *testing.T) string {
	t.Helper()
	match := codePattern.FindStringSubmatch(m.last(t).body)
	require.Len(t, match, 2, "no code in mail")
	return match[1]
}

func (m *fakeMailer) lastResetToken(t *testing.T) string {
	t.Helper()
	match := resetPattern.FindStringSubmatch(m.last(t).body)
	require.Len(t, match, 2, "no reset link in mail")
	return match[1]
}

type fixture struct {
	cfg     *config.Config
	clock   *testClock
	store   *memory.Store
	mail    *fakeMailer
	avatars *fakeAvatars
	otp     *OTPEngine
	creds   *CredentialManager
	reg     *RegistrationService
	profile *ProfileService
	issuer  *auth.Issuer
	auth    *AuthService
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost
	cfg.FrontendURL = "https://shop.example"
	for _, m := range mutate {
		m(cfg)
	}

	clock := &testClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	store := memory.NewStore(memory.WithClock(clock.Now))
	mail := &fakeMailer{}
	avatars := &fakeAvatars{}
	logger := logging.NewDiscardLogger()

	otp := NewOTPEngine(store, cfg)
	otp.now = clock.Now

	creds, err := NewCredentialManager(store, store, mail, cfg, logger)
	require.NoError(t, err)
	creds.now = clock.Now

	reg, err := NewRegistrationService(store, store, otp, creds, mail, cfg, logger)
	require.NoError(t, err)
	reg.now = clock.Now

	issuer := auth.NewIssuer([]byte(cfg.SecretKey), cfg.SessionTokenValidityDuration,
		auth.NewMemoryDenylist(clock.Now), auth.WithClock(clock.Now))

	return &fixture{
		cfg:     cfg,
		clock:   clock,
		store:   store,
		mail:    mail,
		avatars: avatars,
		otp:     otp,
		creds:   creds,
		reg:     reg,
		profile: NewProfileService(store, store, avatars, logger),
		issuer:  issuer,
		auth:    NewAuthService(reg, creds, issuer, logger),
	}
}

func registration(username, email, password string) RegistrationRequest {
	return RegistrationRequest{
		Username:          username,
		Email:             email,
		ConfirmationEmail: email,
		Password:          password,
		ConfirmPassword:   password,
	}
}

// signUp registers and confirms an account.
func (f *fixture) signUp(t *testing.T, username, email, password string) *models.Account {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.reg.BeginRegistration(ctx, registration(username, email, password)))
	acc, err := f.reg.VerifyRegistration(ctx, email, f.mail.lastCode(t))
	require.NoError(t, err)
	return acc
}

func (f *fixture) pendingCount(t *testing.T, email string) int {
	t.Helper()
	_, err := f.store.Pending(f.store.Conn()).GetByEmail(context.Background(), email)
	if err != nil {
		return 0
	}
	return 1
}

func (f *fixture) liveCode(t *testing.T, email string) bool {
	t.Helper()
	_, err := f.store.OneTimeCodes(f.store.Conn()).FindLive(context.Background(), email, f.clock.Now())
	return err == nil
}

type fakeAvatars struct {
	mu        sync.Mutex
	uploadErr error
	deleteErr error
	n         int
	deleted   []string
}

func (a *fakeAvatars) Upload(ctx context.Context, blob []byte, contentType string) (models.Avatar, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.uploadErr != nil {
		return models.Avatar{}, a.uploadErr
	}
	a.n++
	id := "avatars/" + string(rune('a'+a.n-1)) + ".png"
	return models.Avatar{PublicID: id, URL: "http://s3/" + id}, nil
}

func (a *fakeAvatars) Delete(ctx context.Context, publicID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, publicID)
	return a.deleteErr
}
