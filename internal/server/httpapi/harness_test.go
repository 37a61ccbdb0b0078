package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/dmitrijs2005/credkeeper/internal/server/auth"
	"github.com/dmitrijs2005/credkeeper/internal/server/config"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/memory"
	"github.com/dmitrijs2005/credkeeper/internal/server/services"
	"github.com/dmitrijs2005/credkeeper/internal/server/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type captureMailer struct {
	mu   sync.Mutex
	err  error
	body string
}

func (m *captureMailer) Send(_ context.Context, _, _, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.body = body
	return nil
}

var (
	codeRe  = regexp.MustCompile(`verification code is: (\S+)`)
	resetRe = regexp.MustCompile(`/password/reset/([0-9a-f]+)`)
)

func (m *captureMailer) match(t *testing.T, re *regexp.Regexp) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	got := re.FindStringSubmatch(m.body)
	require.Len(t, got, 2, "mail body %q", m.body)
	return got[1]
}

type harness struct {
	store  *memory.Store
	mail   *captureMailer
	server *Server
}

type harnessOption func(*harnessDeps)

type harnessDeps struct {
	denylist auth.Denylist
}

func withDenylist(d auth.Denylist) harnessOption {
	return func(hd *harnessDeps) { hd.denylist = d }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	deps := harnessDeps{denylist: auth.NewMemoryDenylist(nil)}
	for _, opt := range opts {
		opt(&deps)
	}

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.BcryptCost = bcrypt.MinCost

	store := memory.NewStore()
	mail := &captureMailer{}
	logger := logging.NewDiscardLogger()

	creds, err := services.NewCredentialManager(store, store, mail, cfg, logger)
	require.NoError(t, err)
	reg, err := services.NewRegistrationService(store, store, services.NewOTPEngine(store, cfg), creds, mail, cfg, logger)
	require.NoError(t, err)
	issuer := auth.NewIssuer([]byte(cfg.SecretKey), cfg.SessionTokenValidityDuration, deps.denylist)

	srv := NewServer("127.0.0.1:0", logger,
		services.NewAuthService(reg, creds, issuer, logger),
		services.NewProfileService(store, store, storage.Disabled{}, logger))

	return &harness{store: store, mail: mail, server: srv}
}

type request struct {
	method, path string
	body         any
	token        string
	cookie       *http.Cookie
}

func (h *harness) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := r.body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(r.method, r.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if r.token != "" {
		req.Header.Set(common.AuthorizationHeaderName, "Bearer "+r.token)
	}
	if r.cookie != nil {
		req.AddCookie(r.cookie)
	}

	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func registerBody(username, email, password string) map[string]string {
	return map[string]string{
		"username":           username,
		"email":              email,
		"confirmation_email": email,
		"password":           password,
		"confirm_password":   password,
	}
}

// signUp runs register and verify-otp and returns the session token.
func (h *harness) signUp(t *testing.T, username, email, password string) sessionResponse {
	t.Helper()

	rec := h.do(t, request{method: http.MethodPost, path: "/api/v1/register", body: registerBody(username, email, password)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.do(t, request{method: http.MethodPost, path: "/api/v1/verify-otp", body: map[string]string{
		"email": email,
		"otp":   h.mail.match(t, codeRe),
	}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[sessionResponse](t, rec)
}

func (h *harness) makeAdmin(t *testing.T, id string) {
	t.Helper()
	_, err := h.store.Accounts(h.store.Conn()).UpdateRole(context.Background(), id, common.RoleAdmin)
	require.NoError(t, err)
}
