package mailer

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type fakeSender struct {
	err   error
	block chan struct{}
	got   []*gomail.Message
}

func (f *fakeSender) DialAndSend(m ...*gomail.Message) error {
	if f.block != nil {
		<-f.block
	}
	f.got = append(f.got, m...)
	return f.err
}

func TestSMTPMailer_Send(t *testing.T) {
	fs := &fakeSender{}
	m := &SMTPMailer{dialer: fs, from: "no-reply@example.com"}

	require.NoError(t, m.Send(context.Background(), "alice@example.com", "Hello", "body"))
	require.Len(t, fs.got, 1)

	msg := fs.got[0]
	assert.Equal(t, []string{"no-reply@example.com"}, msg.GetHeader("From"))
	assert.Equal(t, []string{"alice@example.com"}, msg.GetHeader("To"))
	assert.Equal(t, []string{"Hello"}, msg.GetHeader("Subject"))
}

func TestSMTPMailer_SendError(t *testing.T) {
	fs := &fakeSender{err: errors.New("relay down")}
	m := &SMTPMailer{dialer: fs, from: "no-reply@example.com"}

	err := m.Send(context.Background(), "alice@example.com", "Hello", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
}

func TestSMTPMailer_ContextCanceled(t *testing.T) {
	fs := &fakeSender{block: make(chan struct{})}
	defer close(fs.block)
	m := &SMTPMailer{dialer: fs, from: "no-reply@example.com"}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := m.Send(ctx, "alice@example.com", "Hello", "body")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSMTPMailer(t *testing.T) {
	m := NewSMTPMailer("smtp.example.com", 587, "user", "pass", "from@example.com")
	d, ok := m.dialer.(*gomail.Dialer)
	require.True(t, ok)
	assert.Equal(t, "smtp.example.com", d.Host)
	assert.Equal(t, 587, d.Port)
}

func TestLogMailer_NeverLogsBody(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMailer(logging.NewJSONLogger(&buf, "debug"))

	require.NoError(t, m.Send(context.Background(), "alice@example.com", "Verification Email", "code 482913"))

	out := buf.String()
	assert.Contains(t, out, "alice@example.com")
	assert.Contains(t, out, "Verification Email")
	assert.NotContains(t, out, "482913")
}

func TestLogMailer_CanceledContext(t *testing.T) {
	m := NewLogMailer(logging.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, m.Send(ctx, "a@example.com", "s", "b"), context.Canceled)
}

func TestTemplates(t *testing.T) {
	subject, body := VerificationMessage("482913")
	assert.Equal(t, "Verification Email", subject)
	assert.Contains(t, body, "482913")

	subject, body = ResetPasswordMessage("alice", "https://app.example/password/reset/abc")
	assert.Equal(t, "Password Recovery", subject)
	assert.Contains(t, body, "Hi alice")
	assert.Contains(t, body, "https://app.example/password/reset/abc")
}
