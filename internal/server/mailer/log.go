package mailer

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
)

// LogMailer records that a message would have been sent. It is used when
// no SMTP host is configured. Bodies are never written.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(logger logging.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, to, subject, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info(ctx, "mail suppressed, no SMTP host configured", "to", to, "subject", subject)
	return nil
}
