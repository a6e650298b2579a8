package mailer

import (
	"context"
	"log/slog"
)

// LogSender writes codes to the log instead of sending mail. Development
// only; it defeats the point of email verification anywhere else.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a log-only sender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) SendVerificationCode(ctx context.Context, email, code string) error {
	l.logger.InfoContext(ctx, "verification code issued",
		slog.String("email", email),
		slog.String("code", code),
	)
	return nil
}

func (l *LogSender) SendPasswordResetCode(ctx context.Context, email, code string) error {
	l.logger.InfoContext(ctx, "password reset code issued",
		slog.String("email", email),
		slog.String("code", code),
	)
	return nil
}
