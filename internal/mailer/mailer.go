// Package mailer delivers one-time codes to users. Three senders exist: an
// SMTP sender for direct delivery, a gateway sender that posts to an HTTP
// mail service behind a circuit breaker, and a log sender for development.
package mailer

import "context"

// Sender delivers one-time codes. Implementations return an error wrapping
// apperrors.ErrDeliveryFailed when the message could not be handed off.
type Sender interface {
	SendVerificationCode(ctx context.Context, email, code string) error
	SendPasswordResetCode(ctx context.Context, email, code string) error
}

// Sender mode names, selected via configuration.
const (
	ModeSMTP    = "smtp"
	ModeGateway = "gateway"
	ModeLog     = "log"
)
