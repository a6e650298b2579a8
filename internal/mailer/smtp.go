package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	apperrors "github.com/vodhub/auth-service/pkg/errors"
)

// SMTPConfig holds connection settings for direct SMTP delivery.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers codes over plain SMTP with AUTH PLAIN.
type SMTPSender struct {
	cfg  SMTPConfig
	addr string
}

// NewSMTPSender creates an SMTP-backed sender.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{
		cfg:  cfg,
		addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

// SendVerificationCode emails an account verification code.
func (s *SMTPSender) SendVerificationCode(_ context.Context, email, code string) error {
	body := fmt.Sprintf("Your verification code is %s. It expires in 2 minutes.", code)
	return s.send(email, "Verify your email", body)
}

// SendPasswordResetCode emails a password reset code.
func (s *SMTPSender) SendPasswordResetCode(_ context.Context, email, code string) error {
	body := fmt.Sprintf("Your password reset code is %s. It expires in 2 minutes.", code)
	return s.send(email, "Reset your password", body)
}

func (s *SMTPSender) send(to, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(s.addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return apperrors.DeliveryFailed(fmt.Errorf("smtp send to %s: %w", to, err))
	}

	return nil
}
