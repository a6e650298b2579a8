package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	apperrors "github.com/vodhub/auth-service/pkg/errors"
	"github.com/vodhub/auth-service/pkg/httpclient"
)

// Mail template identifiers understood by the gateway.
const (
	templateVerification  = "email_verification"
	templatePasswordReset = "password_reset"
)

// gatewayRequest is the JSON body posted to the mail gateway.
type gatewayRequest struct {
	To       string `json:"to"`
	Template string `json:"template"`
	Code     string `json:"code"`
}

// GatewaySender delivers codes by posting to an HTTP mail gateway. The call
// goes through a circuit breaker so a failing gateway stops consuming
// request budget quickly.
type GatewaySender struct {
	client *httpclient.CircuitBreakerClient
	url    string
	logger *slog.Logger
}

// NewGatewaySender creates a sender that posts to the given gateway URL.
func NewGatewaySender(url string, logger *slog.Logger) *GatewaySender {
	client := httpclient.New(httpclient.DefaultConfig())
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig("mail-gateway"), logger)

	return &GatewaySender{
		client: cb,
		url:    url,
		logger: logger,
	}
}

// SendVerificationCode posts an account verification code to the gateway.
func (g *GatewaySender) SendVerificationCode(ctx context.Context, email, code string) error {
	return g.post(ctx, gatewayRequest{To: email, Template: templateVerification, Code: code})
}

// SendPasswordResetCode posts a password reset code to the gateway.
func (g *GatewaySender) SendPasswordResetCode(ctx context.Context, email, code string) error {
	return g.post(ctx, gatewayRequest{To: email, Template: templatePasswordReset, Code: code})
}

func (g *GatewaySender) post(ctx context.Context, req gatewayRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	resp, err := g.client.Post(ctx, g.url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return apperrors.DeliveryFailed(fmt.Errorf("post to mail gateway: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		// ParseResponseError consumes and closes the body.
		return apperrors.DeliveryFailed(httpclient.ParseResponseError(resp, "mail-gateway"))
	}
	defer resp.Body.Close()

	g.logger.DebugContext(ctx, "mail handed off to gateway",
		slog.String("template", req.Template),
	)

	return nil
}
