package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vodhub/auth-service/internal/domain"
	pkgkafka "github.com/vodhub/auth-service/pkg/kafka"
)

// Kafka topic constants for auth domain events.
const (
	TopicUserRegistered    = "auth.user.registered"
	TopicUserVerified      = "auth.user.verified"
	TopicUserPasswordReset = "auth.user.password_reset"
	TopicReuseDetected     = "auth.session.reuse_detected"
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// UserRegisteredData is the payload for an auth.user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// UserVerifiedData is the payload for an auth.user.verified event.
type UserVerifiedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserPasswordResetData is the payload for an auth.user.password_reset event.
type UserPasswordResetData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// ReuseDetectedData is the payload for an auth.session.reuse_detected event.
// It records that a rotated-out refresh token was presented again, after which
// every session for the user was revoked.
type ReuseDetectedData struct {
	UserID string `json:"user_id"`
	Device string `json:"device,omitempty"`
	Origin string `json:"origin,omitempty"`
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes an auth.user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}

// PublishUserVerified publishes an auth.user.verified event.
func (p *Producer) PublishUserVerified(ctx context.Context, userID, email string) error {
	data := UserVerifiedData{
		UserID: userID,
		Email:  email,
	}

	event, err := pkgkafka.NewEvent(TopicUserVerified, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.verified event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserVerified, event); err != nil {
		return fmt.Errorf("publish user.verified event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.verified event",
		slog.String("user_id", userID),
		slog.String("email", email),
	)

	return nil
}

// PublishUserPasswordReset publishes an auth.user.password_reset event.
func (p *Producer) PublishUserPasswordReset(ctx context.Context, userID, email string) error {
	data := UserPasswordResetData{
		UserID: userID,
		Email:  email,
	}

	event, err := pkgkafka.NewEvent(TopicUserPasswordReset, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create user.password_reset event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserPasswordReset, event); err != nil {
		return fmt.Errorf("publish user.password_reset event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.password_reset event",
		slog.String("user_id", userID),
		slog.String("email", email),
	)

	return nil
}

// PublishReuseDetected publishes an auth.session.reuse_detected event. This is
// a security signal, so it logs at Warn rather than Debug.
func (p *Producer) PublishReuseDetected(ctx context.Context, userID, device, origin string) error {
	data := ReuseDetectedData{
		UserID: userID,
		Device: device,
		Origin: origin,
	}

	event, err := pkgkafka.NewEvent(TopicReuseDetected, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create session.reuse_detected event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReuseDetected, event); err != nil {
		return fmt.Errorf("publish session.reuse_detected event: %w", err)
	}

	p.logger.WarnContext(ctx, "published session.reuse_detected event",
		slog.String("user_id", userID),
		slog.String("device", device),
	)

	return nil
}
