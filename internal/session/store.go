// Package session manages the lifecycle of rotating, single-use refresh
// tokens. Each issued refresh token is persisted as a hashed record; a token
// that verifies cryptographically but has no record is treated as evidence of
// theft and revokes every session the user has.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vodhub/auth-service/internal/auth"
	"github.com/vodhub/auth-service/internal/domain"
	"github.com/vodhub/auth-service/internal/repository"
	apperrors "github.com/vodhub/auth-service/pkg/errors"
)

// ReusePublisher receives a notification when a rotated-out refresh token is
// presented again. Implemented by the Kafka event producer.
type ReusePublisher interface {
	PublishReuseDetected(ctx context.Context, userID, device, origin string) error
}

// Store issues, verifies, rotates, and revokes refresh tokens.
type Store struct {
	tokens repository.RefreshTokenRepository
	jwt    *auth.JWTManager
	events ReusePublisher
	logger *slog.Logger
}

// NewStore creates a new refresh token store. events may be nil when no
// broker is configured.
func NewStore(tokens repository.RefreshTokenRepository, jwt *auth.JWTManager, events ReusePublisher, logger *slog.Logger) *Store {
	return &Store{
		tokens: tokens,
		jwt:    jwt,
		events: events,
		logger: logger,
	}
}

// Issue generates a refresh token for the user and persists its record. Only
// a sha256 digest of the token touches the database; the raw token is
// returned to the caller exactly once.
func (s *Store) Issue(ctx context.Context, user *domain.User, device, origin string) (string, error) {
	token, err := s.jwt.GenerateRefreshToken(user.ID, user.Email, user.Role)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}

	now := time.Now().UTC()
	record := &domain.RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: auth.HashToken(token),
		Device:    device,
		Origin:    origin,
		ExpiresAt: now.Add(s.jwt.RefreshExpiry()),
		CreatedAt: now,
	}

	if err := s.tokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}

	return token, nil
}

// VerifyAndFetch validates a presented refresh token and loads its record.
//
// A token that fails signature or expiry checks is simply unauthorized. A
// token that verifies but has no live record was already rotated out or
// revoked; someone is replaying it. In that case every session the user has
// is revoked before the reuse error is returned.
func (s *Store) VerifyAndFetch(ctx context.Context, rawToken, device, origin string) (*domain.RefreshToken, *auth.Claims, error) {
	claims, err := s.jwt.ValidateRefreshToken(rawToken)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid refresh token")
	}

	record, err := s.tokens.GetByHash(ctx, auth.HashToken(rawToken), claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.handleReuse(ctx, claims.UserID, device, origin)
			return nil, nil, apperrors.ReuseDetected()
		}
		return nil, nil, fmt.Errorf("fetch refresh token: %w", err)
	}

	return record, claims, nil
}

// Consume deletes the record so the token can never be accepted again. A
// zero-row delete means a concurrent request already consumed it; the same
// raw token was presented twice, which is reuse by definition, so the user's
// remaining sessions are revoked as well.
func (s *Store) Consume(ctx context.Context, record *domain.RefreshToken) error {
	deleted, err := s.tokens.DeleteByID(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("consume refresh token: %w", err)
	}

	if !deleted {
		s.handleReuse(ctx, record.UserID, record.Device, record.Origin)
		return apperrors.ReuseDetected()
	}

	return nil
}

// RevokeOne revokes the session behind the presented refresh token. It is
// idempotent: an unknown or already-revoked token is not an error.
func (s *Store) RevokeOne(ctx context.Context, rawToken string) error {
	if err := s.tokens.DeleteByHash(ctx, auth.HashToken(rawToken)); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// RevokeAllForUser revokes every session the user has.
func (s *Store) RevokeAllForUser(ctx context.Context, userID string) error {
	if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("revoke user sessions: %w", err)
	}

	return nil
}

// ListActive returns summaries of the user's live sessions, newest first.
// Token hashes never leave this package.
func (s *Store) ListActive(ctx context.Context, userID string) ([]domain.SessionSummary, error) {
	records, err := s.tokens.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	summaries := make([]domain.SessionSummary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, r.Summary())
	}

	return summaries, nil
}

// PurgeExpired removes expired token records, returning how many were
// deleted. Run periodically from the cleanup loop.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	count, err := s.tokens.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired refresh tokens: %w", err)
	}

	return count, nil
}

// handleReuse revokes every session for the user and emits the security
// event. Revocation failure is logged but does not mask the reuse error the
// caller is about to return.
func (s *Store) handleReuse(ctx context.Context, userID, device, origin string) {
	s.logger.WarnContext(ctx, "refresh token reuse detected, revoking all sessions",
		slog.String("user_id", userID),
		slog.String("device", device),
		slog.String("origin", origin),
	)

	if err := s.tokens.DeleteByUserID(ctx, userID); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke sessions after reuse",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}

	if s.events != nil {
		if err := s.events.PublishReuseDetected(ctx, userID, device, origin); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish reuse event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
}
