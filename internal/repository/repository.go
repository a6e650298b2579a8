package repository

import (
	"context"
	"time"

	"github.com/vodhub/auth-service/internal/domain"
)

// UserRepository defines the persistence boundary for user accounts.
// Implementations must treat the verify/reset OTP updates as atomic
// compare-and-clear operations: the stored code is validated and cleared in
// a single statement so two concurrent submissions cannot both succeed.
type UserRepository interface {
	// Create inserts a new user into the store.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their normalized email address.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateProfile overwrites the user's name and password hash. Used when
	// an unverified account re-registers with fresh details.
	UpdateProfile(ctx context.Context, user *domain.User) error

	// SetVerificationOTP stores a new email verification code and expiry.
	SetVerificationOTP(ctx context.Context, userID, code string, expiresAt time.Time) error

	// ConfirmVerification marks the email verified and clears the
	// verification code, but only if the stored code still equals code.
	// Returns ErrInvalidCode semantics (zero rows) when the code was
	// already consumed or replaced.
	ConfirmVerification(ctx context.Context, userID, code string) error

	// SetResetOTP stores a new password reset code and expiry.
	SetResetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error

	// ClearResetOTP clears the reset code, but only if the stored code
	// still equals code. Zero rows means the code was already consumed.
	ClearResetOTP(ctx context.Context, userID, code string) error

	// UpdatePassword replaces the user's password hash.
	UpdatePassword(ctx context.Context, userID, passwordHash string) error

	// DeleteUnverifiedExpired removes unverified accounts whose
	// verification code has expired, returning how many were deleted.
	DeleteUnverifiedExpired(ctx context.Context) (int64, error)
}

// RefreshTokenRepository defines the persistence boundary for refresh token
// records. Revocation is a hard delete: a missing row is the only revoked
// state.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// GetByHash retrieves an unexpired token record by hash and owner.
	GetByHash(ctx context.Context, tokenHash, userID string) (*domain.RefreshToken, error)

	// DeleteByID removes a single record, reporting whether a row was
	// deleted. A false return means another request consumed it first.
	DeleteByID(ctx context.Context, id string) (bool, error)

	// DeleteByHash removes a single record by token hash, if present.
	DeleteByHash(ctx context.Context, tokenHash string) error

	// DeleteByUserID removes every record for the given user.
	DeleteByUserID(ctx context.Context, userID string) error

	// ListByUserID returns unexpired records for the user, newest first.
	ListByUserID(ctx context.Context, userID string) ([]domain.RefreshToken, error)

	// DeleteExpired removes expired records, returning how many were deleted.
	DeleteExpired(ctx context.Context) (int64, error)
}
