package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vodhub/auth-service/internal/domain"
	"github.com/vodhub/auth-service/pkg/database"
	apperrors "github.com/vodhub/auth-service/pkg/errors"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_email_verified, verification_otp, verification_otp_expires_at, reset_otp, reset_otp_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Role,
		u.IsEmailVerified,
		u.VerificationOTP,
		u.VerificationExp,
		u.ResetOTP,
		u.ResetExp,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, is_email_verified, verification_otp, verification_otp_expires_at, reset_otp, reset_otp_expires_at, created_at, updated_at
		FROM users
		WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserByID", query)
	u, err := r.scanUser(ctx, query, id)
	end(err)
	return u, err
}

// GetByEmail retrieves a user by their email address. Callers are expected
// to normalize the email first; emails are stored normalized.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, email, password_hash, first_name, last_name, role, is_email_verified, verification_otp, verification_otp_expires_at, reset_otp, reset_otp_expires_at, created_at, updated_at
		FROM users
		WHERE email = $1`

	ctx, end := database.TraceQuery(ctx, "GetUserByEmail", query)
	u, err := r.scanUser(ctx, query, email)
	end(err)
	return u, err
}

// UpdateProfile overwrites the user's name and password hash.
func (r *UserRepository) UpdateProfile(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET first_name = $1, last_name = $2, password_hash = $3, updated_at = $4
		WHERE id = $5`

	ct, err := r.db.Exec(ctx, query,
		u.FirstName,
		u.LastName,
		u.PasswordHash,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", u.ID)
	}

	return nil
}

// SetVerificationOTP stores a new email verification code and expiry.
func (r *UserRepository) SetVerificationOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET verification_otp = $1, verification_otp_expires_at = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, code, expiresAt, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("set verification otp: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	return nil
}

// ConfirmVerification marks the email verified and clears the verification
// code in a single conditional update. The WHERE clause re-checks the stored
// code so a concurrent submission of the same code cannot verify twice.
func (r *UserRepository) ConfirmVerification(ctx context.Context, userID, code string) error {
	query := `
		UPDATE users
		SET is_email_verified = TRUE, verification_otp = '', verification_otp_expires_at = NULL, updated_at = $1
		WHERE id = $2 AND verification_otp = $3 AND verification_otp <> ''`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), userID, code)
	if err != nil {
		return fmt.Errorf("confirm verification: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.InvalidCode("invalid verification code")
	}

	return nil
}

// SetResetOTP stores a new password reset code and expiry.
func (r *UserRepository) SetResetOTP(ctx context.Context, userID, code string, expiresAt time.Time) error {
	query := `
		UPDATE users
		SET reset_otp = $1, reset_otp_expires_at = $2, updated_at = $3
		WHERE id = $4`

	ct, err := r.db.Exec(ctx, query, code, expiresAt, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("set reset otp: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	return nil
}

// ClearResetOTP clears the reset code, but only if the stored code still
// equals the one being consumed.
func (r *UserRepository) ClearResetOTP(ctx context.Context, userID, code string) error {
	query := `
		UPDATE users
		SET reset_otp = '', reset_otp_expires_at = NULL, updated_at = $1
		WHERE id = $2 AND reset_otp = $3 AND reset_otp <> ''`

	ct, err := r.db.Exec(ctx, query, time.Now().UTC(), userID, code)
	if err != nil {
		return fmt.Errorf("clear reset otp: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.InvalidCode("invalid verification code")
	}

	return nil
}

// UpdatePassword replaces the user's password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	query := `
		UPDATE users
		SET password_hash = $1, updated_at = $2
		WHERE id = $3`

	ct, err := r.db.Exec(ctx, query, passwordHash, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", userID)
	}

	return nil
}

// DeleteUnverifiedExpired removes unverified accounts whose verification
// code has expired, returning how many rows were deleted.
func (r *UserRepository) DeleteUnverifiedExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM users
		WHERE is_email_verified = FALSE
		  AND verification_otp_expires_at IS NOT NULL
		  AND verification_otp_expires_at < NOW()`

	ct, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("delete unverified users: %w", err)
	}

	return ct.RowsAffected(), nil
}

// scanUser is a helper that executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User

	err := r.db.QueryRow(ctx, query, args...).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.IsEmailVerified,
		&u.VerificationOTP,
		&u.VerificationExp,
		&u.ResetOTP,
		&u.ResetExp,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
