package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vodhub/auth-service/internal/domain"
	"github.com/vodhub/auth-service/pkg/database"
	apperrors "github.com/vodhub/auth-service/pkg/errors"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL. Rows are hard-deleted on rotation, logout, and revocation; a
// missing row is the only revoked state.
type RefreshTokenRepository struct {
	db DB
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(db DB) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, device, origin, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.TokenHash,
		t.Device,
		t.Origin,
		t.ExpiresAt,
		t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByHash retrieves an unexpired token record by its hash and owner. Both
// predicates matter: a hash that exists under a different user must look
// like a miss so the caller treats it as reuse evidence.
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash, userID string) (*domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, device, origin, expires_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND user_id = $2 AND expires_at > NOW()`

	ctx, end := database.TraceQuery(ctx, "GetRefreshTokenByHash", query)

	var t domain.RefreshToken
	err := r.db.QueryRow(ctx, query, tokenHash, userID).Scan(
		&t.ID,
		&t.UserID,
		&t.TokenHash,
		&t.Device,
		&t.Origin,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	end(err)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &t, nil
}

// DeleteByID removes a single record, reporting whether a row was deleted.
// A false return means a concurrent request consumed the token first.
func (r *RefreshTokenRepository) DeleteByID(ctx context.Context, id string) (bool, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete refresh token: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// DeleteByHash removes a single record by token hash, if present.
func (r *RefreshTokenRepository) DeleteByHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("delete refresh token by hash: %w", err)
	}

	return nil
}

// DeleteByUserID removes every record for the given user.
func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("delete refresh tokens by user: %w", err)
	}

	return nil
}

// ListByUserID returns unexpired records for the user, newest first.
func (r *RefreshTokenRepository) ListByUserID(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, device, origin, expires_at, created_at
		FROM refresh_tokens
		WHERE user_id = $1 AND expires_at > NOW()
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list refresh tokens: %w", err)
	}
	defer rows.Close()

	var tokens []domain.RefreshToken
	for rows.Next() {
		var t domain.RefreshToken
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.TokenHash,
			&t.Device,
			&t.Origin,
			&t.ExpiresAt,
			&t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan refresh token row: %w", err)
		}
		tokens = append(tokens, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate refresh token rows: %w", err)
	}

	if tokens == nil {
		tokens = []domain.RefreshToken{}
	}

	return tokens, nil
}

// DeleteExpired removes expired records, returning how many were deleted.
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	ct, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}

	return ct.RowsAffected(), nil
}
