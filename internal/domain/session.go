package domain

import "time"

// RefreshToken is a stored single-use refresh token record. The raw JWT is
// never persisted; only its SHA-256 hex digest. Records are hard-deleted on
// rotation, logout, and revocation, so a row's presence means the session is
// live.
type RefreshToken struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TokenHash string    `json:"-"`
	Device    string    `json:"device,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionSummary describes an active session without exposing token material.
type SessionSummary struct {
	ID        string    `json:"id"`
	Device    string    `json:"device,omitempty"`
	Origin    string    `json:"origin,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Summary returns the session view of a refresh token record.
func (rt *RefreshToken) Summary() SessionSummary {
	return SessionSummary{
		ID:        rt.ID,
		Device:    rt.Device,
		Origin:    rt.Origin,
		CreatedAt: rt.CreatedAt,
		ExpiresAt: rt.ExpiresAt,
	}
}

// TokenPair holds an access and refresh token pair.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
