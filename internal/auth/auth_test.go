package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-access-secret", "test-refresh-secret", 15*time.Minute, 7*24*time.Hour)
}

func TestJWT_GenerateAndValidateAccessToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateAccessToken("user-123", "alice@example.com", "user")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := m.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
}

func TestJWT_GenerateAndValidateRefreshToken(t *testing.T) {
	m := newTestManager()

	token, err := m.GenerateRefreshToken("user-123", "alice@example.com", "user")
	require.NoError(t, err)

	claims, err := m.ValidateRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

// Access tokens must not validate as refresh tokens and vice versa, since
// the two kinds are signed with distinct secrets.
func TestJWT_SecretsAreNotInterchangeable(t *testing.T) {
	m := newTestManager()

	accessToken, err := m.GenerateAccessToken("user-123", "alice@example.com", "user")
	require.NoError(t, err)

	claims, err := m.ValidateRefreshToken(accessToken)
	assert.Nil(t, claims)
	assert.Error(t, err)

	refreshToken, err := m.GenerateRefreshToken("user-123", "alice@example.com", "user")
	require.NoError(t, err)

	claims, err = m.ValidateAccessToken(refreshToken)
	assert.Nil(t, claims)
	assert.Error(t, err)
}

func TestJWT_InvalidToken(t *testing.T) {
	m := newTestManager()

	claims, err := m.ValidateAccessToken("not-a-jwt")
	assert.Nil(t, claims)
	assert.Error(t, err)
}

func TestJWT_WrongSecret(t *testing.T) {
	m1 := NewJWTManager("secret-1", "refresh-1", 15*time.Minute, 7*24*time.Hour)
	m2 := NewJWTManager("secret-2", "refresh-2", 15*time.Minute, 7*24*time.Hour)

	token, err := m1.GenerateAccessToken("user-123", "alice@example.com", "user")
	require.NoError(t, err)

	claims, err := m2.ValidateAccessToken(token)
	assert.Nil(t, claims)
	assert.Error(t, err)
}

func TestJWT_ExpiredToken(t *testing.T) {
	m := NewJWTManager("access", "refresh", -time.Minute, -time.Minute)

	token, err := m.GenerateAccessToken("user-123", "alice@example.com", "user")
	require.NoError(t, err)

	claims, err := m.ValidateAccessToken(token)
	assert.Nil(t, claims)
	assert.Error(t, err)
}

// --- ParseExpiry ---

func TestParseExpiry(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"30s", 30 * time.Second},
		{"15m", 15 * time.Minute},
		{"12h", 12 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"1d", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseExpiry(tt.input))
		})
	}
}

func TestParseExpiry_FallsBackToSevenDays(t *testing.T) {
	tests := []string{"", "x", "15", "15w", "abc", "-5m", "m15"}

	for _, input := range tests {
		t.Run("input_"+input, func(t *testing.T) {
			assert.Equal(t, 7*24*time.Hour, ParseExpiry(input))
		})
	}
}

func TestExpiryTime(t *testing.T) {
	got := ExpiryTime("15m")
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), got, 5*time.Second)
}

// --- Password hashing ---

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("SecurePass123")
	require.NoError(t, err)
	assert.NotEqual(t, "SecurePass123", hash)

	assert.NoError(t, CheckPassword(hash, "SecurePass123"))
	assert.Error(t, CheckPassword(hash, "WrongPass456"))
}

func TestHashPassword_Salted(t *testing.T) {
	h1, err := HashPassword("SecurePass123")
	require.NoError(t, err)
	h2, err := HashPassword("SecurePass123")
	require.NoError(t, err)

	// bcrypt salts every hash; identical inputs must not collide.
	assert.NotEqual(t, h1, h2)
}

// --- Token hashing ---

func TestHashToken_Deterministic(t *testing.T) {
	h1 := HashToken("some-refresh-token")
	h2 := HashToken("some-refresh-token")
	h3 := HashToken("another-token")

	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	// sha256 hex digest.
	assert.Len(t, h1, 64)
}
