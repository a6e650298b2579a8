package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vodhub/auth-service/internal/auth"
	"github.com/vodhub/auth-service/internal/domain"
	apperrors "github.com/vodhub/auth-service/pkg/errors"
)

type mockTokenRepo struct {
	mock.Mock
}

func (m *mockTokenRepo) Create(ctx context.Context, token *domain.RefreshToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *mockTokenRepo) GetByHash(ctx context.Context, tokenHash, userID string) (*domain.RefreshToken, error) {
	args := m.Called(ctx, tokenHash, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *mockTokenRepo) DeleteByHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

func (m *mockTokenRepo) DeleteByUserID(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *mockTokenRepo) ListByUserID(ctx context.Context, userID string) ([]domain.RefreshToken, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RefreshToken), args.Error(1)
}

func (m *mockTokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

type mockReusePublisher struct {
	mock.Mock
}

func (m *mockReusePublisher) PublishReuseDetected(ctx context.Context, userID, device, origin string) error {
	args := m.Called(ctx, userID, device, origin)
	return args.Error(0)
}

func newTestStore(t *testing.T) (*Store, *mockTokenRepo, *mockReusePublisher, *auth.JWTManager) {
	t.Helper()
	repo := new(mockTokenRepo)
	events := new(mockReusePublisher)
	jwt := auth.NewJWTManager("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 7*24*time.Hour)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(repo, jwt, events, logger), repo, events, jwt
}

func testUser() *domain.User {
	return &domain.User{
		ID:    "u-1",
		Email: "alice@example.com",
		Role:  domain.RoleUser,
	}
}

func TestStore_Issue_PersistsHashedToken(t *testing.T) {
	store, repo, _, jwt := newTestStore(t)

	var created *domain.RefreshToken
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.RefreshToken")).
		Run(func(args mock.Arguments) {
			created = args.Get(1).(*domain.RefreshToken)
		}).
		Return(nil)

	raw, err := store.Issue(context.Background(), testUser(), "Mozilla/5.0", "203.0.113.7")
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	require.NotNil(t, created)

	// The raw token never reaches storage, only its digest.
	assert.NotEqual(t, raw, created.TokenHash)
	assert.Equal(t, auth.HashToken(raw), created.TokenHash)
	assert.Equal(t, "u-1", created.UserID)
	assert.Equal(t, "Mozilla/5.0", created.Device)
	assert.Equal(t, "203.0.113.7", created.Origin)
	assert.NotEmpty(t, created.ID)
	assert.WithinDuration(t, time.Now().UTC().Add(7*24*time.Hour), created.ExpiresAt, time.Minute)

	claims, err := jwt.ValidateRefreshToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)

	repo.AssertExpectations(t)
}

func TestStore_VerifyAndFetch_Success(t *testing.T) {
	store, repo, _, _ := newTestStore(t)

	raw, err := store.jwt.GenerateRefreshToken("u-1", "alice@example.com", domain.RoleUser)
	require.NoError(t, err)

	record := &domain.RefreshToken{ID: "rt-1", UserID: "u-1", TokenHash: auth.HashToken(raw)}
	repo.On("GetByHash", mock.Anything, auth.HashToken(raw), "u-1").Return(record, nil)

	got, claims, err := store.VerifyAndFetch(context.Background(), raw, "dev", "orig")
	require.NoError(t, err)
	assert.Equal(t, "rt-1", got.ID)
	assert.Equal(t, "u-1", claims.UserID)
	repo.AssertExpectations(t)
}

func TestStore_VerifyAndFetch_MalformedToken(t *testing.T) {
	store, repo, events, _ := newTestStore(t)

	_, _, err := store.VerifyAndFetch(context.Background(), "not-a-jwt", "dev", "orig")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
	assert.False(t, errors.Is(err, apperrors.ErrReuseDetected))

	// A forged token must not trigger revocation for anyone.
	repo.AssertNotCalled(t, "DeleteByUserID", mock.Anything, mock.Anything)
	events.AssertNotCalled(t, "PublishReuseDetected", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStore_VerifyAndFetch_UnknownRecordRevokesAllSessions(t *testing.T) {
	store, repo, events, _ := newTestStore(t)

	raw, err := store.jwt.GenerateRefreshToken("u-1", "alice@example.com", domain.RoleUser)
	require.NoError(t, err)

	repo.On("GetByHash", mock.Anything, auth.HashToken(raw), "u-1").Return(nil, apperrors.ErrNotFound)
	repo.On("DeleteByUserID", mock.Anything, "u-1").Return(nil)
	events.On("PublishReuseDetected", mock.Anything, "u-1", "dev", "orig").Return(nil)

	record, claims, err := store.VerifyAndFetch(context.Background(), raw, "dev", "orig")
	assert.Nil(t, record)
	assert.Nil(t, claims)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrReuseDetected))

	repo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestStore_VerifyAndFetch_ReuseEventFailureDoesNotMaskError(t *testing.T) {
	store, repo, events, _ := newTestStore(t)

	raw, err := store.jwt.GenerateRefreshToken("u-1", "alice@example.com", domain.RoleUser)
	require.NoError(t, err)

	repo.On("GetByHash", mock.Anything, auth.HashToken(raw), "u-1").Return(nil, apperrors.ErrNotFound)
	repo.On("DeleteByUserID", mock.Anything, "u-1").Return(nil)
	events.On("PublishReuseDetected", mock.Anything, "u-1", "dev", "orig").Return(errors.New("broker down"))

	_, _, err = store.VerifyAndFetch(context.Background(), raw, "dev", "orig")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrReuseDetected))
}

func TestStore_Consume_Success(t *testing.T) {
	store, repo, _, _ := newTestStore(t)

	repo.On("DeleteByID", mock.Anything, "rt-1").Return(true, nil)

	err := store.Consume(context.Background(), &domain.RefreshToken{ID: "rt-1", UserID: "u-1"})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

// Two requests racing with the same token: the loser's delete affects zero
// rows and must be treated as reuse.
func TestStore_Consume_RaceLoserObservesReuse(t *testing.T) {
	store, repo, events, _ := newTestStore(t)

	repo.On("DeleteByID", mock.Anything, "rt-1").Return(false, nil)
	repo.On("DeleteByUserID", mock.Anything, "u-1").Return(nil)
	events.On("PublishReuseDetected", mock.Anything, "u-1", "dev", "orig").Return(nil)

	err := store.Consume(context.Background(), &domain.RefreshToken{
		ID:     "rt-1",
		UserID: "u-1",
		Device: "dev",
		Origin: "orig",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrReuseDetected))

	repo.AssertExpectations(t)
	events.AssertExpectations(t)
}

func TestStore_RevokeOne_HashesToken(t *testing.T) {
	store, repo, _, _ := newTestStore(t)

	repo.On("DeleteByHash", mock.Anything, auth.HashToken("some-raw-token")).Return(nil)

	err := store.RevokeOne(context.Background(), "some-raw-token")
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestStore_ListActive_ProjectsSummaries(t *testing.T) {
	store, repo, _, _ := newTestStore(t)

	now := time.Now().UTC()
	repo.On("ListByUserID", mock.Anything, "u-1").Return([]domain.RefreshToken{
		{ID: "rt-2", UserID: "u-1", TokenHash: "h2", Device: "curl/8.5", Origin: "198.51.100.3", ExpiresAt: now.Add(time.Hour), CreatedAt: now},
		{ID: "rt-1", UserID: "u-1", TokenHash: "h1", Device: "Mozilla/5.0", Origin: "203.0.113.7", ExpiresAt: now.Add(time.Hour), CreatedAt: now.Add(-time.Minute)},
	}, nil)

	sessions, err := store.ListActive(context.Background(), "u-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "rt-2", sessions[0].ID)
	assert.Equal(t, "curl/8.5", sessions[0].Device)
	repo.AssertExpectations(t)
}

func TestStore_ListActive_Empty(t *testing.T) {
	store, repo, _, _ := newTestStore(t)

	repo.On("ListByUserID", mock.Anything, "u-1").Return([]domain.RefreshToken{}, nil)

	sessions, err := store.ListActive(context.Background(), "u-1")
	require.NoError(t, err)
	assert.NotNil(t, sessions)
	assert.Empty(t, sessions)
}

func TestStore_PurgeExpired(t *testing.T) {
	store, repo, _, _ := newTestStore(t)

	repo.On("DeleteExpired", mock.Anything).Return(int64(7), nil)

	count, err := store.PurgeExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), count)
}
