package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/vodhub/auth-service/internal/auth"
	"github.com/vodhub/auth-service/internal/domain"
	"github.com/vodhub/auth-service/internal/event"
	"github.com/vodhub/auth-service/internal/mailer"
	"github.com/vodhub/auth-service/internal/otp"
	"github.com/vodhub/auth-service/internal/repository"
	"github.com/vodhub/auth-service/internal/session"
	apperrors "github.com/vodhub/auth-service/pkg/errors"
	"github.com/vodhub/auth-service/pkg/pagination"
)

// minPasswordLength is the minimum password length required.
const minPasswordLength = 8

// Registration result messages. The unverified-overwrite branch and the
// fresh-account branch both succeed; only the message differs.
const (
	MsgCheckEmail  = "check your email"
	MsgNewCodeSent = "new code sent"
)

// AuthService coordinates registration, verification, login, token rotation,
// and password reset over the user directory and the refresh store. It owns
// no persistent state of its own.
type AuthService struct {
	users    repository.UserRepository
	sessions *session.Store
	jwt      *auth.JWTManager
	codes    *otp.Generator
	mail     mailer.Sender
	producer *event.Producer
	logger   *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	users repository.UserRepository,
	sessions *session.Store,
	jwt *auth.JWTManager,
	codes *otp.Generator,
	mail mailer.Sender,
	producer *event.Producer,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		jwt:      jwt,
		codes:    codes,
		mail:     mail,
		producer: producer,
		logger:   logger,
	}
}

// RegisterInput holds the parameters for registering a new account.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// LoginInput holds the parameters for password login. Device and Origin
// describe the client and are recorded on the issued session.
type LoginInput struct {
	Email    string
	Password string
	Device   string
	Origin   string
}

// Register creates an unverified account and emails a verification code.
//
// If the email already belongs to a verified account the call fails with
// AlreadyRegistered. If it belongs to an unverified account, the profile and
// password are overwritten and a fresh code is sent; the old code becomes
// permanently invalid. Registration never logs the user in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (string, error) {
	if input.Email == "" {
		return "", apperrors.InvalidInput("email is required")
	}
	if input.FirstName == "" {
		return "", apperrors.InvalidInput("first name is required")
	}
	if input.LastName == "" {
		return "", apperrors.InvalidInput("last name is required")
	}
	if err := validatePassword(input.Password); err != nil {
		return "", err
	}

	email := domain.NormalizeEmail(input.Email)

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.IsEmailVerified:
		return "", apperrors.AlreadyRegistered()

	case err == nil:
		// Unverified account re-registering: overwrite profile and password,
		// then fall through to issuing a fresh code.
		existing.FirstName = input.FirstName
		existing.LastName = input.LastName
		existing.PasswordHash = hash
		if err := s.users.UpdateProfile(ctx, existing); err != nil {
			return "", fmt.Errorf("overwrite unverified account: %w", err)
		}

		if err := s.issueVerificationCode(ctx, existing); err != nil {
			return "", err
		}

		s.logger.InfoContext(ctx, "unverified account re-registered",
			slog.String("user_id", existing.ID),
		)

		return MsgNewCodeSent, nil

	case !errors.Is(err, apperrors.ErrNotFound):
		return "", fmt.Errorf("look up account: %w", err)
	}

	now := time.Now().UTC()
	code, err := s.codes.Generate()
	if err != nil {
		return "", fmt.Errorf("generate verification code: %w", err)
	}
	expiry := s.codes.ExpiryAt()

	user := &domain.User{
		ID:              uuid.New().String(),
		Email:           email,
		PasswordHash:    hash,
		FirstName:       input.FirstName,
		LastName:        input.LastName,
		Role:            domain.RoleUser,
		IsEmailVerified: false,
		VerificationOTP: code,
		VerificationExp: &expiry,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return "", fmt.Errorf("create user: %w", err)
	}

	if err := s.mail.SendVerificationCode(ctx, user.Email, code); err != nil {
		return "", err
	}

	if err := s.producer.PublishUserRegistered(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "user registered",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return MsgCheckEmail, nil
}

// VerifyEmail validates the emailed code and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.lookupForVerification(ctx, email)
	if err != nil {
		return err
	}

	if err := s.codes.Validate(code, user.VerificationOTP, user.VerificationExp); err != nil {
		return err
	}

	// The repository clears the code only while it still matches, so two
	// concurrent submissions cannot both verify.
	if err := s.users.ConfirmVerification(ctx, user.ID, code); err != nil {
		return err
	}

	if err := s.producer.PublishUserVerified(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.verified event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "email verified",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ResendVerification issues a fresh verification code, invalidating any
// prior one.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.lookupForVerification(ctx, email)
	if err != nil {
		return err
	}

	return s.issueVerificationCode(ctx, user)
}

// Login authenticates the user and issues an access/refresh pair.
//
// Unknown email, absent stored hash, and password mismatch all produce the
// same InvalidCredentials failure so callers cannot probe for accounts. A
// correct password against an unverified account reports EmailNotVerified.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*domain.PublicProfile, *domain.TokenPair, error) {
	email := domain.NormalizeEmail(input.Email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, nil, apperrors.InvalidCredentials()
	}

	if user.PasswordHash == "" || input.Password == "" {
		return nil, nil, apperrors.InvalidCredentials()
	}

	if auth.CheckPassword(user.PasswordHash, input.Password) != nil {
		return nil, nil, apperrors.InvalidCredentials()
	}

	if !user.IsEmailVerified {
		return nil, nil, apperrors.EmailNotVerified()
	}

	tokens, err := s.issuePair(ctx, user, input.Device, input.Origin)
	if err != nil {
		return nil, nil, err
	}

	s.logger.InfoContext(ctx, "user logged in",
		slog.String("user_id", user.ID),
	)

	return user.Profile(), tokens, nil
}

// RefreshTokens rotates a refresh token: the presented token is verified,
// consumed, and replaced by a fresh pair. Consuming the old record strictly
// precedes storing the new one, so a crash in between costs the user a
// re-login but never leaves two live tokens from one rotation.
func (s *AuthService) RefreshTokens(ctx context.Context, rawToken, device, origin string) (*domain.TokenPair, error) {
	if rawToken == "" {
		return nil, apperrors.InvalidInput("refresh token is required")
	}

	record, claims, err := s.sessions.VerifyAndFetch(ctx, rawToken, device, origin)
	if err != nil {
		return nil, err
	}

	if err := s.sessions.Consume(ctx, record); err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Unauthorized("user not found")
		}
		return nil, fmt.Errorf("get user for rotation: %w", err)
	}

	// Carry the consumed record's client metadata forward when the request
	// does not supply its own.
	if device == "" {
		device = record.Device
	}
	if origin == "" {
		origin = record.Origin
	}

	tokens, err := s.issuePair(ctx, user, device, origin)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tokens rotated",
		slog.String("user_id", user.ID),
	)

	return tokens, nil
}

// Logout revokes the session behind the presented refresh token. Best
// effort: unknown tokens and store failures never surface to the caller.
func (s *AuthService) Logout(ctx context.Context, rawToken string) {
	if rawToken == "" {
		return
	}

	if err := s.sessions.RevokeOne(ctx, rawToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke session on logout",
			slog.String("error", err.Error()),
		)
	}
}

// LogoutAll revokes every session the user has.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.sessions.RevokeAllForUser(ctx, userID); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "all sessions revoked",
		slog.String("user_id", userID),
	)

	return nil
}

// ForgotPassword issues a password reset code. An unknown email returns the
// same nil result as the success path; the caller's response must be
// indistinguishable either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("lookup account for password reset: %w", err)
	}

	code, err := s.codes.Generate()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	if err := s.users.SetResetOTP(ctx, user.ID, code, s.codes.ExpiryAt()); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if err := s.mail.SendPasswordResetCode(ctx, user.Email, code); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password reset code issued",
		slog.String("user_id", user.ID),
	)

	return nil
}

// VerifyResetCode checks a reset code without consuming it, so clients can
// validate before asking the user for a new password.
func (s *AuthService) VerifyResetCode(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return apperrors.NotFound("user", email)
	}

	return s.codes.Validate(code, user.ResetOTP, user.ResetExp)
}

// ResetPassword consumes a valid reset code, replaces the password, and
// unconditionally revokes every session the user has.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return apperrors.NotFound("user", email)
	}

	if err := s.codes.Validate(code, user.ResetOTP, user.ResetExp); err != nil {
		return err
	}

	// Consume the code first. Zero rows here means a concurrent reset won;
	// this request must not change the password on a stale code.
	if err := s.users.ClearResetOTP(ctx, user.ID, code); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	// The reset must not report success while old refresh tokens stay live.
	if err := s.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		return fmt.Errorf("revoke sessions after password reset: %w", err)
	}

	if err := s.producer.PublishUserPasswordReset(ctx, user.ID, user.Email); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish user.password_reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "password reset completed",
		slog.String("user_id", user.ID),
	)

	return nil
}

// ActiveSessions returns a page of the user's live sessions, newest first.
func (s *AuthService) ActiveSessions(ctx context.Context, userID string, params pagination.Params) (pagination.Result[domain.SessionSummary], error) {
	sessions, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return pagination.Result[domain.SessionSummary]{}, err
	}

	return pagination.Slice(sessions, params), nil
}

// CleanupExpiredUnverified removes unverified accounts whose verification
// code expired, returning the number deleted. Run from the cleanup ticker.
func (s *AuthService) CleanupExpiredUnverified(ctx context.Context) (int64, error) {
	count, err := s.users.DeleteUnverifiedExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup unverified accounts: %w", err)
	}

	if count > 0 {
		s.logger.InfoContext(ctx, "expired unverified accounts removed",
			slog.Int64("count", count),
		)
	}

	return count, nil
}

// --- Helpers ---

// lookupForVerification applies the shared not-found / already-verified
// guards of the verification operations.
func (s *AuthService) lookupForVerification(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, apperrors.InvalidInput("email is required")
	}

	user, err := s.users.GetByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, apperrors.NotFound("user", email)
	}

	if user.IsEmailVerified {
		return nil, apperrors.AlreadyVerified()
	}

	return user, nil
}

// issueVerificationCode stores and mails a fresh verification code,
// overwriting any prior one.
func (s *AuthService) issueVerificationCode(ctx context.Context, user *domain.User) error {
	code, err := s.codes.Generate()
	if err != nil {
		return fmt.Errorf("generate verification code: %w", err)
	}

	if err := s.users.SetVerificationOTP(ctx, user.ID, code, s.codes.ExpiryAt()); err != nil {
		return fmt.Errorf("store verification code: %w", err)
	}

	return s.mail.SendVerificationCode(ctx, user.Email, code)
}

// issuePair creates an access token and a stored refresh session.
func (s *AuthService) issuePair(ctx context.Context, user *domain.User, device, origin string) (*domain.TokenPair, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	refreshToken, err := s.sessions.Issue(ctx, user, device, origin)
	if err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// validatePassword checks that the password meets minimum complexity requirements.
func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return apperrors.InvalidInput(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return apperrors.InvalidInput("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}
