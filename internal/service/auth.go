package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loyalbridge/admin/internal/config"
	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/telemetry"
)

// AdminStore is the slice of the credential store the auth flows need.
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (*model.Admin, error)
	UpdateAdminLastLogin(ctx context.Context, id int64) error
}

// AuthOptions wires optional collaborators into an AuthService. Nil fields
// get in-memory or no-op defaults.
type AuthOptions struct {
	Hasher      PasswordHasher
	Challenges  ChallengeStore
	Revocations RevocationStore
	TwoFactor   TwoFactorPolicy
	Notifier    OTPNotifier
	Metrics     *telemetry.Metrics
	Logger      *slog.Logger

	// ExposeOTP appends the issued code to the login message. Development
	// only.
	ExposeOTP bool
}

// AuthService orchestrates login, the OTP second factor, refresh, logout
// and request authentication.
type AuthService struct {
	store       AdminStore
	tokens      *TokenService
	hasher      PasswordHasher
	challenges  ChallengeStore
	revocations RevocationStore
	twoFactor   TwoFactorPolicy
	notifier    OTPNotifier
	metrics     *telemetry.Metrics
	logger      *slog.Logger
	exposeOTP   bool

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService builds the orchestrator.
func NewAuthService(store AdminStore, tokens *TokenService, opts AuthOptions) *AuthService {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Hasher == nil {
		opts.Hasher = NewBcryptHasher(0)
	}
	if opts.Challenges == nil {
		opts.Challenges = NewMemoryChallengeStore(ChallengeOptions{})
	}
	if opts.Revocations == nil {
		opts.Revocations = NewMemoryRevocationStore(nil)
	}
	if opts.TwoFactor == nil {
		opts.TwoFactor = NeverRequireTwoFactor()
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	return &AuthService{
		store:       store,
		tokens:      tokens,
		hasher:      opts.Hasher,
		challenges:  opts.Challenges,
		revocations: opts.Revocations,
		twoFactor:   opts.TwoFactor,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		exposeOTP:   opts.ExposeOTP,
	}
}

// Tokens returns the token service.
func (s *AuthService) Tokens() *TokenService { return s.tokens }

// Hasher returns the password hasher used for credential checks.
func (s *AuthService) Hasher() PasswordHasher { return s.hasher }

// LoginResult is the outcome of a completed or challenged login.
type LoginResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Admin        *model.Admin
	Requires2FA  bool
	Message      string
}

// RefreshResult carries a newly minted access token.
type RefreshResult struct {
	AccessToken string
	ExpiresIn   time.Duration
}

// Login checks the email/password pair, then the account status, and
// records the login time. When the two-factor policy applies it issues an
// OTP challenge and returns Requires2FA with the admin but without tokens.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = model.NormalizeEmail(email)

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			// Spend the same bcrypt time as a real mismatch.
			s.hasher.Verify(password, s.dummyDigest())
			s.metrics.LoginAttempt("invalid_credentials")
			s.logger.WarnContext(ctx, "login failed", "email", email, "reason", "unknown email")
			return nil, ErrInvalidCredentials
		}
		s.metrics.LoginAttempt("error")
		return nil, fmt.Errorf("load admin: %w", err)
	}

	if !s.hasher.Verify(password, admin.PasswordHash) {
		s.metrics.LoginAttempt("invalid_credentials")
		s.logger.WarnContext(ctx, "login failed", "email", email, "reason", "bad password")
		return nil, ErrInvalidCredentials
	}

	if !admin.IsActive {
		s.metrics.LoginAttempt("inactive")
		s.logger.WarnContext(ctx, "login failed", "email", email, "reason", "inactive")
		return nil, ErrAccountInactive
	}

	s.recordLastLogin(ctx, admin)

	if s.twoFactor.Requires(admin) {
		code, err := s.challenges.Issue(ctx, admin.Email)
		if err != nil {
			s.metrics.LoginAttempt("error")
			return nil, fmt.Errorf("issue otp: %w", err)
		}
		if err := s.notifier.DeliverOTP(ctx, admin, code); err != nil {
			s.metrics.LoginAttempt("error")
			return nil, fmt.Errorf("deliver otp: %w", err)
		}
		s.metrics.LoginAttempt("challenged")
		msg := "OTP sent to your registered email. Please verify to complete login."
		if s.exposeOTP {
			msg += " Development code: " + code
		}
		return &LoginResult{Requires2FA: true, Admin: admin, Message: msg}, nil
	}

	s.metrics.LoginAttempt("success")
	return s.completeLogin(ctx, admin)
}

// VerifyTwoFactor checks the OTP for email and completes the login.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, email, code string) (*LoginResult, error) {
	email = model.NormalizeEmail(email)

	result, err := s.challenges.Verify(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("verify otp: %w", err)
	}
	s.metrics.OTPVerification(result.String())
	if result != OTPSuccess {
		s.logger.WarnContext(ctx, "otp verification failed", "email", email, "result", result.String())
		return nil, ErrInvalidOrExpiredOTP
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if !admin.IsActive {
		return nil, ErrAccountInactive
	}
	return s.completeLogin(ctx, admin)
}

// recordLastLogin stamps the admin's last login once the password checks
// out. A failed write is logged and does not block the login.
func (s *AuthService) recordLastLogin(ctx context.Context, admin *model.Admin) {
	if err := s.store.UpdateAdminLastLogin(ctx, admin.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "admin_id", admin.ID, "error", err)
		return
	}
	now := time.Now().UTC()
	admin.LastLoginAt = &now
}

func (s *AuthService) completeLogin(ctx context.Context, admin *model.Admin) (*LoginResult, error) {
	access, err := s.tokens.IssueAccessToken(admin.Email, admin.Role, admin.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(admin.Email)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(string(TokenTypeAccess))
	s.metrics.TokenIssued(string(TokenTypeRefresh))

	s.logger.InfoContext(ctx, "admin logged in", "admin_id", admin.ID, "email", admin.Email, "role", admin.Role)
	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.tokens.AccessTTL(),
		Admin:        admin,
		Message:      "Login successful",
	}, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	revoked, err := s.revocations.IsRevoked(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenBlacklisted
	}

	claims, err := s.tokens.Parse(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrInvalidToken
	}

	admin, err := s.store.GetAdminByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if !admin.IsActive {
		return nil, ErrAccountInactive
	}
	if !s.tokens.Verify(refreshToken, admin.Email) {
		return nil, ErrInvalidToken
	}

	access, err := s.tokens.IssueAccessToken(admin.Email, admin.Role, admin.ID)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenIssued(string(TokenTypeAccess))
	return &RefreshResult{AccessToken: access, ExpiresIn: s.tokens.AccessTTL()}, nil
}

// Logout blacklists the bearer token in authHeader, if any, and returns ctx
// with the request identity cleared. It never fails.
func (s *AuthService) Logout(ctx context.Context, authHeader string) context.Context {
	if token, ok := BearerToken(authHeader); ok {
		if err := s.revocations.Revoke(ctx, token, s.tokens.ExpiresAt(token)); err != nil {
			s.logger.ErrorContext(ctx, "failed to revoke token on logout", "error", err)
		} else {
			s.metrics.TokenRevoked()
		}
	}
	if p := PrincipalFromContext(ctx); p != nil {
		s.logger.InfoContext(ctx, "admin logged out", "admin_id", p.AdminID, "email", p.Email)
	}
	return WithoutPrincipal(ctx)
}

// CurrentAdmin returns the admin behind the request's principal.
func (s *AuthService) CurrentAdmin(ctx context.Context) (*model.Admin, error) {
	p := PrincipalFromContext(ctx)
	if p == nil {
		return nil, ErrNotAuthenticated
	}
	admin, err := s.store.GetAdminByEmail(ctx, p.Email)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	return admin, nil
}

// Authenticate resolves an access token to a principal. Refresh tokens,
// revoked tokens and tokens of missing or inactive admins are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeAccess {
		return nil, ErrInvalidToken
	}

	admin, err := s.store.GetAdminByEmail(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if !admin.IsActive {
		return nil, ErrAccountInactive
	}

	revoked, err := s.revocations.IsRevoked(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenBlacklisted
	}
	if claims.Subject != admin.Email {
		return nil, ErrInvalidToken
	}

	return &Principal{
		AdminID:   admin.ID,
		Email:     admin.Email,
		Role:      admin.Role,
		Authority: admin.Authority(),
	}, nil
}

// dummyDigest is a throwaway bcrypt hash compared against on unknown emails.
func (s *AuthService) dummyDigest() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("loyalbridge-unknown-admin")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header value.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
