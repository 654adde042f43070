package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/loyalbridge/admin/internal/model"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// DefaultIssuer is the iss claim stamped on every token.
const DefaultIssuer = "loyalbridge-admin"

// Claims is the JWT payload. Role and AdminID are only set on access tokens.
type Claims struct {
	Role    string    `json:"role,omitempty"`
	AdminID int64     `json:"adminId,omitempty"`
	Type    TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// TokenConfig configures a TokenService.
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// TokenService issues and validates HS256-signed access and refresh tokens.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
	parser     *jwt.Parser
}

// NewTokenService validates cfg and returns a TokenService. The secret must
// be at least 256 bits.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	if cfg.AccessTTL < 0 || cfg.RefreshTTL < 0 {
		return nil, errors.New("token ttl must not be negative")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	s := &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        cfg.Now,
	}
	s.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
		jwt.WithExpirationRequired(),
	)
	return s, nil
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs an access token for subject carrying the admin's
// role and id.
func (s *TokenService) IssueAccessToken(subject string, role model.AdminRole, adminID int64) (string, error) {
	return s.issue(subject, TokenTypeAccess, s.accessTTL, string(role), adminID)
}

// IssueRefreshToken signs a refresh token for subject. It carries no role.
func (s *TokenService) IssueRefreshToken(subject string) (string, error) {
	return s.issue(subject, TokenTypeRefresh, s.refreshTTL, "", 0)
}

func (s *TokenService) issue(subject string, typ TokenType, ttl time.Duration, role string, adminID int64) (string, error) {
	now := s.now()
	claims := Claims{
		Role:    role,
		AdminID: adminID,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", typ, err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of token and returns its claims.
// Expired tokens yield ErrTokenExpired; everything else ErrInvalidToken.
func (s *TokenService) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := s.parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ExtractSubject returns the sub claim of a valid token.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractRole returns the role claim of a valid token; empty for refresh
// tokens.
func (s *TokenService) ExtractRole(token string) (string, error) {
	claims, err := s.Parse(token)
	if err != nil {
		return "", err
	}
	return claims.Role, nil
}

// Verify reports whether token is authentic, unexpired, and issued to
// expectedSubject.
func (s *TokenService) Verify(token, expectedSubject string) bool {
	claims, err := s.Parse(token)
	if err != nil {
		return false
	}
	return claims.Subject == expectedSubject
}

// ExpiresAt reads the exp claim without checking the signature. It is only
// used for revocation bookkeeping; the zero time means unknown.
func (s *TokenService) ExpiresAt(token string) time.Time {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}

// IsExpiringSoon reports whether a valid token expires within window.
func (s *TokenService) IsExpiringSoon(token string, window time.Duration) bool {
	claims, err := s.Parse(token)
	if err != nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(s.now()) < window
}
