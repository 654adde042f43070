package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/loyalbridge/admin/internal/model"
)

func newTestTokens(t *testing.T, clock *testClock) *TokenService {
	t.Helper()
	ts, err := NewTokenService(TokenConfig{
		Secret:     testJWTSecret,
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
		Now:        clock.Now,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func TestNewTokenServiceRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenService(TokenConfig{Secret: "short"}); err == nil {
		t.Fatal("expected error for short secret")
	}
	if _, err := NewTokenService(TokenConfig{Secret: testJWTSecret, AccessTTL: -time.Second}); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestAccessTokenClaims(t *testing.T) {
	clock := newTestClock()
	ts := newTestTokens(t, clock)

	tok, err := ts.IssueAccessToken("finance@loyalbridge.io", model.RoleFinanceTeam, 42)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	claims, err := ts.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "finance@loyalbridge.io" || claims.Role != "FINANCE_TEAM" || claims.AdminID != 42 {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.Type != TokenTypeAccess {
		t.Errorf("typ = %q", claims.Type)
	}
	if claims.Issuer != DefaultIssuer {
		t.Errorf("iss = %q", claims.Issuer)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 30*time.Minute {
		t.Errorf("lifetime = %v", got)
	}
	if !ts.Verify(tok, "finance@loyalbridge.io") {
		t.Error("Verify should accept the matching subject")
	}
	if ts.Verify(tok, "admin@loyalbridge.io") {
		t.Error("Verify should reject another subject")
	}
}

func TestRefreshTokenHasNoRole(t *testing.T) {
	ts := newTestTokens(t, newTestClock())

	tok, err := ts.IssueRefreshToken("admin@loyalbridge.io")
	if err != nil {
		t.Fatal(err)
	}
	role, err := ts.ExtractRole(tok)
	if err != nil {
		t.Fatal(err)
	}
	if role != "" {
		t.Errorf("refresh token role = %q, want empty", role)
	}
	claims, _ := ts.Parse(tok)
	if claims.Type != TokenTypeRefresh {
		t.Errorf("typ = %q", claims.Type)
	}
	if got := claims.ExpiresAt.Time.Sub(claims.IssuedAt.Time); got != 7*24*time.Hour {
		t.Errorf("lifetime = %v", got)
	}
}

func TestTokensAreUnique(t *testing.T) {
	ts := newTestTokens(t, newTestClock())
	a, _ := ts.IssueAccessToken("admin@loyalbridge.io", model.RoleSuperAdmin, 1)
	b, _ := ts.IssueAccessToken("admin@loyalbridge.io", model.RoleSuperAdmin, 1)
	if a == b {
		t.Error("tokens issued in the same instant must differ")
	}
}

func TestParseExpired(t *testing.T) {
	clock := newTestClock()
	ts := newTestTokens(t, clock)
	tok, _ := ts.IssueAccessToken("admin@loyalbridge.io", model.RoleSuperAdmin, 1)

	clock.Advance(29 * time.Minute)
	if _, err := ts.Parse(tok); err != nil {
		t.Fatalf("token should still be valid: %v", err)
	}
	if !ts.IsExpiringSoon(tok, 5*time.Minute) {
		t.Error("expected token to be expiring soon")
	}

	clock.Advance(2 * time.Minute)
	if _, err := ts.Parse(tok); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	if ts.Verify(tok, "admin@loyalbridge.io") {
		t.Error("Verify must reject an expired token")
	}
}

func TestParseRejectsTampering(t *testing.T) {
	ts := newTestTokens(t, newTestClock())
	tok, _ := ts.IssueAccessToken("support@loyalbridge.io", model.RoleSupportStaff, 3)

	other, err := NewTokenService(TokenConfig{Secret: strings.Repeat("x", 40), AccessTTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: expected ErrInvalidToken, got %v", err)
	}

	parts := strings.Split(tok, ".")
	parts[2] = strings.Repeat("A", len(parts[2]))
	if _, err := ts.Parse(strings.Join(parts, ".")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("bad signature: expected ErrInvalidToken, got %v", err)
	}

	for _, junk := range []string{"", "abc", "a.b.c"} {
		if _, err := ts.Parse(junk); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Parse(%q): expected ErrInvalidToken, got %v", junk, err)
		}
	}
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	ts := newTestTokens(t, newTestClock())
	claims := Claims{
		Role: "SUPER_ADMIN",
		Type: TokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin@loyalbridge.io",
			Issuer:    DefaultIssuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ts.Parse(tok); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for alg=none, got %v", err)
	}
}

func TestExpiresAt(t *testing.T) {
	clock := newTestClock()
	ts := newTestTokens(t, clock)
	tok, _ := ts.IssueRefreshToken("admin@loyalbridge.io")

	want := clock.Now().Add(7 * 24 * time.Hour)
	if got := ts.ExpiresAt(tok); !got.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got, want)
	}
	if got := ts.ExpiresAt("not-a-token"); !got.IsZero() {
		t.Errorf("ExpiresAt(garbage) = %v, want zero", got)
	}
}
