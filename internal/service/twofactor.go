package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loyalbridge/admin/internal/model"
)

// TwoFactorPolicy decides whether a login must pass an OTP challenge.
type TwoFactorPolicy interface {
	Requires(admin *model.Admin) bool
}

// TwoFactorPolicyFunc adapts a function to TwoFactorPolicy.
type TwoFactorPolicyFunc func(admin *model.Admin) bool

// Requires calls f(admin).
func (f TwoFactorPolicyFunc) Requires(admin *model.Admin) bool { return f(admin) }

// NeverRequireTwoFactor disables the OTP step.
func NeverRequireTwoFactor() TwoFactorPolicy {
	return TwoFactorPolicyFunc(func(*model.Admin) bool { return false })
}

// AlwaysRequireTwoFactor challenges every login.
func AlwaysRequireTwoFactor() TwoFactorPolicy {
	return TwoFactorPolicyFunc(func(*model.Admin) bool { return true })
}

// RequireTwoFactorForRoles challenges logins by admins holding one of roles.
func RequireTwoFactorForRoles(roles ...model.AdminRole) TwoFactorPolicy {
	set := append([]model.AdminRole(nil), roles...)
	return TwoFactorPolicyFunc(func(a *model.Admin) bool {
		return len(set) > 0 && model.HasAnyRole(a.Role, set...)
	})
}

// NewTwoFactorPolicy builds a policy from configuration. mode is one of
// "off", "always" or "roles".
func NewTwoFactorPolicy(mode string, roles []string) (TwoFactorPolicy, error) {
	switch mode {
	case "", "off":
		return NeverRequireTwoFactor(), nil
	case "always":
		return AlwaysRequireTwoFactor(), nil
	case "roles":
		parsed := make([]model.AdminRole, 0, len(roles))
		for _, r := range roles {
			role, err := model.ParseAdminRole(r)
			if err != nil {
				return nil, err
			}
			parsed = append(parsed, role)
		}
		return RequireTwoFactorForRoles(parsed...), nil
	default:
		return nil, fmt.Errorf("unknown two-factor mode %q", mode)
	}
}

// OTPNotifier delivers a freshly issued OTP to the admin out of band.
type OTPNotifier interface {
	DeliverOTP(ctx context.Context, admin *model.Admin, code string) error
}

// LogNotifier records that a challenge was issued. It never logs the code;
// it stands in until a mail or SMS channel is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

// DeliverOTP implements OTPNotifier.
func (n LogNotifier) DeliverOTP(ctx context.Context, admin *model.Admin, _ string) error {
	if n.Logger != nil {
		n.Logger.InfoContext(ctx, "otp challenge issued", "email", admin.Email)
	}
	return nil
}
