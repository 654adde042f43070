package service

import "errors"

// Authentication failures. Handlers map these to HTTP statuses with
// errors.Is; messages are safe to return to clients.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrInvalidOrExpiredOTP = errors.New("invalid or expired OTP")
	ErrTokenBlacklisted    = errors.New("token has been revoked")
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrAdminNotFound       = errors.New("admin not found")
)
