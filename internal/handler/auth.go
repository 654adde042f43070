package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/service"
)

var otpPattern = regexp.MustCompile(`^\d{6}$`)

// AuthHandler serves the /api/auth endpoints.
type AuthHandler struct {
	auth        *service.AuthService
	logger      *slog.Logger
	emailSuffix string
}

// NewAuthHandler creates an AuthHandler. Login emails must belong to
// emailDomain (e.g. "loyalbridge.io"); an empty domain accepts any address.
func NewAuthHandler(auth *service.AuthService, emailDomain string, logger *slog.Logger) *AuthHandler {
	suffix := ""
	if d := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(emailDomain)), "@"); d != "" {
		suffix = "@" + d
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, logger: logger, emailSuffix: suffix}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	// Older clients send camelCase.
	RefreshTokenCamel string `json:"refreshToken"`
}

func (r refreshRequest) token() string {
	if r.RefreshToken != "" {
		return r.RefreshToken
	}
	return r.RefreshTokenCamel
}

// validEmail checks shape and domain only.
func (h *AuthHandler) validEmail(email string) bool {
	email = model.NormalizeEmail(email)
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	return h.emailSuffix == "" || strings.HasSuffix(email, h.emailSuffix)
}

// Login checks credentials and either issues tokens or starts an OTP
// challenge.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if !h.validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "email must be a valid"+h.domainHint()+" address")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

// VerifyTwoFactor completes a challenged login.
// POST /api/auth/verify-2fa
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !h.validEmail(req.Email) {
		writeError(w, http.StatusBadRequest, "email must be a valid"+h.domainHint()+" address")
		return
	}
	if !otpPattern.MatchString(req.OTP) {
		writeError(w, http.StatusBadRequest, "otp must be exactly 6 digits")
		return
	}

	res, err := h.auth.VerifyTwoFactor(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse(res))
}

// Refresh exchanges a refresh token for a new access token.
// POST /api/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := strings.TrimSpace(req.token())
	if token == "" {
		writeError(w, http.StatusBadRequest, "refresh_token is required")
		return
	}

	res, err := h.auth.Refresh(r.Context(), token)
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.TokenResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(res.ExpiresIn.Seconds()),
	})
}

// Logout blacklists the presented bearer token and drops the request
// identity. It always succeeds.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	r = r.WithContext(h.auth.Logout(r.Context(), r.Header.Get("Authorization")))
	h.logger.DebugContext(r.Context(), "logout complete", "authenticated", service.PrincipalFromContext(r.Context()) != nil)
	writeJSON(w, http.StatusOK, model.MessageResponse{Success: true, Message: "Logged out successfully"})
}

// Me returns the authenticated administrator.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, err := h.auth.CurrentAdmin(r.Context())
	if err != nil {
		h.writeAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, admin.Info())
}

// Health is the unauthenticated auth-service probe.
// GET /api/auth/health
func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "auth"})
}

func (h *AuthHandler) domainHint() string {
	if h.emailSuffix == "" {
		return ""
	}
	return " " + h.emailSuffix
}

func loginResponse(res *service.LoginResult) model.LoginResponse {
	out := model.LoginResponse{
		Requires2FA: res.Requires2FA,
		Message:     res.Message,
	}
	if res.Admin != nil {
		info := res.Admin.Info()
		out.Admin = &info
	}
	if res.Requires2FA {
		return out
	}
	out.AccessToken = res.AccessToken
	out.RefreshToken = res.RefreshToken
	out.TokenType = "Bearer"
	out.ExpiresIn = int64(res.ExpiresIn.Seconds())
	return out
}

// authStatus maps service errors to HTTP statuses.
func authStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOrExpiredOTP),
		errors.Is(err, service.ErrTokenBlacklisted),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenExpired),
		errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrAccountInactive):
		return http.StatusForbidden
	case errors.Is(err, service.ErrAdminNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *AuthHandler) writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	status := authStatus(err)
	if status == http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "auth request failed", "path", r.URL.Path, "error", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}
