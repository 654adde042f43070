package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/loyalbridge/admin/internal/config"
	"github.com/loyalbridge/admin/internal/model"
	"github.com/loyalbridge/admin/internal/service"
)

// AdminDirectory is the credential store as seen by administrator
// management.
type AdminDirectory interface {
	CreateAdmin(ctx context.Context, admin *model.Admin) error
	GetAdmin(ctx context.Context, id int64) (*model.Admin, error)
	ListAdmins(ctx context.Context) ([]model.Admin, error)
	ListAdminsByRole(ctx context.Context, role model.AdminRole) ([]model.Admin, error)
	SetAdminActive(ctx context.Context, id int64, active bool) error
}

// AdminHandler manages administrator accounts. Routes are mounted behind
// RequireRole(SUPER_ADMIN).
type AdminHandler struct {
	store  AdminDirectory
	hasher service.PasswordHasher
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(store AdminDirectory, hasher service.PasswordHasher, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{store: store, hasher: hasher, logger: logger}
}

// ListAdmins returns all admin accounts, optionally filtered by ?role=.
// GET /api/admins
func (h *AdminHandler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	var (
		admins []model.Admin
		err    error
	)
	if raw := r.URL.Query().Get("role"); raw != "" {
		role, perr := model.ParseAdminRole(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr.Error())
			return
		}
		admins, err = h.store.ListAdminsByRole(r.Context(), role)
	} else {
		admins, err = h.store.ListAdmins(r.Context())
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list admins failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list admins")
		return
	}

	resources := make([]model.AdminInfo, 0, len(admins))
	for i := range admins {
		resources = append(resources, admins[i].Info())
	}
	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: resources,
		Meta:     &model.ResponseMeta{Count: len(resources)},
	})
}

type createAdminRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// CreateAdmin provisions a new administrator.
// POST /api/admins
func (h *AdminHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var body createAdminRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	email := model.NormalizeEmail(body.Email)
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}
	role, err := model.ParseAdminRole(body.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(body.FirstName) == "" || strings.TrimSpace(body.LastName) == "" {
		writeError(w, http.StatusBadRequest, "first_name and last_name are required")
		return
	}
	if err := service.ValidatePasswordStrength(body.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := h.hasher.Hash(body.Password)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "hash password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}
	admin := &model.Admin{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    strings.TrimSpace(body.FirstName),
		LastName:     strings.TrimSpace(body.LastName),
		IsActive:     true,
	}
	if err := h.store.CreateAdmin(r.Context(), admin); err != nil {
		if errors.Is(err, config.ErrDuplicate) {
			writeError(w, http.StatusConflict, "an admin with this email already exists")
			return
		}
		h.logger.ErrorContext(r.Context(), "create admin failed", "email", email, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create admin")
		return
	}

	actor := service.PrincipalFromContext(r.Context())
	if actor != nil {
		h.logger.InfoContext(r.Context(), "admin created", "email", admin.Email, "role", admin.Role, "by", actor.Email)
	}
	writeJSON(w, http.StatusCreated, admin.Info())
}

type statusRequest struct {
	IsActive *bool `json:"is_active"`
}

// SetStatus enables or disables an administrator. Accounts are never
// deleted; disabling also invalidates their outstanding tokens at the gate.
// PATCH /api/admins/{id}/status
func (h *AdminHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt64(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid admin id")
		return
	}
	var body statusRequest
	if err := readJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.IsActive == nil {
		writeError(w, http.StatusBadRequest, "is_active is required")
		return
	}
	if actor := service.PrincipalFromContext(r.Context()); actor != nil && actor.AdminID == id && !*body.IsActive {
		writeError(w, http.StatusBadRequest, "you cannot disable your own account")
		return
	}

	if err := h.store.SetAdminActive(r.Context(), id, *body.IsActive); err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "admin not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "set admin status failed", "admin_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update admin")
		return
	}
	admin, err := h.store.GetAdmin(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load admin")
		return
	}
	h.logger.InfoContext(r.Context(), "admin status changed", "admin_id", id, "is_active", admin.IsActive)
	writeJSON(w, http.StatusOK, admin.Info())
}
