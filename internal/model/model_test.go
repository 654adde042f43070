package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestAdminPasswordHashNotInJSON(t *testing.T) {
	admin := Admin{
		ID:           1,
		Email:        "admin@loyalbridge.io",
		PasswordHash: "$2a$10$somebcrypthash",
		Role:         RoleSuperAdmin,
		FirstName:    "Super",
		LastName:     "Admin",
		IsActive:     true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	b, err := json.Marshal(admin)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	if _, ok := m["password_hash"]; ok {
		t.Error("password_hash should NOT appear in JSON output (json:\"-\" tag)")
	}
	if m["role"] != "SUPER_ADMIN" {
		t.Errorf("role = %v, want SUPER_ADMIN", m["role"])
	}
}

func TestAdminInfo(t *testing.T) {
	admin := Admin{
		ID:        7,
		Email:     "finance@loyalbridge.io",
		Role:      RoleFinanceTeam,
		FirstName: "Finance",
		LastName:  "Manager",
		IsActive:  true,
	}

	info := admin.Info()
	if info.FullName != "Finance Manager" {
		t.Errorf("FullName = %q, want %q", info.FullName, "Finance Manager")
	}
	if info.Role != RoleFinanceTeam || info.ID != 7 {
		t.Errorf("unexpected info: %+v", info)
	}
	if admin.Authority() != "ROLE_FINANCE_TEAM" {
		t.Errorf("Authority = %q", admin.Authority())
	}

	noLast := Admin{FirstName: "Solo"}
	if got := noLast.FullName(); got != "Solo" {
		t.Errorf("FullName = %q, want %q", got, "Solo")
	}
}

func TestParseAdminRole(t *testing.T) {
	tests := []struct {
		in      string
		want    AdminRole
		wantErr bool
	}{
		{"SUPER_ADMIN", RoleSuperAdmin, false},
		{"finance_team", RoleFinanceTeam, false},
		{"ROLE_SUPPORT_STAFF", RoleSupportStaff, false},
		{" partner_admin ", RolePartnerAdmin, false},
		{"OWNER", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseAdminRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAdminRole(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseAdminRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		role     AdminRole
		required []AdminRole
		want     bool
	}{
		{"exact match", RoleSuperAdmin, []AdminRole{RoleSuperAdmin}, true},
		{"one of many", RoleSupportStaff, []AdminRole{RoleFinanceTeam, RoleSupportStaff}, true},
		{"not in set", RolePartnerAdmin, []AdminRole{RoleSuperAdmin, RoleFinanceTeam}, false},
		{"empty set admits valid role", RoleFinanceTeam, nil, true},
		{"unknown role never admitted", AdminRole("GUEST"), nil, false},
		{"unknown role with set", AdminRole("GUEST"), []AdminRole{"GUEST"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasAnyRole(tt.role, tt.required...); got != tt.want {
				t.Errorf("HasAnyRole(%q, %v) = %v, want %v", tt.role, tt.required, got, tt.want)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Admin@LoyalBridge.IO "); got != "admin@loyalbridge.io" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestErrorResponseJSON(t *testing.T) {
	er := ErrorResponse{
		Error: ErrorDetail{
			Code:    401,
			Message: "Invalid credentials",
		},
	}

	b, err := json.Marshal(er)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}

	errObj, ok := m["error"].(map[string]interface{})
	if !ok {
		t.Fatal("expected 'error' key to be an object")
	}
	if errObj["code"] != float64(401) {
		t.Errorf("error.code = %v, want 401", errObj["code"])
	}
	if _, ok := errObj["context"]; ok {
		t.Error("context should be omitted when nil")
	}
}

func TestLoginResponseOmitsTokensWhenChallenged(t *testing.T) {
	info := AdminInfo{ID: 4, Email: "finance@loyalbridge.io", Role: RoleFinanceTeam}
	b, err := json.Marshal(LoginResponse{Requires2FA: true, Message: "OTP sent", Admin: &info})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	for _, k := range []string{"access_token", "refresh_token", "token_type", "expires_in"} {
		if _, ok := m[k]; ok {
			t.Errorf("%s should be omitted on a 2FA challenge", k)
		}
	}
	admin, ok := m["admin"].(map[string]interface{})
	if !ok || admin["email"] != "finance@loyalbridge.io" {
		t.Errorf("admin = %v, want the challenged admin", m["admin"])
	}
	if _, ok := admin["password_hash"]; ok {
		t.Error("admin info must not carry the password hash")
	}
	if m["requires_2fa"] != true {
		t.Errorf("requires_2fa = %v, want true", m["requires_2fa"])
	}
}
