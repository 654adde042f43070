package openapi

import (
	"encoding/json"
	"testing"
)

func TestGenerateAuthSpec_Info(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080")

	if doc.OpenAPI != "3.1.0" {
		t.Errorf("OpenAPI version = %q, want %q", doc.OpenAPI, "3.1.0")
	}
	if doc.Info == nil || doc.Info.Title != "LoyalBridge Admin API" {
		t.Fatalf("unexpected Info: %+v", doc.Info)
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://localhost:8080" {
		t.Errorf("Servers not set correctly")
	}
}

func TestGenerateAuthSpec_BearerScheme(t *testing.T) {
	doc := GenerateAuthSpec("http://localhost:8080")

	bearer, ok := doc.Components.SecuritySchemes["bearerAuth"]
	if !ok {
		t.Fatal("bearerAuth security scheme not found")
	}
	if bearer.Value.Type != "http" || bearer.Value.Scheme != "bearer" || bearer.Value.BearerFormat != "JWT" {
		t.Errorf("unexpected bearer scheme: %+v", bearer.Value)
	}
}

func TestGenerateAuthSpec_Paths(t *testing.T) {
	doc := GenerateAuthSpec("")

	tests := []struct {
		path, method string
		secured      bool
	}{
		{"/api/auth/login", "POST", false},
		{"/api/auth/verify-2fa", "POST", false},
		{"/api/auth/refresh", "POST", false},
		{"/api/auth/logout", "POST", true},
		{"/api/auth/me", "GET", true},
		{"/api/auth/health", "GET", false},
		{"/api/admins", "GET", true},
		{"/api/admins", "POST", true},
		{"/api/admins/{id}/status", "PATCH", true},
	}
	for _, tt := range tests {
		item := doc.Paths.Value(tt.path)
		if item == nil {
			t.Errorf("path %s missing", tt.path)
			continue
		}
		op := item.GetOperation(tt.method)
		if op == nil {
			t.Errorf("%s %s missing", tt.method, tt.path)
			continue
		}
		if op.Security == nil {
			t.Errorf("%s %s: security not declared", tt.method, tt.path)
			continue
		}
		if got := len(*op.Security) > 0; got != tt.secured {
			t.Errorf("%s %s: secured = %v, want %v", tt.method, tt.path, got, tt.secured)
		}
		if op.Responses.Value("500") == nil {
			t.Errorf("%s %s: missing 500 response", tt.method, tt.path)
		}
	}
}

func TestGenerateAuthSpec_LoginErrorResponses(t *testing.T) {
	doc := GenerateAuthSpec("")
	op := doc.Paths.Value("/api/auth/login").Post

	for _, code := range []string{"200", "400", "401", "403", "429"} {
		if op.Responses.Value(code) == nil {
			t.Errorf("login missing %s response", code)
		}
	}
	if op.Responses.Value("default") != nil {
		t.Error("undocumented default response should be removed")
	}
}

func TestGenerateAuthSpec_RoleEnum(t *testing.T) {
	doc := GenerateAuthSpec("")

	role := doc.Components.Schemas["AdminRole"]
	if role == nil {
		t.Fatal("AdminRole schema missing")
	}
	want := map[string]bool{"SUPER_ADMIN": true, "FINANCE_TEAM": true, "SUPPORT_STAFF": true, "PARTNER_ADMIN": true}
	if len(role.Value.Enum) != len(want) {
		t.Fatalf("enum = %v", role.Value.Enum)
	}
	for _, v := range role.Value.Enum {
		if !want[v.(string)] {
			t.Errorf("unexpected role %v", v)
		}
	}
}

func TestGenerateAuthSpec_ErrorResponseSchema(t *testing.T) {
	doc := GenerateAuthSpec("")

	errSchema := doc.Components.Schemas["ErrorResponse"]
	if errSchema == nil {
		t.Fatal("ErrorResponse schema missing")
	}
	inner := errSchema.Value.Properties["error"]
	if inner == nil {
		t.Fatal("error property missing")
	}
	for _, field := range []string{"code", "message"} {
		if inner.Value.Properties[field] == nil {
			t.Errorf("error.%s missing", field)
		}
	}
}

func TestGenerateAuthSpec_MarshalsToJSON(t *testing.T) {
	data, err := json.Marshal(GenerateAuthSpec("http://localhost:8080"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["paths"].(map[string]interface{})["/api/auth/login"]; !ok {
		t.Error("marshalled document lacks /api/auth/login")
	}
}
