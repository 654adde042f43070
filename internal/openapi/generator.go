package openapi

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/loyalbridge/admin/internal/model"
)

const errorRef = "#/components/schemas/ErrorResponse"

// GenerateAuthSpec builds the OpenAPI 3.1 document for the admin auth and
// administrator management API.
func GenerateAuthSpec(baseURL string) *openapi3.T {
	doc := &openapi3.T{
		OpenAPI: "3.1.0",
		Info: &openapi3.Info{
			Title:       "LoyalBridge Admin API",
			Description: "Administrator authentication (password, optional OTP second factor, JWT access/refresh tokens) and account management.",
			Version:     "1.0.0",
		},
		Servers: openapi3.Servers{
			{URL: baseURL},
		},
		Tags: openapi3.Tags{
			{Name: "auth", Description: "Login, second factor, token refresh and logout"},
			{Name: "admins", Description: "Administrator management (SUPER_ADMIN only)"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = openapi3.Schemas{}
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc.Components = &components

	doc.Components.SecuritySchemes["bearerAuth"] = &openapi3.SecuritySchemeRef{
		Value: &openapi3.SecurityScheme{
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}

	addComponentSchemas(doc)

	doc.Paths = openapi3.NewPaths()
	addAuthPaths(doc)
	addAdminPaths(doc)
	return doc
}

func addComponentSchemas(doc *openapi3.T) {
	s := doc.Components.Schemas

	s["ErrorResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"error": objectSchema(map[string]*openapi3.SchemaRef{
			"code":    intSchema("HTTP status code."),
			"message": stringSchema("Human readable message."),
			"context": {Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}},
		}, "code", "message"),
	}, "error")

	roles := make([]interface{}, 0, len(model.AllRoles()))
	for _, r := range model.AllRoles() {
		roles = append(roles, string(r))
	}
	s["AdminRole"] = &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type: &openapi3.Types{"string"},
		Enum: roles,
	}}

	s["Admin"] = objectSchema(map[string]*openapi3.SchemaRef{
		"id":            {Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
		"email":         {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "email"}},
		"first_name":    stringSchema(""),
		"last_name":     stringSchema(""),
		"full_name":     stringSchema(""),
		"role":          openapi3.NewSchemaRef("#/components/schemas/AdminRole", nil),
		"is_active":     boolSchema(""),
		"last_login_at": dateTimeSchema(),
		"created_at":    dateTimeSchema(),
	}, "id", "email", "role", "is_active")

	s["LoginRequest"] = objectSchema(map[string]*openapi3.SchemaRef{
		"email":    {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "email"}},
		"password": {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "password"}},
	}, "email", "password")

	s["VerifyTwoFactorRequest"] = objectSchema(map[string]*openapi3.SchemaRef{
		"email": {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "email"}},
		"otp":   {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Pattern: `^\d{6}$`}},
	}, "email", "otp")

	s["RefreshRequest"] = objectSchema(map[string]*openapi3.SchemaRef{
		"refresh_token": stringSchema("Refresh token from a previous login."),
	}, "refresh_token")

	s["LoginResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"access_token":  stringSchema("Absent when requires_2fa is true."),
		"refresh_token": stringSchema("Absent when requires_2fa is true."),
		"token_type":    stringSchema("Always Bearer."),
		"expires_in":    intSchema("Access token lifetime in seconds."),
		"admin":         openapi3.NewSchemaRef("#/components/schemas/Admin", nil),
		"requires_2fa":  boolSchema("The client must call /api/auth/verify-2fa next."),
		"message":       stringSchema(""),
	}, "requires_2fa")

	s["TokenResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"access_token": stringSchema(""),
		"token_type":   stringSchema(""),
		"expires_in":   intSchema("Seconds."),
	}, "access_token", "token_type", "expires_in")

	s["MessageResponse"] = objectSchema(map[string]*openapi3.SchemaRef{
		"success": boolSchema(""),
		"message": stringSchema(""),
	})

	s["CreateAdminRequest"] = objectSchema(map[string]*openapi3.SchemaRef{
		"email":      {Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "email"}},
		"password":   stringSchema("At least 12 characters with upper, lower, digit and one of @$!%*?&."),
		"role":       openapi3.NewSchemaRef("#/components/schemas/AdminRole", nil),
		"first_name": stringSchema(""),
		"last_name":  stringSchema(""),
	}, "email", "password", "role", "first_name", "last_name")

	s["AdminList"] = objectSchema(map[string]*openapi3.SchemaRef{
		"resource": {Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: openapi3.NewSchemaRef("#/components/schemas/Admin", nil),
		}},
		"meta": objectSchema(map[string]*openapi3.SchemaRef{
			"count": intSchema("Number of administrators returned."),
		}),
	}, "resource")

	s["StatusRequest"] = objectSchema(map[string]*openapi3.SchemaRef{
		"is_active": boolSchema(""),
	}, "is_active")
}

func addAuthPaths(doc *openapi3.T) {
	doc.AddOperation("/api/auth/login", "POST", &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Log in with email and password",
		Description: "Returns tokens, or requires_2fa=true when the second-factor policy applies. Rate limited per client IP.",
		OperationID: "login",
		RequestBody: jsonBody("#/components/schemas/LoginRequest"),
		Responses:   newResponses("200", "Login result", ref("LoginResponse"), "400", "401", "403", "429"),
		Security:    &openapi3.SecurityRequirements{},
	})
	doc.AddOperation("/api/auth/verify-2fa", "POST", &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Complete login with a one-time code",
		OperationID: "verifyTwoFactor",
		RequestBody: jsonBody("#/components/schemas/VerifyTwoFactorRequest"),
		Responses:   newResponses("200", "Tokens", ref("LoginResponse"), "400", "401", "403", "429"),
		Security:    &openapi3.SecurityRequirements{},
	})
	doc.AddOperation("/api/auth/refresh", "POST", &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Exchange a refresh token for a new access token",
		Description: "The refresh token is not rotated.",
		OperationID: "refresh",
		RequestBody: jsonBody("#/components/schemas/RefreshRequest"),
		Responses:   newResponses("200", "New access token", ref("TokenResponse"), "400", "401", "403"),
		Security:    &openapi3.SecurityRequirements{},
	})
	doc.AddOperation("/api/auth/logout", "POST", &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Revoke the presented bearer token",
		Description: "Always succeeds.",
		OperationID: "logout",
		Responses:   newResponses("200", "Logged out", ref("MessageResponse")),
		Security:    bearer(),
	})
	doc.AddOperation("/api/auth/me", "GET", &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Current administrator",
		OperationID: "currentAdmin",
		Responses:   newResponses("200", "Administrator", ref("Admin"), "401", "404"),
		Security:    bearer(),
	})
	doc.AddOperation("/api/auth/health", "GET", &openapi3.Operation{
		Tags:        []string{"auth"},
		Summary:     "Auth service health",
		OperationID: "authHealth",
		Responses: newResponses("200", "Healthy", objectSchema(map[string]*openapi3.SchemaRef{
			"status": stringSchema(""),
		})),
		Security: &openapi3.SecurityRequirements{},
	})
}

func addAdminPaths(doc *openapi3.T) {
	doc.AddOperation("/api/admins", "GET", &openapi3.Operation{
		Tags:        []string{"admins"},
		Summary:     "List administrators",
		OperationID: "listAdmins",
		Parameters: openapi3.Parameters{
			{Value: &openapi3.Parameter{
				Name:        "role",
				In:          "query",
				Description: "Only return administrators with this role.",
				Schema:      openapi3.NewSchemaRef("#/components/schemas/AdminRole", nil),
			}},
		},
		Responses: newResponses("200", "Administrators", ref("AdminList"), "400", "401", "403"),
		Security:  bearer(),
	})
	doc.AddOperation("/api/admins", "POST", &openapi3.Operation{
		Tags:        []string{"admins"},
		Summary:     "Create an administrator",
		OperationID: "createAdmin",
		RequestBody: jsonBody("#/components/schemas/CreateAdminRequest"),
		Responses:   newResponses("201", "Created", ref("Admin"), "400", "401", "403", "409"),
		Security:    bearer(),
	})
	doc.AddOperation("/api/admins/{id}/status", "PATCH", &openapi3.Operation{
		Tags:        []string{"admins"},
		Summary:     "Enable or disable an administrator",
		OperationID: "setAdminStatus",
		Parameters: openapi3.Parameters{
			{Value: &openapi3.Parameter{
				Name:     "id",
				In:       "path",
				Required: true,
				Schema:   &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}},
			}},
		},
		RequestBody: jsonBody("#/components/schemas/StatusRequest"),
		Responses:   newResponses("200", "Updated", ref("Admin"), "400", "401", "403", "404"),
		Security:    bearer(),
	})
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"403": "Forbidden",
	"404": "Not found",
	"409": "Conflict",
	"429": "Too many requests",
	"500": "Internal server error",
}

// newResponses builds a success response plus the listed error responses.
// 500 is always included.
func newResponses(statusCode, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	responses := openapi3.NewResponses()
	// NewResponses seeds a "default" entry we don't document.
	responses.Delete("default")

	successDesc := description
	responses.Set(statusCode, &openapi3.ResponseRef{
		Value: &openapi3.Response{
			Description: &successDesc,
			Content:     openapi3.NewContentWithJSONSchemaRef(schema),
		},
	})

	codes := append([]string{"500"}, errorCodes...)
	sort.Strings(codes)
	for _, code := range codes {
		desc := errorDescriptions[code]
		responses.Set(code, &openapi3.ResponseRef{
			Value: &openapi3.Response{
				Description: &desc,
				Content:     openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(errorRef, nil)),
			},
		})
	}
	return responses
}

func jsonBody(schemaRef string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: &openapi3.RequestBody{
			Required: true,
			Content:  openapi3.NewContentWithJSONSchemaRef(openapi3.NewSchemaRef(schemaRef, nil)),
		},
	}
}

func bearer() *openapi3.SecurityRequirements {
	return &openapi3.SecurityRequirements{{"bearerAuth": {}}}
}

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func objectSchema(props map[string]*openapi3.SchemaRef, required ...string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: openapi3.Schemas(props),
		Required:   required,
	}}
}

func stringSchema(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Description: desc}}
}

func intSchema(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64", Description: desc}}
}

func boolSchema(desc string) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}, Description: desc}}
}

func dateTimeSchema() *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"}}
}
