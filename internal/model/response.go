package model

// ListResponse is the envelope for list endpoints, wrapping results in a
// "resource" array.
type ListResponse struct {
	Resource []AdminInfo   `json:"resource"`
	Meta     *ResponseMeta `json:"meta,omitempty"`
}

// ResponseMeta carries the result count for list responses.
type ResponseMeta struct {
	Count int `json:"count"`
}

// ErrorResponse is the standard envelope for error responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned by the API.
type ErrorDetail struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// MessageResponse is returned by endpoints that only report an outcome.
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LoginResponse is returned by login and two-factor verification. When
// Requires2FA is set the token fields are empty and the client must call
// verify-2fa with the code delivered out of band.
type LoginResponse struct {
	AccessToken  string     `json:"access_token,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"` // seconds
	Admin        *AdminInfo `json:"admin,omitempty"`
	Requires2FA  bool       `json:"requires_2fa"`
	Message      string     `json:"message,omitempty"`
}

// TokenResponse is returned by the refresh endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}
