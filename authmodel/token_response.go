package authmodel

import "strings"

// TokenResponse is the JSON body returned by RouteToken and, optionally, RouteVerifyOTP.
type TokenResponse struct {
	// AccessToken is the opaque credential. Absent when verification does not start a session.
	AccessToken *string `json:"access_token,omitempty"`

	// TokenType is "bearer" for the FastAPI backend. Informational only.
	TokenType string `json:"token_type,omitempty"`
}

// Token returns the access token when present and non-blank.
func (t TokenResponse) Token() (string, bool) {
	if t.AccessToken == nil || strings.TrimSpace(*t.AccessToken) == "" {
		return "", false
	}
	return *t.AccessToken, true
}
