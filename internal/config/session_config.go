package config

import (
	"strconv"
	"strings"

	"github.com/jrsteele09/go-auth-client/internal/utils"
)

// TokenlessVerification decides what a verify-otp response without an access token means.
type TokenlessVerification string

const (
	// TokenlessFailure treats a verification response without a token as a failed verification.
	TokenlessFailure TokenlessVerification = "failure"
	// TokenlessConfirmsAccount treats it as "account verified, log in separately".
	TokenlessConfirmsAccount TokenlessVerification = "confirms_account"
)

const (
	tokenlessVerificationVar = "TOKENLESS_VERIFICATION"
	expiryPrecheckVar        = "TOKEN_EXPIRY_PRECHECK"
)

type SessionConfig interface {
	GetTokenlessVerification() TokenlessVerification
	GetExpiryPrecheck() bool
}

type Session struct {
	file *File
}

var _ SessionConfig = Session{}

func (s Session) GetTokenlessVerification() TokenlessVerification {
	raw := strings.ToLower(GetEnv(tokenlessVerificationVar, utils.FirstNonEmpty(s.file.Session.TokenlessVerification, string(TokenlessFailure))))
	if TokenlessVerification(raw) == TokenlessConfirmsAccount {
		return TokenlessConfirmsAccount
	}
	return TokenlessFailure
}

// GetExpiryPrecheck reports whether bootstrap may reject an expired JWT credential without a
// network probe. Off unless enabled.
func (s Session) GetExpiryPrecheck() bool {
	if raw := GetEnv(expiryPrecheckVar, ""); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	if s.file.Session.ExpiryPrecheck != nil {
		return utils.Value(s.file.Session.ExpiryPrecheck)
	}
	return false
}
