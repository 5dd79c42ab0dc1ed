package fakebackend

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "go-auth-client/fakebackend"

// TokenIssuer mints and checks HS256 access tokens.
type TokenIssuer struct {
	key     []byte
	ttl     time.Duration
	nowTime func() time.Time
}

func NewTokenIssuer(key []byte, ttl time.Duration, nowTime func() time.Time) (*TokenIssuer, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("[NewTokenIssuer] signing key is required")
	}
	if nowTime == nil {
		nowTime = time.Now
	}
	return &TokenIssuer{key: key, ttl: ttl, nowTime: nowTime}, nil
}

// Issue returns a signed access token for the account id.
func (ti *TokenIssuer) Issue(subject, email string) (string, error) {
	now := ti.nowTime()
	claims := jwtlib.MapClaims{
		"iss":   issuer,
		"sub":   subject,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(ti.ttl).Unix(),
		"jti":   uuid.New().String(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(ti.key)
	if err != nil {
		return "", fmt.Errorf("[TokenIssuer.Issue] sign: %w", err)
	}
	return signed, nil
}

// Subject validates token and returns its subject.
func (ti *TokenIssuer) Subject(token string) (string, error) {
	parsed, err := jwtlib.Parse(token, func(t *jwtlib.Token) (any, error) {
		return ti.key, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(issuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(ti.nowTime),
	)
	if err != nil {
		return "", fmt.Errorf("[TokenIssuer.Subject] %w", err)
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("[TokenIssuer.Subject] token has no subject")
	}
	return sub, nil
}
