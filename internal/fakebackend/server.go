// Package fakebackend is an in-process stand-in for the account backend. It serves the
// token, registration, verification and profile routes the client depends on, with
// in-memory accounts and signed JWT access tokens.
package fakebackend

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultTokenTTL = 30 * time.Minute

// Server implements http.Handler.
type Server struct {
	router   *mux.Router
	accounts users.AccountRepo
	tokens   *TokenIssuer
	logger   zerolog.Logger
	colour   bool

	signingKey    []byte
	tokenTTL      time.Duration
	nowTime       func() time.Time
	newOTP        func() (string, error)
	tokenlessOTP  bool
	requireVerify bool
	onOTP         func(email, otp string)
}

type Option func(*Server)

// WithSigningKey sets the HS256 key. A random key is generated otherwise.
func WithSigningKey(key []byte) Option {
	return func(s *Server) {
		s.signingKey = key
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

// WithOTPGenerator replaces the random six digit code generator.
func WithOTPGenerator(gen func() (string, error)) Option {
	return func(s *Server) {
		s.newOTP = gen
	}
}

// WithTokenlessVerification makes verify-otp confirm the account without issuing a token.
func WithTokenlessVerification(enabled bool) Option {
	return func(s *Server) {
		s.tokenlessOTP = enabled
	}
}

// WithVerificationRequired rejects password logins for unverified accounts.
func WithVerificationRequired(required bool) Option {
	return func(s *Server) {
		s.requireVerify = required
	}
}

// WithOTPHook is called with every code issued, in place of sending an email.
func WithOTPHook(hook func(email, otp string)) Option {
	return func(s *Server) {
		s.onOTP = hook
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithColourLogs colours the method in request logs, for terminals.
func WithColourLogs(enabled bool) Option {
	return func(s *Server) {
		s.colour = enabled
	}
}

func New(accounts users.AccountRepo, options ...Option) (*Server, error) {
	if accounts == nil {
		return nil, fmt.Errorf("[fakebackend.New] account repo is required")
	}
	s := &Server{
		router:        mux.NewRouter(),
		accounts:      accounts,
		logger:        log.Logger,
		tokenTTL:      defaultTokenTTL,
		nowTime:       time.Now,
		newOTP:        randomOTP,
		requireVerify: true,
	}
	for _, opt := range options {
		opt(s)
	}

	if len(s.signingKey) == 0 {
		s.signingKey = make([]byte, 32)
		if _, err := rand.Read(s.signingKey); err != nil {
			return nil, fmt.Errorf("[fakebackend.New] generate signing key: %w", err)
		}
	}
	tokens, err := NewTokenIssuer(s.signingKey, s.tokenTTL, s.nowTime)
	if err != nil {
		return nil, fmt.Errorf("[fakebackend.New] %w", err)
	}
	s.tokens = tokens

	s.initRoutes()
	return s, nil
}

func (s *Server) initRoutes() {
	s.router.Use(s.recoverMiddleware, s.loggingMiddleware)
	s.router.HandleFunc(authmodel.RouteToken, s.tokenHandler).Methods(http.MethodPost)
	s.router.HandleFunc(authmodel.RouteUsers, s.signupHandler).Methods(http.MethodPost)
	s.router.HandleFunc(authmodel.RouteVerifyOTP, s.verifyOTPHandler).Methods(http.MethodPost)
	s.router.HandleFunc(authmodel.RouteResendOTP, s.resendOTPHandler).Methods(http.MethodPost)
	s.router.HandleFunc(authmodel.RouteMe, s.meHandler).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Tokens exposes the issuer, e.g. to mint credentials in tests.
func (s *Server) Tokens() *TokenIssuer {
	return s.tokens
}

// PendingOTP returns the outstanding code for email.
func (s *Server) PendingOTP(email string) (string, bool) {
	account, err := s.accounts.GetByEmail(email)
	if err != nil || account.PendingOTP == "" {
		return "", false
	}
	return account.PendingOTP, true
}

func randomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
