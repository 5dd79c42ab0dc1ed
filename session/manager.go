// Package session owns the client's authenticated session: it resolves the persisted
// credential at startup, signs in and out, and publishes every committed state change.
package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/authmodel"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/gateway"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Gateway is the part of *gateway.Client the manager uses.
type Gateway interface {
	Get(ctx context.Context, path string, opts ...gateway.RequestOption) (*gateway.Response, error)
	Post(ctx context.Context, path string, body any, opts ...gateway.RequestOption) (*gateway.Response, error)
	SetCredential(token string)
	ClearCredential()
	URL(path string) string
	HTTPClient() *http.Client
}

// CredentialStore is the part of *credentials.Store the manager uses.
type CredentialStore interface {
	Save(ctx context.Context, token string) error
	Load(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

// Deps holds the collaborators the manager cannot work without.
type Deps struct {
	Gateway     Gateway
	Credentials CredentialStore
}

// TokenlessPolicy decides what a verification response without an access token means.
type TokenlessPolicy int

const (
	// TokenlessIsFailure reports the verification as failed.
	TokenlessIsFailure TokenlessPolicy = iota
	// TokenlessConfirmsAccount reports success; the user signs in separately.
	TokenlessConfirmsAccount
)

// VerifyOutcome is the detailed result of a verification attempt.
type VerifyOutcome int

const (
	OutcomeFailed VerifyOutcome = iota
	OutcomeAuthenticated
	// OutcomeVerifiedNoSession means the backend accepted the code without issuing a credential.
	OutcomeVerifiedNoSession
)

func (o VerifyOutcome) String() string {
	switch o {
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeVerifiedNoSession:
		return "verified_no_session"
	}
	return "failed"
}

// DefaultStorageTimeout bounds credential store writes made under the state lock.
const DefaultStorageTimeout = 5 * time.Second

// Manager is the session state machine. It is safe for concurrent use; every state
// transition is committed under one mutex and stale operation results are discarded.
type Manager struct {
	gateway     Gateway
	credentials CredentialStore

	logger         zerolog.Logger
	tokenEndpoint  string
	tokenless      TokenlessPolicy
	expiryPrecheck bool
	storageTimeout time.Duration
	nowTime        func() time.Time

	resolved chan struct{}

	mu          sync.Mutex
	state       State
	issued      uint64 // last operation number handed out
	applied     uint64 // operation number of the last applied transition
	subscribers []*Subscription
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithTokenEndpoint overrides the password grant path, authmodel.RouteToken by default.
func WithTokenEndpoint(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.tokenEndpoint = path
		}
	}
}

func WithTokenlessVerification(policy TokenlessPolicy) Option {
	return func(m *Manager) {
		m.tokenless = policy
	}
}

// WithExpiryPrecheck lets bootstrap reject a JWT credential whose exp has passed without
// probing the backend. Opaque credentials are always probed.
func WithExpiryPrecheck(enabled bool) Option {
	return func(m *Manager) {
		m.expiryPrecheck = enabled
	}
}

// WithStorageTimeout bounds each credential store write made while the state lock is held.
// State readers wait at most this long behind a slow store. Zero or negative keeps the default.
func WithStorageTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.storageTimeout = timeout
		}
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// New creates the manager and starts bootstrap in the background. The manager starts
// in StatusResolving; Resolved is closed once bootstrap has finished.
func New(deps Deps, options ...Option) (*Manager, error) {
	if deps.Gateway == nil {
		return nil, errors.New("[session.New] Gateway is required")
	}
	if deps.Credentials == nil {
		return nil, errors.New("[session.New] Credentials is required")
	}

	m := &Manager{
		gateway:        deps.Gateway,
		credentials:    deps.Credentials,
		logger:         log.Logger,
		tokenEndpoint:  authmodel.RouteToken,
		tokenless:      TokenlessIsFailure,
		storageTimeout: DefaultStorageTimeout,
		nowTime:        time.Now,
		resolved:       make(chan struct{}),
		state:          Resolving(),
	}
	for _, opt := range options {
		opt(m)
	}

	// taken here so any operation started after New supersedes bootstrap
	op := m.begin()
	go m.bootstrap(context.Background(), op)
	return m, nil
}

// Resolved is closed when bootstrap has finished, whatever its outcome.
func (m *Manager) Resolved() <-chan struct{} {
	return m.resolved
}

// WaitResolved blocks until bootstrap has finished or ctx is done.
func (m *Manager) WaitResolved(ctx context.Context) error {
	select {
	case <-m.resolved:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsAuthenticated() bool {
	return m.State().IsAuthenticated()
}

func (m *Manager) IsLoading() bool {
	return m.State().IsLoading()
}

// User returns the profile of the signed in user, or nil.
func (m *Manager) User() *users.Profile {
	return m.State().User
}

// Credential returns the active credential; ok is false unless authenticated.
func (m *Manager) Credential() (string, bool) {
	st := m.State()
	return st.Credential, st.IsAuthenticated()
}

// TokenlessPolicy reports how a verification response without a credential is treated.
func (m *Manager) TokenlessPolicy() TokenlessPolicy {
	return m.tokenless
}

// Subscribe returns a subscription whose first state is the current one.
func (m *Manager) Subscribe() *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := newSubscription(m, m.state)
	m.subscribers = append(m.subscribers, sub)
	return sub
}

func (m *Manager) unsubscribe(sub *Subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.subscribers {
		if s == sub {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

// bootstrap resolves the persisted credential. It always leaves the manager resolved.
func (m *Manager) bootstrap(ctx context.Context, op uint64) {
	defer close(m.resolved)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().Interface("panic", r).Msg("session bootstrap panicked, treating credential as invalid")
			m.invalidate(ctx, op, true)
		}
	}()

	token, ok, err := m.credentials.Load(ctx)
	if err != nil {
		m.logger.Err(err).Msg("session bootstrap could not read the credential store")
		m.invalidate(ctx, op, true)
		return
	}
	if !ok {
		m.logger.Debug().Msg("session bootstrap found no stored credential")
		m.invalidate(ctx, op, false)
		return
	}

	if m.expiryPrecheck && credentials.Expired(token, m.nowTime()) {
		m.logger.Info().Err(autherrors.ErrCredentialExpired).Msg("session bootstrap rejected stored credential")
		m.invalidate(ctx, op, true)
		return
	}

	profile, err := m.fetchProfile(ctx, token)
	if err != nil {
		m.logger.Info().Err(err).Int("status", gateway.StatusCode(err)).Msg("session bootstrap validation failed")
		m.invalidate(ctx, op, true)
		return
	}

	if err := m.commitAuthenticated(ctx, op, token, profile, false); err != nil {
		m.logger.Info().Err(err).Msg("session bootstrap result discarded")
		return
	}
	m.logger.Info().Msg("session restored from stored credential")
}

// invalidate commits Unauthenticated for op, clearing the stored credential if asked.
func (m *Manager) invalidate(ctx context.Context, op uint64, clearStore bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op <= m.applied {
		m.logger.Debug().Err(autherrors.ErrStaleOperation).Msg("session invalidation discarded")
		return
	}
	if clearStore {
		if err := m.clearStored(ctx); err != nil {
			m.logger.Err(err).Msg("session could not clear the stored credential")
		}
	}
	m.gateway.ClearCredential()
	m.applied = op
	m.setState(Unauthenticated())
}

// Login exchanges identifier and secret for a credential with the OAuth2 password grant
// and signs the user in. It returns false, leaving the state untouched, on any failure.
func (m *Manager) Login(ctx context.Context, identifier, secret string) bool {
	op := m.begin()

	token, err := m.requestToken(ctx, identifier, secret)
	if err != nil {
		m.logger.Info().Err(err).Int("status", retrieveStatus(err)).Msg("login failed")
		return false
	}

	if err := m.signIn(ctx, op, token); err != nil {
		m.logger.Info().Err(err).Msg("login result discarded")
		return false
	}
	m.logger.Info().Msg("login succeeded")
	return true
}

// oauth2MissingTokenMessage mirrors the text of the unexported error x/oauth2 returns for a
// 2xx token response without access_token. TestRequestTokenMissingAccessToken pins it.
const oauth2MissingTokenMessage = "server response missing access_token"

func (m *Manager) requestToken(ctx context.Context, identifier, secret string) (string, error) {
	cfg := &oauth2.Config{
		Endpoint: oauth2.Endpoint{
			TokenURL:  m.gateway.URL(m.tokenEndpoint),
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, m.gateway.HTTPClient())

	tok, err := cfg.PasswordCredentialsToken(ctx, identifier, secret)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			return "", errors.Wrap(err, "[Manager.Login] token request rejected")
		}
		if strings.Contains(err.Error(), oauth2MissingTokenMessage) {
			return "", errors.Wrap(autherrors.ErrMissingAccessToken, "[Manager.Login] token response")
		}
		return "", errors.Wrapf(autherrors.ErrTransport, "[Manager.Login] token request: %v", err)
	}
	if tok.AccessToken == "" {
		return "", errors.Wrap(autherrors.ErrMissingAccessToken, "[Manager.Login]")
	}
	return tok.AccessToken, nil
}

func retrieveStatus(err error) int {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		return re.Response.StatusCode
	}
	return 0
}

// Signup registers an account. It never changes the session state.
func (m *Manager) Signup(ctx context.Context, registration users.Registration) bool {
	if _, err := m.gateway.Post(ctx, authmodel.RouteUsers, gateway.JSON(registration)); err != nil {
		m.logger.Info().Err(err).Int("status", gateway.StatusCode(err)).Msg("signup failed")
		return false
	}
	m.logger.Info().Msg("signup succeeded")
	return true
}

// VerifyCode reports whether the verification succeeded. A response without a credential
// counts as success only under TokenlessConfirmsAccount.
func (m *Manager) VerifyCode(ctx context.Context, identifier, code string) bool {
	switch m.VerifyCodeOutcome(ctx, identifier, code) {
	case OutcomeAuthenticated:
		return true
	case OutcomeVerifiedNoSession:
		return m.tokenless == TokenlessConfirmsAccount
	}
	return false
}

// VerifyCodeOutcome submits the one-time code. A credential in the response signs the user in.
func (m *Manager) VerifyCodeOutcome(ctx context.Context, identifier, code string) VerifyOutcome {
	op := m.begin()

	resp, err := m.gateway.Post(ctx, authmodel.RouteVerifyOTP, authmodel.VerifyOTPRequest{Identifier: identifier, OTP: code})
	if err != nil {
		m.logger.Info().Err(err).Int("status", gateway.StatusCode(err)).Msg("verification failed")
		return OutcomeFailed
	}

	var body authmodel.TokenResponse
	if !resp.Empty() {
		if err := resp.DecodeJSON(&body); err != nil {
			m.logger.Info().Err(err).Msg("verification response unreadable")
			return OutcomeFailed
		}
	}
	token, ok := body.Token()
	if !ok {
		m.logger.Info().Msg("verification response carried no credential")
		return OutcomeVerifiedNoSession
	}

	if err := m.signIn(ctx, op, token); err != nil {
		m.logger.Info().Err(err).Msg("verification result discarded")
		return OutcomeFailed
	}
	m.logger.Info().Msg("verification signed the user in")
	return OutcomeAuthenticated
}

// ResendCode asks the backend to send a new code. The response body is not inspected.
func (m *Manager) ResendCode(ctx context.Context, identifier string) bool {
	if _, err := m.gateway.Post(ctx, authmodel.RouteResendOTP, authmodel.ResendOTPRequest{Identifier: identifier}); err != nil {
		m.logger.Info().Err(err).Int("status", gateway.StatusCode(err)).Msg("resend code failed")
		return false
	}
	return true
}

// Logout signs the user out. It cannot fail and is idempotent; a store that cannot be
// cleared is logged and the in-memory state still becomes Unauthenticated. State readers
// block until it returns, for at most the storage timeout.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.issued++
	m.applied = m.issued

	if err := m.clearStored(ctx); err != nil {
		m.logger.Err(err).Msg("logout could not clear the stored credential")
	}
	m.gateway.ClearCredential()
	m.setState(Unauthenticated())
	m.logger.Info().Msg("logged out")
}

// signIn fetches the profile best effort and commits the credential.
func (m *Manager) signIn(ctx context.Context, op uint64, token string) error {
	profile, err := m.fetchProfile(ctx, token)
	if err != nil {
		m.logger.Warn().Err(err).Msg("signed in without a profile")
		profile = nil
	}
	return m.commitAuthenticated(ctx, op, token, profile, true)
}

func (m *Manager) fetchProfile(ctx context.Context, token string) (*users.Profile, error) {
	resp, err := m.gateway.Get(ctx, authmodel.RouteMe, gateway.WithBearer(token))
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchProfile]")
	}
	if resp.Empty() {
		return nil, errors.Wrap(autherrors.ErrEmptyProfile, "[Manager.fetchProfile]")
	}
	var profile users.Profile
	if err := resp.DecodeJSON(&profile); err != nil {
		return nil, errors.Wrap(err, "[Manager.fetchProfile]")
	}
	if profile.Empty() {
		return nil, errors.Wrap(autherrors.ErrEmptyProfile, "[Manager.fetchProfile] no profile fields")
	}
	return &profile, nil
}

// commitAuthenticated applies an authenticated transition for op. Persisting a new
// credential, attaching it to the gateway and publishing the state happen under one lock.
func (m *Manager) commitAuthenticated(ctx context.Context, op uint64, token string, profile *users.Profile, persist bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if op <= m.applied {
		return errors.Wrapf(autherrors.ErrStaleOperation, "[Manager.commit] operation %d, applied %d", op, m.applied)
	}
	if persist {
		if err := m.saveStored(ctx, token); err != nil {
			// the in-memory session stays valid for this process
			m.logger.Err(err).Msg("could not persist the credential")
		}
	}
	m.gateway.SetCredential(token)
	m.applied = op
	m.setState(Authenticated(token, profile))
	return nil
}

// saveStored and clearStored run with m.mu held, so they get a bounded context.
func (m *Manager) saveStored(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()
	return m.credentials.Save(ctx, token)
}

func (m *Manager) clearStored(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.storageTimeout)
	defer cancel()
	return m.credentials.Clear(ctx)
}

func (m *Manager) begin() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	return m.issued
}

// setState must be called with m.mu held.
func (m *Manager) setState(next State) {
	prev := m.state
	m.state = next
	if !prev.differs(next) {
		return
	}
	m.logger.Debug().Stringer("from", prev.Status).Stringer("to", next.Status).Msg("session state changed")
	for _, sub := range m.subscribers {
		sub.push(next)
	}
}
