package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/gateway"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/securestorage/memstore"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

// testBackend mimics the FastAPI backend with knobs for each scenario.
type testBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	calls       []string
	profiles    map[string]string // bearer token -> /users/me body
	meStatus    int               // overrides the profile lookup when non-zero
	tokenBody   string            // overrides the /auth/token body on success
	lastForm    url.Values
	tokenAuth   string // Authorization header of the last /auth/token request
	lastJSON    map[string]any
	signupCode  int
	tokenGate   chan struct{}
	tokenArrive chan struct{}
	meGate      map[string]chan struct{}
}

func newTestBackend(t *testing.T) *testBackend {
	t.Helper()
	b := &testBackend{
		t:          t,
		profiles:   map[string]string{},
		signupCode: http.StatusCreated,
		meGate:     map[string]chan struct{}{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", b.token)
	mux.HandleFunc("/auth/verify-otp", b.verify)
	mux.HandleFunc("/auth/resend-otp", b.resend)
	mux.HandleFunc("/users/", b.signup)
	mux.HandleFunc("/users/me", b.me)
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *testBackend) record(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, r.Method+" "+r.URL.Path)
}

func (b *testBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *testBackend) lastTokenAuth() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tokenAuth
}

func (b *testBackend) token(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	assert.NoError(b.t, r.ParseForm())
	b.mu.Lock()
	b.lastForm = r.PostForm
	b.tokenAuth = r.Header.Get("Authorization")
	gate, arrive, body := b.tokenGate, b.tokenArrive, b.tokenBody
	b.mu.Unlock()

	if arrive != nil {
		arrive <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	w.Header().Set("Content-Type", "application/json")
	if r.PostForm.Get("username") != "user@x.com" || r.PostForm.Get("password") != "secret" {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Incorrect username or password"}`)
		return
	}
	if body == "" {
		body = `{"access_token":"abc","token_type":"bearer"}`
	}
	_, _ = io.WriteString(w, body)
}

func (b *testBackend) decodeJSON(r *http.Request) map[string]any {
	body := map[string]any{}
	assert.NoError(b.t, json.NewDecoder(r.Body).Decode(&body))
	b.mu.Lock()
	b.lastJSON = body
	b.mu.Unlock()
	return body
}

func (b *testBackend) verify(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	body := b.decodeJSON(r)
	w.Header().Set("Content-Type", "application/json")
	if body["identifier"] == "user@x.com" && body["otp"] == "123456" {
		_, _ = io.WriteString(w, `{"access_token":"xyz"}`)
		return
	}
	_, _ = io.WriteString(w, `{}`)
}

func (b *testBackend) resend(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	b.decodeJSON(r)
	w.WriteHeader(http.StatusOK)
}

func (b *testBackend) signup(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	b.decodeJSON(r)
	b.mu.Lock()
	code := b.signupCode
	b.mu.Unlock()
	w.WriteHeader(code)
}

func (b *testBackend) me(w http.ResponseWriter, r *http.Request) {
	b.record(r)
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	b.mu.Lock()
	gate := b.meGate[token]
	status := b.meStatus
	profile, ok := b.profiles[token]
	b.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"detail":"Could not validate credentials"}`)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, profile)
}

type fixture struct {
	backend *testBackend
	gateway *gateway.Client
	storage *memstore.InMemoryStore
	store   *credentials.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newTestBackend(t)
	gw, err := gateway.New(b.srv.URL, gateway.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	storage := memstore.New()
	return &fixture{backend: b, gateway: gw, storage: storage, store: credentials.NewStore(storage)}
}

func (f *fixture) manager(t *testing.T, opts ...session.Option) *session.Manager {
	t.Helper()
	return f.managerWith(t, f.store, opts...)
}

func (f *fixture) managerWith(t *testing.T, store session.CredentialStore, opts ...session.Option) *session.Manager {
	t.Helper()
	opts = append([]session.Option{session.WithLogger(zerolog.Nop())}, opts...)
	m, err := session.New(session.Deps{Gateway: f.gateway, Credentials: store}, opts...)
	require.NoError(t, err)
	return m
}

func waitResolved(t *testing.T, m *session.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	require.NoError(t, m.WaitResolved(ctx))
}

func (f *fixture) stored(t *testing.T) (string, bool) {
	t.Helper()
	token, ok, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return token, ok
}

// requireConsistent checks the gateway default credential agrees with the state.
func (f *fixture) requireConsistent(t *testing.T, m *session.Manager) {
	t.Helper()
	st := m.State()
	attached, ok := f.gateway.Credential()
	switch st.Status {
	case session.StatusAuthenticated:
		require.NotEmpty(t, st.Credential)
		require.True(t, ok)
		require.Equal(t, st.Credential, attached)
	default:
		require.Empty(t, st.Credential)
		require.False(t, ok, "gateway still carries a credential while %s", st.Status)
	}
}

type faultyStore struct {
	load  error
	save  error
	clear error
	panic bool
	block bool // Save and Clear wait for their context to end

	mu      sync.Mutex
	token   string
	cleared int
}

func (s *faultyStore) Save(ctx context.Context, token string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.save != nil {
		return s.save
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *faultyStore) Load(context.Context) (string, bool, error) {
	if s.panic {
		panic("keychain exploded")
	}
	if s.load != nil {
		return "", false, s.load
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != "", nil
}

func (s *faultyStore) Clear(ctx context.Context) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleared++
	if s.clear != nil {
		return s.clear
	}
	s.token = ""
	return nil
}

func TestNewRequiresDeps(t *testing.T) {
	_, err := session.New(session.Deps{Credentials: credentials.NewStore(memstore.New())})
	require.Error(t, err)

	gw, err := gateway.New("http://localhost:8000")
	require.NoError(t, err)
	_, err = session.New(session.Deps{Gateway: gw})
	require.Error(t, err)
}

func TestBootstrapWithoutStoredTokenMakesNoNetworkCall(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	waitResolved(t, m)

	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	require.False(t, m.IsLoading())
	require.Zero(t, f.backend.callCount())
	f.requireConsistent(t, m)
}

func TestBootstrapRestoresValidToken(t *testing.T) {
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"id":7,"email":"user@x.com","is_verified":true}`
	require.NoError(t, f.store.Save(context.Background(), "abc"))

	m := f.manager(t)
	waitResolved(t, m)

	require.True(t, m.IsAuthenticated())
	token, ok := m.Credential()
	require.True(t, ok)
	require.Equal(t, "abc", token)
	require.Equal(t, "7", m.User().ID)
	require.Equal(t, "user@x.com", m.User().Email)
	f.requireConsistent(t, m)
}

func TestBootstrapInvalidTokenClearsStore(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Save(context.Background(), "revoked"))

	m := f.manager(t)
	waitResolved(t, m)

	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	_, ok := f.stored(t)
	require.False(t, ok)
	f.requireConsistent(t, m)
}

func TestBootstrapEmptyProfileClearsStore(t *testing.T) {
	for _, body := range []string{"", "null", "  ", "{}"} {
		f := newFixture(t)
		f.backend.profiles["abc"] = body
		require.NoError(t, f.store.Save(context.Background(), "abc"))

		m := f.manager(t)
		waitResolved(t, m)

		require.Equal(t, session.StatusUnauthenticated, m.State().Status, "body %q", body)
		_, ok := f.stored(t)
		require.False(t, ok)
	}
}

func TestBootstrapStorageFaultResolvesUnauthenticated(t *testing.T) {
	f := newFixture(t)
	store := &faultyStore{load: errors.New("keychain locked")}

	m := f.managerWith(t, store)
	waitResolved(t, m)

	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	require.Zero(t, f.backend.callCount())
	require.Equal(t, 1, store.cleared)
}

func TestBootstrapPanicResolvesUnauthenticated(t *testing.T) {
	f := newFixture(t)
	m := f.managerWith(t, &faultyStore{panic: true})
	waitResolved(t, m)

	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	f.requireConsistent(t, m)
}

func TestBootstrapExpiryPrecheck(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	expired, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "user@x.com",
		"exp": now.Add(-time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	t.Run("enabled rejects without a probe", func(t *testing.T) {
		f := newFixture(t)
		f.backend.profiles[expired] = `{"email":"user@x.com"}`
		require.NoError(t, f.store.Save(context.Background(), expired))

		m := f.manager(t, session.WithExpiryPrecheck(true), session.WithNowTime(func() time.Time { return now }))
		waitResolved(t, m)

		require.Equal(t, session.StatusUnauthenticated, m.State().Status)
		require.Zero(t, f.backend.callCount())
		_, ok := f.stored(t)
		require.False(t, ok)
	})

	t.Run("disabled leaves the decision to the backend", func(t *testing.T) {
		f := newFixture(t)
		f.backend.profiles[expired] = `{"email":"user@x.com"}`
		require.NoError(t, f.store.Save(context.Background(), expired))

		m := f.manager(t, session.WithExpiryPrecheck(false), session.WithNowTime(func() time.Time { return now }))
		waitResolved(t, m)

		require.True(t, m.IsAuthenticated())
		require.Equal(t, 1, f.backend.callCount())
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"id":"u1","email":"user@x.com"}`
	m := f.manager(t)
	waitResolved(t, m)

	require.False(t, m.Login(ctx, "user@x.com", "wrong"))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	_, ok := f.stored(t)
	require.False(t, ok)
	f.requireConsistent(t, m)

	require.True(t, m.Login(ctx, "user@x.com", "secret"))
	st := m.State()
	require.Equal(t, session.StatusAuthenticated, st.Status)
	require.Equal(t, "abc", st.Credential)
	require.Equal(t, "user@x.com", st.User.Email)
	token, ok := f.stored(t)
	require.True(t, ok)
	require.Equal(t, "abc", token)
	f.requireConsistent(t, m)

	f.backend.mu.Lock()
	form := f.backend.lastForm
	f.backend.mu.Unlock()
	require.Equal(t, "user@x.com", form.Get("username"))
	require.Equal(t, "secret", form.Get("password"))
	require.Equal(t, "password", form.Get("grant_type"))
}

func TestLoginWithoutAccessTokenFails(t *testing.T) {
	f := newFixture(t)
	f.backend.tokenBody = `{"token_type":"bearer"}`
	m := f.manager(t)
	waitResolved(t, m)

	require.False(t, m.Login(context.Background(), "user@x.com", "secret"))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
}

func TestLoginSurvivesProfileFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.meStatus = http.StatusInternalServerError
	m := f.manager(t)
	waitResolved(t, m)

	require.True(t, m.Login(context.Background(), "user@x.com", "secret"))
	require.True(t, m.IsAuthenticated())
	require.Nil(t, m.User())
	f.requireConsistent(t, m)
}

func TestLoginSurvivesSaveFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	m := f.managerWith(t, &faultyStore{save: errors.New("disk full")})
	waitResolved(t, m)

	require.True(t, m.Login(context.Background(), "user@x.com", "secret"))
	require.True(t, m.IsAuthenticated())
	f.requireConsistent(t, m)
}

func TestTokenRequestCarriesCurrentCredential(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	m := f.manager(t)
	waitResolved(t, m)

	require.True(t, m.Login(ctx, "user@x.com", "secret"))
	require.Empty(t, f.backend.lastTokenAuth())

	// every request goes through the gateway, the token exchange included
	require.True(t, m.Login(ctx, "user@x.com", "secret"))
	require.Equal(t, "Bearer abc", f.backend.lastTokenAuth())
}

func TestSlowStoreDoesNotHoldStateLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	store := &faultyStore{block: true}
	m := f.managerWith(t, store, session.WithStorageTimeout(50*time.Millisecond))
	waitResolved(t, m)

	start := time.Now()
	require.True(t, m.Login(ctx, "user@x.com", "secret"))
	require.True(t, m.IsAuthenticated())

	m.Logout(ctx)
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	require.Less(t, time.Since(start), waitTimeout)
	f.requireConsistent(t, m)
}

func TestLoginTransportFailure(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	waitResolved(t, m)
	f.backend.srv.Close()

	require.False(t, m.Login(context.Background(), "user@x.com", "secret"))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
}

func TestVerifyCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["xyz"] = `{"email":"user@x.com"}`
	m := f.manager(t)
	waitResolved(t, m)

	require.False(t, m.VerifyCode(ctx, "user@x.com", "654321"))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)

	f.backend.mu.Lock()
	sent := f.backend.lastJSON
	f.backend.mu.Unlock()
	require.Equal(t, map[string]any{"identifier": "user@x.com", "otp": "654321"}, sent)

	require.True(t, m.VerifyCode(ctx, "user@x.com", "123456"))
	st := m.State()
	require.Equal(t, session.StatusAuthenticated, st.Status)
	require.Equal(t, "xyz", st.Credential)
	token, _ := f.stored(t)
	require.Equal(t, "xyz", token)
	f.requireConsistent(t, m)
}

func TestVerifyCodeTokenlessPolicy(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	m := f.manager(t)
	waitResolved(t, m)
	require.Equal(t, session.OutcomeVerifiedNoSession, m.VerifyCodeOutcome(ctx, "user@x.com", "000000"))
	require.False(t, m.VerifyCode(ctx, "user@x.com", "000000"))

	f = newFixture(t)
	m = f.manager(t, session.WithTokenlessVerification(session.TokenlessConfirmsAccount))
	waitResolved(t, m)
	require.True(t, m.VerifyCode(ctx, "user@x.com", "000000"))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
}

func TestSignupDoesNotChangeState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	m := f.manager(t)
	waitResolved(t, m)

	reg := users.Registration{Email: "new@x.com", Password: "secret1", Extra: map[string]any{"username": "newbie"}}
	require.True(t, m.Signup(ctx, reg))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)

	f.backend.mu.Lock()
	sent := f.backend.lastJSON
	f.backend.signupCode = http.StatusBadRequest
	f.backend.mu.Unlock()
	require.Equal(t, "new@x.com", sent["email"])
	require.Equal(t, "secret1", sent["password"])
	require.Equal(t, "newbie", sent["username"])

	require.False(t, m.Signup(ctx, reg))
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
}

func TestResendCode(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t)
	waitResolved(t, m)

	require.True(t, m.ResendCode(context.Background(), "user@x.com"))
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	require.Equal(t, map[string]any{"identifier": "user@x.com"}, f.backend.lastJSON)
}

func TestLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	m := f.manager(t)
	waitResolved(t, m)
	require.True(t, m.Login(ctx, "user@x.com", "secret"))

	m.Logout(ctx)
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	m.Logout(ctx)
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)

	_, ok := f.stored(t)
	require.False(t, ok)
	require.Nil(t, m.User())
	f.requireConsistent(t, m)
}

func TestLogoutWithStorageFaultStillSignsOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	store := &faultyStore{clear: errors.New("keychain locked")}
	m := f.managerWith(t, store)
	waitResolved(t, m)
	require.True(t, m.Login(ctx, "user@x.com", "secret"))

	m.Logout(ctx)
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	f.requireConsistent(t, m)
}

func TestStaleLoginAfterLogoutIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	gate := make(chan struct{})
	f.backend.tokenGate = gate
	f.backend.tokenArrive = make(chan struct{}, 1)
	m := f.manager(t)
	waitResolved(t, m)

	result := make(chan bool, 1)
	go func() {
		result <- m.Login(ctx, "user@x.com", "secret")
	}()

	select {
	case <-f.backend.tokenArrive:
	case <-time.After(waitTimeout):
		t.Fatal("login never reached the backend")
	}
	m.Logout(ctx)
	close(gate)

	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(waitTimeout):
		t.Fatal("login never returned")
	}
	require.Equal(t, session.StatusUnauthenticated, m.State().Status)
	_, ok := f.stored(t)
	require.False(t, ok)
	f.requireConsistent(t, m)
}

func TestStaleBootstrapDoesNotClearNewerLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	gate := make(chan struct{})
	f.backend.meGate["old"] = gate
	require.NoError(t, f.store.Save(ctx, "old"))

	m := f.manager(t)
	require.True(t, m.Login(ctx, "user@x.com", "secret"))
	close(gate)
	waitResolved(t, m)

	require.Equal(t, "abc", m.State().Credential)
	token, ok := f.stored(t)
	require.True(t, ok)
	require.Equal(t, "abc", token)
	f.requireConsistent(t, m)
}

func TestSubscriptionDeliversCommitsInOrder(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	f := newFixture(t)
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	m := f.manager(t)
	waitResolved(t, m)

	sub := m.Subscribe()
	require.True(t, m.Login(ctx, "user@x.com", "secret"))
	m.Logout(ctx)
	m.Logout(ctx)
	require.False(t, m.Login(ctx, "user@x.com", "wrong"))

	var got []session.Status
	for range 3 {
		st, err := sub.Next(ctx)
		require.NoError(t, err)
		got = append(got, st.Status)
	}
	require.Equal(t, []session.Status{session.StatusUnauthenticated, session.StatusAuthenticated, session.StatusUnauthenticated}, got)

	short, cancelShort := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancelShort()
	_, err := sub.Next(short)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	sub.Close()
	sub.Close()
	_, err = sub.Next(ctx)
	require.ErrorIs(t, err, autherrors.ErrClosed)
}

func TestSubscriptionSeesResolution(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	f := newFixture(t)
	gate := make(chan struct{})
	f.backend.meGate["abc"] = gate
	f.backend.profiles["abc"] = `{"email":"user@x.com"}`
	require.NoError(t, f.store.Save(ctx, "abc"))

	m := f.manager(t)
	sub := m.Subscribe()
	defer sub.Close()
	close(gate)

	first, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, session.StatusResolving, first.Status)

	second, err := sub.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, session.StatusAuthenticated, second.Status)
	require.Equal(t, "abc", second.Credential)
}

func TestAuthenticatedRequiresCredential(t *testing.T) {
	require.Panics(t, func() { session.Authenticated("", nil) })
	require.Equal(t, "resolving", session.StatusResolving.String())
	require.True(t, session.Resolving().IsLoading())
	require.False(t, session.Unauthenticated().IsAuthenticated())
}
