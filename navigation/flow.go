package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/users"
)

// Sessions is the part of *session.Manager the auth screens use.
type Sessions interface {
	Login(ctx context.Context, identifier, secret string) bool
	Signup(ctx context.Context, registration users.Registration) bool
	VerifyCodeOutcome(ctx context.Context, identifier, code string) session.VerifyOutcome
	ResendCode(ctx context.Context, identifier string) bool
	Logout(ctx context.Context)
	TokenlessPolicy() session.TokenlessPolicy
}

// FlowResult is what a screen shows after an action. Title and Message are empty when
// there is nothing to tell the user.
type FlowResult struct {
	OK      bool
	Title   string
	Message string
}

func failed(title, message string) FlowResult {
	return FlowResult{Title: title, Message: message}
}

// SignupForm is the registration screen's input.
type SignupForm struct {
	Email           string
	Password        string
	ConfirmPassword string
	Extra           map[string]any
}

// AuthFlow holds the logic behind the login, signup and verification screens.
// Navigation after sign in is left to the Guard.
type AuthFlow struct {
	sessions  Sessions
	router    Router
	pending   *PendingVerification
	regions   Regions
	validator *users.Validator
}

func NewAuthFlow(sessions Sessions, router Router, pending *PendingVerification, regions Regions) (*AuthFlow, error) {
	if sessions == nil {
		return nil, errors.New("[NewAuthFlow] sessions is required")
	}
	if router == nil {
		return nil, errors.New("[NewAuthFlow] router is required")
	}
	if pending == nil {
		pending = &PendingVerification{}
	}
	return &AuthFlow{
		sessions:  sessions,
		router:    router,
		pending:   pending,
		regions:   regions,
		validator: users.NewValidator(),
	}, nil
}

// Pending exposes the verification context shared with the verification screen.
func (f *AuthFlow) Pending() *PendingVerification {
	return f.pending
}

func (f *AuthFlow) Login(ctx context.Context, email, password string) FlowResult {
	if err := f.validator.ValidateLoginForm(email, password); err != nil {
		return failed("Error", err.Error())
	}
	if !f.sessions.Login(ctx, strings.TrimSpace(email), password) {
		return failed("Login Failed", "Invalid email or password. Please try again.")
	}
	return FlowResult{OK: true}
}

// Signup registers the account and moves to the verification screen.
func (f *AuthFlow) Signup(ctx context.Context, form SignupForm) FlowResult {
	if err := f.validator.ValidateSignupForm(form.Email, form.Password, form.ConfirmPassword); err != nil {
		return failed("Error", err.Error())
	}
	email := strings.TrimSpace(form.Email)
	ok := f.sessions.Signup(ctx, users.Registration{Email: email, Password: form.Password, Extra: form.Extra})
	if !ok {
		return failed("Signup Failed", "Could not create account. The email might already be in use or there was a server issue.")
	}

	f.pending.Begin(email)
	f.navigate(f.regions.Verification)
	return FlowResult{OK: true}
}

// Verify submits code for the pending identifier.
func (f *AuthFlow) Verify(ctx context.Context, code string) FlowResult {
	identifier, _ := f.pending.Identifier()
	if err := f.validator.ValidateOTP(identifier, code); err != nil {
		return failed("Error", err.Error())
	}

	switch f.sessions.VerifyCodeOutcome(ctx, identifier, code) {
	case session.OutcomeAuthenticated:
		f.pending.Discard()
		return FlowResult{OK: true}
	case session.OutcomeVerifiedNoSession:
		if f.sessions.TokenlessPolicy() == session.TokenlessConfirmsAccount {
			f.pending.Discard()
			f.router.Replace(f.regions.AuthEntry)
			return FlowResult{OK: true, Title: "Account Verified", Message: "Your account has been verified. Please log in."}
		}
	}
	return failed("Verification Failed", "Invalid OTP or identifier. Please try again.")
}

// Resend asks for a new code for the pending identifier.
func (f *AuthFlow) Resend(ctx context.Context) FlowResult {
	identifier, ok := f.pending.Identifier()
	if !ok {
		return failed("Error", "Cannot resend OTP without an identifier.")
	}
	if !f.sessions.ResendCode(ctx, identifier) {
		return failed("Error", "Could not resend OTP. Please try again later.")
	}
	return FlowResult{OK: true, Title: "OTP Resent", Message: fmt.Sprintf("A new OTP has been sent to %s.", identifier)}
}

// Abandon drops the pending verification and returns to login.
func (f *AuthFlow) Abandon() {
	f.pending.Discard()
	f.router.Replace(f.regions.AuthEntry)
}

// Logout signs out; the Guard moves the user to the auth region.
func (f *AuthFlow) Logout(ctx context.Context) {
	f.pending.Discard()
	f.sessions.Logout(ctx)
}

func (f *AuthFlow) navigate(route string) {
	if p, ok := f.router.(Pusher); ok {
		p.Push(route)
		return
	}
	f.router.Replace(route)
}
