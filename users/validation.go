package users

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	minPasswordLength = 6
	otpLength         = 6
)

var otpPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Validator holds the client side checks run before a form is submitted.
// The messages are shown to the user verbatim.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateLoginForm requires both fields.
func (v *Validator) ValidateLoginForm(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return fmt.Errorf("Please enter both email and password.")
	}
	return nil
}

// ValidateSignupForm checks the registration form fields in the order the screen reports them.
func (v *Validator) ValidateSignupForm(email, password, confirmPassword string) error {
	if strings.TrimSpace(email) == "" || password == "" || confirmPassword == "" {
		return fmt.Errorf("Please fill in all required fields.")
	}
	if !strings.Contains(email, "@") {
		return fmt.Errorf("Please enter a valid email address.")
	}
	if err := ValidatePasswordStrength(password); err != nil {
		return err
	}
	if password != confirmPassword {
		return fmt.Errorf("Passwords do not match.")
	}
	return nil
}

// ValidateOTP requires an identifier and a six digit code.
func (v *Validator) ValidateOTP(identifier, code string) error {
	if strings.TrimSpace(identifier) == "" || !otpPattern.MatchString(code) {
		return fmt.Errorf("Please enter a valid %d-digit OTP.", otpLength)
	}
	return nil
}

// ValidatePasswordStrength checks the minimum length accepted by the backend.
func ValidatePasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("Password must be at least %d characters long.", minPasswordLength)
	}
	return nil
}
