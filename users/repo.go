package users

import "errors"

// ErrAccountExists is returned by Create when the email is already registered.
var ErrAccountExists = errors.New("email already registered")

// AccountRepo stores backend accounts keyed by id and email.
type AccountRepo interface {
	Create(account *Account) error
	GetByEmail(email string) (*Account, error)
	GetByID(ID string) (*Account, error)
	SetVerified(email string, verified bool) error
	SetPendingOTP(email, otp string) error
}
