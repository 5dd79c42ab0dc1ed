package fakeuserrepo

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/users"
)

var _ users.AccountRepo = (*FakeUserRepo)(nil)

var (
	ErrNotFound      = errors.ErrNotFound
	ErrAlreadyExists = users.ErrAccountExists
)

type FakeUserRepo struct {
	accounts map[string]*users.Account
	emailIds map[string]string // email to account id
	lock     sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		accounts: make(map[string]*users.Account),
		emailIds: make(map[string]string),
	}
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (ur *FakeUserRepo) Create(account *users.Account) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	email := normaliseEmail(account.Email)
	if _, ok := ur.emailIds[email]; ok {
		return ErrAlreadyExists
	}
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	account.Email = email
	ur.accounts[account.ID] = account
	ur.emailIds[email] = account.ID
	return nil
}

// GetByEmail returns a copy so callers cannot mutate the stored record.
func (ur *FakeUserRepo) GetByEmail(email string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	account := *ur.accounts[id]
	return &account, nil
}

func (ur *FakeUserRepo) GetByID(id string) (*users.Account, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	stored, ok := ur.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	account := *stored
	return &account, nil
}

func (ur *FakeUserRepo) SetVerified(email string, verified bool) error {
	return ur.update(email, func(a *users.Account) {
		a.Verified = verified
		if verified {
			a.PendingOTP = ""
		}
	})
}

func (ur *FakeUserRepo) SetPendingOTP(email, otp string) error {
	return ur.update(email, func(a *users.Account) {
		a.PendingOTP = otp
	})
}

func (ur *FakeUserRepo) update(email string, fn func(*users.Account)) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	id, ok := ur.emailIds[normaliseEmail(email)]
	if !ok {
		return ErrNotFound
	}
	fn(ur.accounts[id])
	return nil
}
