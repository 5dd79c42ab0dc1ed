package credentials

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/oauth2"
)

// loadTimeout bounds a storage read made on behalf of an outgoing request.
const loadTimeout = 5 * time.Second

type storeTokenSource struct {
	store *Store
}

// TokenSource reads the persisted credential each time a token is requested, so a
// request made before the session resolves still carries whatever is stored.
func (s *Store) TokenSource() oauth2.TokenSource {
	return storeTokenSource{store: s}
}

func (ts storeTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	token, ok, err := ts.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.ErrNotFound
	}
	tok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	if exp, ok := Expiry(token); ok {
		tok.Expiry = exp
	}
	return tok, nil
}
