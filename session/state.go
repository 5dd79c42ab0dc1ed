package session

import (
	"fmt"

	"github.com/jrsteele09/go-auth-client/users"
)

// Status is the coarse session status.
type Status int

const (
	// StatusResolving is the initial status, held until bootstrap finishes.
	StatusResolving Status = iota
	StatusUnauthenticated
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusResolving:
		return "resolving"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// State is one committed session state. Build it with Resolving, Unauthenticated or
// Authenticated; the zero value is Resolving.
type State struct {
	Status     Status
	Credential string
	User       *users.Profile
}

func Resolving() State {
	return State{Status: StatusResolving}
}

func Unauthenticated() State {
	return State{Status: StatusUnauthenticated}
}

// Authenticated panics on an empty credential: an authenticated state without one is a bug.
func Authenticated(credential string, user *users.Profile) State {
	if credential == "" {
		panic("session: authenticated state requires a credential")
	}
	return State{Status: StatusAuthenticated, Credential: credential, User: user}
}

func (s State) IsAuthenticated() bool {
	return s.Status == StatusAuthenticated
}

func (s State) IsLoading() bool {
	return s.Status == StatusResolving
}

// differs reports a change subscribers care about. Profile enrichment alone is not one.
func (s State) differs(other State) bool {
	return s.Status != other.Status || s.Credential != other.Credential
}
