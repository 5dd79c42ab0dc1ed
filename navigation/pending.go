package navigation

import (
	"strings"
	"sync"
)

// PendingVerification carries the identifier from signup to the verification screen.
// It lives in memory only.
type PendingVerification struct {
	mu         sync.Mutex
	identifier string
}

// Begin records identifier, replacing any earlier one.
func (p *PendingVerification) Begin(identifier string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identifier = strings.TrimSpace(identifier)
}

func (p *PendingVerification) Identifier() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identifier, p.identifier != ""
}

func (p *PendingVerification) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identifier = ""
}
