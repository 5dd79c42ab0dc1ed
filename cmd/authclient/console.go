package main

import (
	"fmt"
	"io"
	"sync"
)

// consoleRouter stands in for the app's navigator and prints every redirect.
type consoleRouter struct {
	out io.Writer

	mu      sync.Mutex
	current string
}

func newConsoleRouter(out io.Writer, start string) *consoleRouter {
	return &consoleRouter{out: out, current: start}
}

func (r *consoleRouter) CurrentRoute() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *consoleRouter) Replace(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "-> %s (from %s)\n", route, r.current)
	r.current = route
}

func (r *consoleRouter) Push(route string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "+> %s\n", route)
	r.current = route
}

type consoleSplash struct {
	out io.Writer
}

func (s consoleSplash) ShowLoading() {
	fmt.Fprintln(s.out, "Loading App...")
}

func (s consoleSplash) HideLoading() {}
