// Package navigation keeps the user in the route region that matches the session:
// the app when authenticated, the auth screens otherwise.
package navigation

import (
	"context"
	"errors"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Router is the navigation capability of the host UI.
type Router interface {
	CurrentRoute() string
	Replace(route string)
}

// Pusher is implemented by routers that keep a back stack.
type Pusher interface {
	Push(route string)
}

// Splash is the loading screen shown while the session resolves.
type Splash interface {
	ShowLoading()
	HideLoading()
}

// StateSource is implemented by *session.Manager.
type StateSource interface {
	Subscribe() *session.Subscription
}

// Guard redirects in reaction to committed session states, never to route changes,
// so its own redirects cannot trigger it again.
type Guard struct {
	source  StateSource
	router  Router
	splash  Splash
	regions Regions
	logger  zerolog.Logger

	loadingShown bool
	resolved     bool
}

type GuardOption func(*Guard)

func WithSplash(splash Splash) GuardOption {
	return func(g *Guard) {
		g.splash = splash
	}
}

func WithRegions(regions Regions) GuardOption {
	return func(g *Guard) {
		g.regions = regions
	}
}

func WithGuardLogger(logger zerolog.Logger) GuardOption {
	return func(g *Guard) {
		g.logger = logger
	}
}

func NewGuard(source StateSource, router Router, options ...GuardOption) (*Guard, error) {
	if source == nil {
		return nil, errors.New("[NewGuard] state source is required")
	}
	if router == nil {
		return nil, errors.New("[NewGuard] router is required")
	}
	g := &Guard{
		source:  source,
		router:  router,
		regions: DefaultRegions(),
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(g)
	}
	return g, nil
}

// Run applies the redirect policy to every committed state until ctx is done.
// A Guard must not be run twice concurrently.
func (g *Guard) Run(ctx context.Context) error {
	sub := g.source.Subscribe()
	defer sub.Close()

	for {
		st, err := sub.Next(ctx)
		if err != nil {
			if autherrors.Is(err, autherrors.ErrClosed) {
				return nil
			}
			return err
		}
		g.apply(st)
	}
}

func (g *Guard) apply(st session.State) {
	if st.IsLoading() {
		if !g.loadingShown && g.splash != nil {
			g.splash.ShowLoading()
		}
		g.loadingShown = true
		g.logger.Debug().Msg("guard waiting for the session to resolve")
		return
	}

	current := g.router.CurrentRoute()
	switch {
	case st.IsAuthenticated():
		g.logger.Debug().Str("route", g.regions.AppEntry).Msg("guard redirecting to the app")
		g.router.Replace(g.regions.AppEntry)
	case !g.regions.InAuthGroup(current):
		g.logger.Debug().Str("from", current).Str("route", g.regions.AuthEntry).Msg("guard redirecting to login")
		g.router.Replace(g.regions.AuthEntry)
	default:
		g.logger.Debug().Str("route", current).Msg("guard staying within the auth group")
	}

	if !g.resolved {
		g.resolved = true
		if g.splash != nil {
			g.splash.HideLoading()
		}
	}
}
