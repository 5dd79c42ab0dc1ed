package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/credentials"
	"github.com/jrsteele09/go-auth-client/gateway"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	"github.com/jrsteele09/go-auth-client/navigation"
	"github.com/jrsteele09/go-auth-client/securestorage"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/rs/zerolog/log"
)

const usage = `usage: authclient [-config file] <command> [args]

commands:
  status                     show the restored session
  login <email> <password>   sign in
  signup <email> <password>  create an account and wait for a code
  verify <email> <code>      submit the emailed code
  resend <email>             send a new code
  logout                     sign out
  watch                      follow session changes like the app's root layout`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Error().Err(err).Msg("authclient failed")
		os.Exit(1)
	}
}

type app struct {
	out     io.Writer
	regions navigation.Regions
	manager *session.Manager
	flow    *navigation.AuthFlow
	router  *consoleRouter
}

func run(args []string, out io.Writer) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	fs := flag.NewFlagSet("authclient", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", config.GetEnv("AUTHCLIENT_CONFIG", ""), "optional YAML config file")
	fs.Usage = func() { fmt.Fprintln(out, usage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	c, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(logging.Options{Level: c.GetLogLevel(), Format: c.GetLogFormat()}); err != nil {
		return err
	}

	storage, closeStorage, err := openStorage(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStorage(); err != nil {
			log.Warn().Err(err).Msg("close storage")
		}
	}()

	a, err := newApp(c, storage, out)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.manager.WaitResolved(ctx); err != nil {
		return err
	}
	return a.dispatch(ctx, fs.Arg(0), fs.Args()[1:])
}

func newApp(c config.Config, storage securestorage.SecureStorage, out io.Writer) (*app, error) {
	store := credentials.NewStore(storage, credentials.WithKey(c.GetTokenStorageKey()))

	gw, err := gateway.New(c.GetAPIBaseURL(),
		gateway.WithTimeout(c.GetAPITimeout()),
		gateway.WithTokenSource(store.TokenSource()),
		gateway.WithUserAgent(c.GetAppName()+"/authclient"),
	)
	if err != nil {
		return nil, err
	}

	policy := session.TokenlessIsFailure
	if c.GetTokenlessVerification() == config.TokenlessConfirmsAccount {
		policy = session.TokenlessConfirmsAccount
	}
	manager, err := session.New(session.Deps{Gateway: gw, Credentials: store},
		session.WithTokenlessVerification(policy),
		session.WithExpiryPrecheck(c.GetExpiryPrecheck()),
	)
	if err != nil {
		return nil, err
	}

	regions := navigation.DefaultRegions()
	router := newConsoleRouter(out, "/")
	flow, err := navigation.NewAuthFlow(manager, router, nil, regions)
	if err != nil {
		return nil, err
	}
	return &app{out: out, regions: regions, manager: manager, flow: flow, router: router}, nil
}

func (a *app) dispatch(ctx context.Context, command string, args []string) error {
	need := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s expects %d argument(s)\n%s", command, n, usage)
		}
		return nil
	}

	switch command {
	case "status":
		a.printStatus()
		return nil

	case "login":
		if err := need(2); err != nil {
			return err
		}
		return a.report(a.flow.Login(ctx, args[0], args[1]))

	case "signup":
		if err := need(2); err != nil {
			return err
		}
		return a.report(a.flow.Signup(ctx, navigation.SignupForm{Email: args[0], Password: args[1], ConfirmPassword: args[1]}))

	case "verify":
		if err := need(2); err != nil {
			return err
		}
		a.flow.Pending().Begin(args[0])
		return a.report(a.flow.Verify(ctx, args[1]))

	case "resend":
		if err := need(1); err != nil {
			return err
		}
		a.flow.Pending().Begin(args[0])
		return a.report(a.flow.Resend(ctx))

	case "logout":
		a.flow.Logout(ctx)
		a.printStatus()
		return nil

	case "watch":
		return a.watch(ctx)
	}
	return fmt.Errorf("unknown command %q\n%s", command, usage)
}

func (a *app) report(res navigation.FlowResult) error {
	if res.Message != "" {
		fmt.Fprintf(a.out, "%s: %s\n", res.Title, res.Message)
	}
	a.printStatus()
	if !res.OK {
		return errors.New(res.Title)
	}
	return nil
}

func (a *app) printStatus() {
	st := a.manager.State()
	fmt.Fprintf(a.out, "session: %s\n", st.Status)
	if st.User != nil {
		fmt.Fprintf(a.out, "user:    %s\n", st.User.DisplayName())
	}
}

// watch runs the guard until interrupted.
func (a *app) watch(ctx context.Context) error {
	displayAppname("authclient")
	guard, err := navigation.NewGuard(a.manager, a.router,
		navigation.WithRegions(a.regions),
		navigation.WithSplash(consoleSplash{out: a.out}),
	)
	if err != nil {
		return err
	}
	if err := guard.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
