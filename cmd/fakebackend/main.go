package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/internal/fakebackend"
	"github.com/jrsteele09/go-auth-client/internal/logging"
	fakeuserrepo "github.com/jrsteele09/go-auth-client/users/repofake"
	"github.com/rs/zerolog/log"
)

const (
	addrVar          = "FAKEBACKEND_ADDR"
	signingKeyVar    = "FAKEBACKEND_SIGNING_KEY"
	tokenlessVar     = "FAKEBACKEND_TOKENLESS_VERIFY"
	defaultAddr      = ":8000"
	shutdownDeadline = 5 * time.Second
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running fake backend")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Fake backend stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	if err := logging.Setup(logging.Options{Level: c.GetLogLevel(), Format: c.GetLogFormat()}); err != nil {
		return err
	}
	displayAppname("fake backend")

	options := []fakebackend.Option{
		fakebackend.WithColourLogs(c.GetEnv() == "DEV"),
		fakebackend.WithTokenlessVerification(config.GetEnv(tokenlessVar, "") == "true"),
		fakebackend.WithOTPHook(func(email, otp string) {
			// stands in for the verification email
			log.Info().Str("email", email).Str("otp", otp).Msg("verification code")
		}),
	}
	if key := config.GetEnv(signingKeyVar, ""); key != "" {
		options = append(options, fakebackend.WithSigningKey([]byte(key)))
	}
	handler, err := fakebackend.New(fakeuserrepo.NewFakeUserRepo(), options...)
	if err != nil {
		return fmt.Errorf("fakebackend.New: %w", err)
	}

	server := &http.Server{Addr: config.GetEnv(addrVar, defaultAddr), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() { serveErr <- listenAndServe(server) }()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Fake backend listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownDeadline)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
