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

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-homeserver-login/homeserver/matrix"
	"github.com/jrsteele09/go-homeserver-login/internal/config"
	"github.com/jrsteele09/go-homeserver-login/internal/signals"
	"github.com/jrsteele09/go-homeserver-login/login"
	"github.com/jrsteele09/go-homeserver-login/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("Error running login hub")
	}
	log.Info().Msg("Login hub stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Msgf("Recovered from panic: %v", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.New()
	if err != nil {
		return fmt.Errorf("config.New: %w", err)
	}
	displayAppname(c.GetAppName())
	logger := setupLogger(c)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connector := matrix.NewConnector(
		matrix.WithHTTPClient(&http.Client{Timeout: c.GetRequestTimeout()}),
		matrix.WithUserAgent(c.GetUserAgent()),
		matrix.WithProbeRetries(c.GetProbeRetries(), c.GetProbeInterval()),
		matrix.WithLogger(logger.With().Str("component", "matrix").Logger()),
	)
	service, err := login.NewService(connector, sessions.NewRegistry(),
		login.WithStaticRegistrations(c.GetStaticRegistrations()),
		login.WithLogger(logger.With().Str("component", "login").Logger()),
	)
	if err != nil {
		return fmt.Errorf("login.NewService: %w", err)
	}

	bridge := signals.NewBridge(c.GetSignalBufferSize(), logger.With().Str("component", "signals").Logger())
	go func() {
		if err := bridge.Decode(ctx, os.Stdin); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Reading signals failed")
		}
	}()

	encoded := make(chan error, 1)
	go func() {
		encoded <- bridge.Encode(ctx, os.Stdout)
	}()

	logger.Info().Msg("Login hub listening on stdin")
	service.Run(ctx, bridge.Inbound(), bridge.Outbound())
	bridge.CloseOutbound()

	if err := <-encoded; err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("bridge.Encode: %w", err)
	}
	return nil
}

// setupLogger logs to stderr, leaving stdout to the signal stream.
func setupLogger(c config.EnvConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return log.Logger
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(os.Stderr, myFigure.String())
}
