// Command tableserver runs the six-max PLO table server: a WebSocket
// endpoint backed by the matchmaker/tableinstance core. Grounded on the
// teacher's cmd/server/main.go (kong CLI, zerolog console setup, signal
// handling, graceful shutdown), trimmed of the teacher's external-bot
// process-spawning flags since this core's BotDecision is a pure library
// call rather than a subprocess protocol.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/lox/plo-core/server"
)

type CLI struct {
	Config       string `kong:"help='Path to an HCL server config file',default='tableserver.hcl'"`
	Addr         string `kong:"help='Override server.address:port, e.g. :8080'"`
	Debug        bool   `kong:"help='Enable debug logging'"`
	Seed         *int64 `kong:"help='Deterministic RNG seed (overrides config)'"`
	HandLimit    *uint64 `kong:"help='Maximum hands completed across all tables before entering maintenance mode (overrides config)'"`
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tableserver"),
		kong.Description("Six-max Pot-Limit Omaha table server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	level := zerolog.InfoLevel
	if cli.Debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().
		Timestamp().
		Logger()

	cfg, err := server.LoadConfig(cli.Config)
	kctx.FatalIfErrorf(err)

	if cli.Seed != nil {
		cfg.Server.Seed = *cli.Seed
	}
	if cli.HandLimit != nil {
		cfg.Server.HandLimit = *cli.HandLimit
	}
	if cli.Addr != "" {
		host, port := splitAddr(cli.Addr)
		cfg.Server.Address = host
		cfg.Server.Port = port
	}

	if err := cfg.Validate(); err != nil {
		kctx.FatalIfErrorf(err)
	}

	srv := server.NewServer(cfg, logger, nil)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address).
			Int("port", cfg.Server.Port).
			Int64("seed", cfg.Server.Seed).
			Uint64("hand_limit", cfg.Server.HandLimit).
			Msg("table server starting")
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			kctx.FatalIfErrorf(err)
		}
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("received signal, shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}

		if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server exited with error")
		} else {
			logger.Info().Msg("server shutdown complete")
		}
	}
}

// splitAddr parses "host:port" (or ":port") into its parts, defaulting the
// host to "localhost" as the teacher's toWSURL helper does.
func splitAddr(addr string) (string, int) {
	host := "localhost"
	portStr := addr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			if i > 0 {
				host = addr[:i]
			}
			portStr = addr[i+1:]
			break
		}
	}
	port := 0
	for _, c := range portStr {
		if c < '0' || c > '9' {
			return host, 0
		}
		port = port*10 + int(c-'0')
	}
	return host, port
}
