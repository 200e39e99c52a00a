// relayd bridges statekit processes: emitters in separate processes publish
// state envelopes here and receive everyone else's.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/statekit/statekit/broadcast"
	"github.com/statekit/statekit/config"
)

func main() {
	var (
		addr     = flag.String("addr", "", "Listen address (overrides config)")
		logLevel = flag.String("log-level", "", "Log level: debug|info|warn|error (overrides config)")
		envFile  = flag.String("env", ".env", "Path to env file")
	)
	flag.Parse()

	cfg := config.Load(*envFile)
	if *addr != "" {
		cfg.Relay.Addr = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))

	relay := broadcast.NewRelayServer(logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	relay.Routes(r)

	server := &http.Server{
		Addr:              cfg.Relay.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", slog.String("error", err.Error()))
		}
	}()

	logger.Info("relayd listening", slog.String("addr", cfg.Relay.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("relayd: %v", err)
	}
}
