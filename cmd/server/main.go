package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"workspace-chat/infrastructure/ws"
	"workspace-chat/internal"
	"workspace-chat/repositories"
	"workspace-chat/runtime"
	"workspace-chat/runtime/workers"
)

// Exit codes to provide meaningful status to the operating system or
// service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper. Its only
	// responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Chat server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting, so every defer (database cleanup
// included) executes before the process exits.
func run() (int, error) {
	// 1. Configuration & logger. A local .env is optional.
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database (BadgerDB).
	options := badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	store, err := repositories.NewMessageStore(db, logger)
	if err != nil {
		return exitRuntime, fmt.Errorf("message store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	// 3. Hub, registry and supervised workers.
	registry := runtime.NewRegistry(config.MaxClients)
	hub := runtime.NewHub(logger, registry, store, config.CommandBufferSize, config.HistoryLimit)
	supervisor := workers.NewSupervisor(logger)
	supervisor.Add(hub, workers.NewTelemetryWorker(logger, hub, config.TelemetryInterval))

	supervisorDone := make(chan struct{})
	go func() {
		supervisor.Run(ctx)
		close(supervisorDone)
	}()

	// 4. Websocket endpoint.
	mux := http.NewServeMux()
	mux.Handle("/ws", ws.NewServer(hub, logger, config.ConnectionBufferSize))

	address := net.JoinHostPort(config.Host, strconv.Itoa(config.Port))
	httpServer := &http.Server{Addr: address, Handler: mux}

	httpErr := make(chan error, 1)
	go func() {
		logger.Info("Chat server listening", "address", address)
		httpErr <- httpServer.ListenAndServe()
	}()

	// 5. Wait for a shutdown signal or a fatal listener error.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown requested")
	case err := <-httpErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			supervisor.Stop()
			<-supervisorDone
			return exitRuntime, fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}

	supervisor.Stop()
	<-supervisorDone
	logger.Info("Chat server stopped")
	return exitOK, nil
}
