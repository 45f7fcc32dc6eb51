// Command agentfleetd is the fleet daemon: it rebuilds the fleet table from
// running containers, runs the fleet supervisor's health loop, and serves
// the dashboard's HTTP control plane until interrupted. The declarative
// configuration is not read at startup; the control plane loads the file
// named by -config on each request that needs it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tgruben-circuit/agentfleet/board"
	"github.com/tgruben-circuit/agentfleet/fleet"
	"github.com/tgruben-circuit/agentfleet/lock"
	"github.com/tgruben-circuit/agentfleet/runtime"
	"github.com/tgruben-circuit/agentfleet/server"
)

func main() {
	var (
		addr            = flag.String("addr", ":8080", "HTTP listen address")
		configPath      = flag.String("config", "fleet.json", "path to the fleet configuration file")
		projectRoot     = flag.String("project-root", ".", "project repository root mounted into agent containers")
		boardRoot       = flag.String("board-root", ".drive/agents/board", "task board and lock storage root")
		credentialsPath = flag.String("credentials", "", "path to a credentials file mounted into agent containers")
		dockerBin       = flag.String("docker-bin", "docker", "container runtime binary")
		logFile         = flag.String("log-file", "", "rotating log file path (stderr if unset)")
	)
	flag.Parse()

	logger := newLogger(*logFile)
	slog.SetDefault(logger)

	if err := run(*addr, *configPath, *projectRoot, *boardRoot, *credentialsPath, *dockerBin, logger); err != nil {
		logger.Error("agentfleetd: fatal", "error", err)
		os.Exit(1)
	}
}

func newLogger(logFile string) *slog.Logger {
	var w = os.Stderr
	if logFile == "" {
		return slog.New(slog.NewJSONHandler(w, nil))
	}
	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    50, // MB
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(rotator, nil))
}

func run(addr, configPath, projectRoot, boardRoot, credentialsPath, dockerBin string, logger *slog.Logger) error {
	b, err := board.New(boardRoot)
	if err != nil {
		return fmt.Errorf("open board: %w", err)
	}
	lockStore, err := lock.New(boardRoot)
	if err != nil {
		return fmt.Errorf("open lock store: %w", err)
	}
	rt := runtime.New(dockerBin)
	sup := fleet.New(rt)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.Reconstruct(ctx); err != nil {
		logger.Warn("agentfleetd: reconstruct fleet state from running containers", "error", err)
	} else {
		logger.Info("agentfleetd: reconstructed fleet state", "agents", len(sup.Snapshot()))
	}

	go sup.RunHealthLoop(ctx)

	srv, err := server.New(b, lockStore, sup, rt, server.Options{
		ConfigPath:      configPath,
		ProjectRoot:     projectRoot,
		BoardRoot:       boardRoot,
		CredentialsPath: credentialsPath,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("agentfleetd: listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("agentfleetd: shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
