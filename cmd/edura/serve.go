package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/edura/edura-core/internal/config"
	"github.com/edura/edura-core/internal/history"
	"github.com/edura/edura-core/internal/llm"
	"github.com/edura/edura-core/internal/logger"
	"github.com/edura/edura-core/internal/metrics"
	"github.com/edura/edura-core/internal/server"
	"github.com/edura/edura-core/internal/session"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFile(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger.Setup(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	provider, err := llm.Select(cfg.LLM)
	if err != nil {
		return err
	}

	m := metrics.NewCollector(nil)
	// no client timeout: streams are bounded by the relay deadline instead
	relay := llm.NewRelay(&http.Client{}, cfg.LLM.Timeout, m)

	store := session.NewMemoryStore()
	sessions := session.NewService(store, provider, relay, m)

	if cfg.Session.TTL > 0 {
		janitor, err := session.NewJanitor(store, cfg.Session.TTL, cfg.Session.SweepInterval, m)
		if err != nil {
			return err
		}
		janitor.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			janitor.Stop(ctx)
		}()
	}

	hist := history.Open(cfg.History.DBPath)
	defer hist.Close()

	e := server.New(server.NewHandler(server.Deps{
		Provider: provider,
		Relay:    relay,
		Sessions: sessions,
		History:  hist,
		Model:    cfg.LLM.Model,
	}), m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server",
			"address", addr,
			"provider", provider.Name(),
			"upstream_timeout", cfg.LLM.Timeout.String(),
			"session_ttl", cfg.Session.TTL.String(),
		)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.L.Error("failed to shutdown server gracefully", logger.Err(err))
		return err
	}
	logger.L.Info("server stopped")
	return nil
}
