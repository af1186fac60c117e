// -- cmd/serve.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/eid-agent/api/schemas"
	"github.com/xkilldash9x/eid-agent/internal/browser"
	"github.com/xkilldash9x/eid-agent/internal/observability"
	"github.com/xkilldash9x/eid-agent/internal/oracle"
	"github.com/xkilldash9x/eid-agent/internal/server"
	"github.com/xkilldash9x/eid-agent/internal/tasks"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the websocket agent service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(parent context.Context) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	classifier, err := oracle.NewGeminiOracle(cfg.Oracle, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize intent oracle: %w", err)
	}

	manager := browser.NewManager(ctx, cfg.Browser, logger)
	newDriver := func(ctx context.Context) (schemas.PageDriver, error) {
		return manager.NewSession(ctx)
	}
	agent := tasks.NewAgent(newDriver, cfg.Portal, logger)

	orchestrator := server.New(*cfg, classifier, agent, logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: orchestrator.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Listening for websocket sessions.", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, draining.")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown was not clean.", zap.Error(err))
		}
		if err := orchestrator.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Orchestrator shutdown was not clean.", zap.Error(err))
		}
		if err := manager.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Browser manager shutdown was not clean.", zap.Error(err))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	// Give stragglers a beat before the process exits; lumberjack and CDP
	// teardown are asynchronous.
	time.Sleep(100 * time.Millisecond)
	logger.Info("eid-agent stopped.")
	return nil
}
