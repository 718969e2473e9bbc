package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/koman-maciej/insurance/cmd/policygate/cmd/cmdutil"
	"github.com/koman-maciej/insurance/internal/config"
	"github.com/koman-maciej/insurance/internal/server"
	"github.com/koman-maciej/insurance/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the public and internal listeners",
	Long: `Starts the public listener (token endpoint and gated REST routes) and the
internal listener (ungated user lookups for the policy gateway).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		shutdownTelemetry, err := telemetry.Init(cmd.Context(), cfg.Telemetry, logger.Named("telemetry"))
		if err != nil {
			return fmt.Errorf("initialize telemetry: %w", err)
		}

		bundle, err := cmdutil.NewBundle(cfg, logger)
		if err != nil {
			return err
		}

		if cfg.Credentials.Mode == config.CredentialsModeShared {
			logger.Warn("shared password credentials are enabled; every user authenticates with the same password")
		}

		corsOpts := server.DefaultCORSOptions(cfg.CORS.AllowedOrigins)
		public := newHTTPServer(cfg.Server.Addr, server.NewRouter(server.RouterOptions{
			Granter:       bundle.IAM,
			Authenticator: bundle.IAM,
			Enforcer:      bundle.Enforcer,
			Users:         bundle.Directory,
			Policies:      bundle.Gateway,
			Logger:        logger.Named("public"),
			CORSOptions:   &corsOpts,
		}))
		internal := newHTTPServer(cfg.Server.InternalAddr, server.NewInternalRouter(server.InternalRouterOptions{
			Users:  bundle.Directory,
			Logger: logger.Named("internal"),
		}))

		serverErrors := make(chan error, 2)
		for name, srv := range map[string]*http.Server{"public": public, "internal": internal} {
			go func() {
				logger.Info("starting listener", zap.String("listener", name), zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErrors <- fmt.Errorf("%s listener: %w", name, err)
				}
			}()
		}

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		var runErr error
		select {
		case runErr = <-serverErrors:
			logger.Error("listener failed", zap.Error(runErr))
		case sig := <-shutdown:
			logger.Info("shutting down gracefully", zap.String("signal", sig.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		for _, srv := range []*http.Server{public, internal} {
			if err := srv.Shutdown(ctx); err != nil {
				_ = srv.Close()
				runErr = errors.Join(runErr, fmt.Errorf("graceful shutdown of %s failed: %w", srv.Addr, err))
			}
		}

		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}

		logger.Info("server stopped")
		return runErr
	},
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
