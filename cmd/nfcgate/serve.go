package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/nfcgate/internal/healthsrv"
	"github.com/BrandonDHaskell/nfcgate/internal/httpapi"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway and dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("addr") {
				c.cfg.HTTPAddr = addr
			}
			return runServe(cmd.Context(), c)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides NFCGATE_HTTP_ADDR)")
	addReaderFlags(cmd, c)
	return cmd
}

func runServe(parent context.Context, c *cli) error {
	cfg, logger := c.cfg, c.logger

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var health *healthsrv.Server
	if cfg.GRPCAddr != "" {
		health = healthsrv.New(logger.Named("health"))
		go health.WatchStore(ctx, a.pingStore, 30*time.Second)
		go func() {
			if err := health.ListenAndServe(cfg.GRPCAddr); err != nil {
				logger.Error("grpc health server error", zap.Error(err))
			}
		}()
		defer health.Stop()
	}

	if cfg.SerialEnabled {
		var hooks []func(bool, string)
		if health != nil {
			hooks = append(hooks, health.SetReader)
		}
		reader := a.newReader(hooks...)
		go func() {
			// A dead reader never takes the HTTP side down with it.
			if err := reader.Run(ctx); err != nil {
				logger.Error("serial reader stopped", zap.Error(err))
			}
		}()
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:        logger.Named("http"),
		Addr:          cfg.HTTPAddr,
		Engine:        a.engine,
		StatusService: a.status,
		Metrics:       a.metrics.Handler(),
		CORSOrigins:   cfg.CORSOrigins,
		RateLimit:     cfg.RateLimit,
	})

	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("env", cfg.Env),
			zap.String("master_key", cfg.MasterKey))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
