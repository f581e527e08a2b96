package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"

	"github.com/nhle/orderbell/internal/auth"
	"github.com/nhle/orderbell/internal/bus"
	"github.com/nhle/orderbell/internal/config"
	"github.com/nhle/orderbell/internal/hub"
	"github.com/nhle/orderbell/internal/order"
	"github.com/nhle/orderbell/internal/store"
	transporthttp "github.com/nhle/orderbell/internal/transport/http"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Accept orders and push notifications to connected staff",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, *cfgPath)
		},
	}
}

func serve(ctx context.Context, cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening order store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close order store")
		}
	}()

	// serve only verifies tokens; minting happens in `orderbelld token`
	jwtCfg := cfg.JWT
	jwtCfg.PrivateKeyPath = ""
	provider, err := auth.NewProvider(jwtCfg)
	if err != nil {
		return fmt.Errorf("loading jwt keys: %w", err)
	}

	b, err := bus.New(ctx, bus.Options{
		Driver: cfg.Bus.Driver,
		Redis: bus.RedisConfig{
			Address:  cfg.Bus.Redis.Address,
			Password: cfg.Bus.Redis.Password,
			DB:       cfg.Bus.Redis.Database,
			Channel:  cfg.Bus.Redis.Channel,
		},
		AMQP: bus.AMQPConfig{
			URL:      cfg.Bus.RabbitMQ.URL(),
			Exchange: cfg.Bus.RabbitMQ.Exchange,
		},
	}, cfg.Retry)
	if err != nil {
		return fmt.Errorf("connecting %s bus: %w", cfg.Bus.Driver, err)
	}
	defer func() {
		if err := b.Close(); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to close bus")
		}
	}()

	h := hub.New(provider, hub.OptionsFrom(cfg.Hub))
	defer h.Close()
	if err := h.Relay(ctx, b); err != nil {
		return fmt.Errorf("subscribing hub to bus: %w", err)
	}

	policy, err := order.PolicyFrom(cfg.Orders)
	if err != nil {
		return err
	}
	svc := order.NewService(st, b, policy)

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Orders:   svc,
		Hub:      h,
		Verifier: provider,
		DB:       st,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zlog.Logger.Info().Str("addr", srv.Addr).Str("bus", cfg.Bus.Driver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// close websockets first; Shutdown does not wait for hijacked connections
	h.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}
	return nil
}
