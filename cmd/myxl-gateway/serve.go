package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/example/myxl-gateway/internal/auth"
	"github.com/example/myxl-gateway/internal/clients"
	"github.com/example/myxl-gateway/internal/config"
	"github.com/example/myxl-gateway/internal/credential"
	"github.com/example/myxl-gateway/internal/gateway"
	"github.com/example/myxl-gateway/internal/grpcserver"
	"github.com/example/myxl-gateway/internal/handlers"
	"github.com/example/myxl-gateway/internal/qris"
	"github.com/example/myxl-gateway/internal/queue"
)

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Jalankan server HTTP (API + halaman web) dan gRPC health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return runServe(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "alamat HTTP, menimpa http_addr")
	return cmd
}

func newPublisher(cfg *config.Config, log *logrus.Entry) queue.Publisher {
	if len(cfg.Kafka.Brokers) == 0 {
		log.Info("kafka.brokers kosong, event pembelian tidak dipublish")
		return queue.Nop{}
	}
	return queue.New(cfg.Kafka.Brokers, cfg.Kafka.Topic)
}

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Entry) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := auth.OpenStore(ctx, cfg.TokenStore.Driver, cfg.TokenStore.DSN)
	if err != nil {
		return err
	}
	defer closeStore()

	events := newPublisher(cfg, log)
	defer events.Close()

	cred := credential.NewResolver(cfg.APIKeyEnv, cfg.RepoRoot, cfg.APIKeyFile)
	upstream := clients.NewMyXL(cfg.Upstream.BaseURL, cfg.Upstream.Timeout)

	svc := gateway.New(gateway.Deps{
		Registry: auth.NewRegistry(cred, store),
		Auth:     upstream,
		Catalog:  upstream,
		Payment:  upstream,
		Render:   qris.PNGBase64,
		Events:   events,
		Log:      log,
	})

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: handlers.NewRouter(handlers.Deps{
			Gateway:   svc,
			State:     svc,
			StaticDir: filepath.Join(cfg.RepoRoot, cfg.StaticDir),
			Log:       log,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcSrv := grpcserver.New(svc, log)
	go func() {
		log.WithField("addr", cfg.GRPCAddr).Info("gRPC health listening")
		if err := grpcserver.Serve(grpcSrv, cfg.GRPCAddr); err != nil {
			log.WithError(err).Error("gRPC server stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"addr":        cfg.HTTPAddr,
		"token_store": cfg.TokenStore.Driver,
		"api_key_set": svc.APIKeySet(),
	}).Info("myxl-gateway listening")
	return serveUntilDone(ctx, server, server.ListenAndServe, grpcSrv.GracefulStop, log)
}

// serveUntilDone runs serve until ctx is done, then shuts server down and
// calls stop. It returns only after in-flight requests have drained.
func serveUntilDone(ctx context.Context, server *http.Server, serve func() error, stop func(), log *logrus.Entry) error {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		log.Info("shutting down server...")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(sctx); err != nil {
			log.WithError(err).Error("HTTP server shutdown")
		}
		stop()
	}()

	if err := serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-drained
	return nil
}
