// Command konditiond serves the konditional control plane and
// evaluation API for the compiled-in application namespace.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TimurManjosov/konditional/codec"
	"github.com/TimurManjosov/konditional/hooks"
	"github.com/TimurManjosov/konditional/internal/api"
	"github.com/TimurManjosov/konditional/internal/config"
	"github.com/TimurManjosov/konditional/internal/flags"
	"github.com/TimurManjosov/konditional/internal/store"
	"github.com/TimurManjosov/konditional/internal/telemetry"
	"github.com/TimurManjosov/konditional/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[konditiond] config: %v", err)
	}

	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	snapStore, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("[konditiond] store: %v", err)
	}
	defer snapStore.Close()

	reg := registry.New(flags.Namespace.Name(),
		registry.WithHistoryCapacity(cfg.HistoryCapacity),
		registry.WithLogger(hooks.NewStdLogger(hooks.LevelInfo, "konditiond")),
		registry.WithMetrics(telemetry.EvaluationSink{}))

	codecOpts := codec.Options{
		DefaultSalt: cfg.DefaultSalt,
		Logger:      hooks.NewStdLogger(hooks.LevelWarn, "codec"),
	}

	// Restore the last persisted snapshot, if any. A corrupt stored
	// document is fatal at startup: serving declared defaults
	// silently would mask it.
	if doc, err := snapStore.Latest(ctx, flags.Namespace.Name()); err == nil {
		m, err := codec.Decode(doc.Body, flags.Namespace, codecOpts)
		if err != nil {
			log.Fatalf("[konditiond] stored snapshot %s does not decode: %v", doc.Tag, err)
		}
		reg.Load(m.Snapshot())
		telemetry.SnapshotFlags.WithLabelValues(reg.Namespace()).Set(float64(m.Snapshot().Len()))
		log.Printf("[konditiond] restored snapshot %s (%d flags)", m.Snapshot().Tag(), m.Snapshot().Len())
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Fatalf("[konditiond] load stored snapshot: %v", err)
	}

	server := api.NewServer(api.Config{
		Namespace:      flags.Namespace,
		Registry:       reg,
		Store:          snapStore,
		AdminKey:       cfg.AdminAPIKey,
		AdminKeyHashes: cfg.AdminAPIKeyHashes,
		RateLimitPerIP: cfg.RateLimitPerIP,
		CodecOptions:   codecOpts,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("[konditiond] metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[konditiond] metrics server: %v", err)
		}
	}()
	go func() {
		log.Printf("[konditiond] api listening on %s (namespace %s)", cfg.HTTPAddr, flags.Namespace.Name())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[konditiond] api server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[konditiond] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)
}
