// Command resetd serves the password reset API.
//
// Configuration comes from the environment (and .env); see internal/config.
// Run with -migrate up|down to apply the token table migrations and exit.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goReset "github.com/MrEthical07/goReset"
	"github.com/MrEthical07/goReset/httpapi"
	"github.com/MrEthical07/goReset/internal/config"
	"github.com/MrEthical07/goReset/metrics/export/prometheus"
	"github.com/go-chi/chi/v5"
)

func main() {
	migrateDir := flag.String("migrate", "", "apply token migrations (up or down) and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *migrateDir != "" {
		if err := goReset.RunMigrations(cfg.DatabaseURL, *migrateDir); err != nil {
			log.Fatalf("migrate %s: %v", *migrateDir, err)
		}
		log.Printf("migrate %s: done", *migrateDir)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatalf("init: %v", err)
	}
	defer app.close()

	go app.engine.RunSweeper(ctx)

	root := chi.NewRouter()
	root.Mount("/", httpapi.NewRouter(app.engine, httpapi.Options{
		ReturnToken:    cfg.ReturnTokenToClient,
		TenantHeader:   cfg.TenantHeader,
		AllowedOrigins: cfg.AllowedOrigins(),
		RetryAfter:     cfg.ResetRateWindow,
		RequestLog:     cfg.Env != "production",
	}))
	if cfg.MetricsEnabled {
		root.Handle("/metrics", prometheus.NewPrometheusExporter(app.engine).Handler())
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("resetd listening on %s (tokens: %s)", cfg.HTTPAddr, cfg.TokenBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down resetd...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("resetd stopped")
}
