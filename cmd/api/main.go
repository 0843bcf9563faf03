package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/harliandi/sizefit/internal/config"
	"github.com/harliandi/sizefit/internal/converter"
	"github.com/harliandi/sizefit/internal/handler"
	"github.com/harliandi/sizefit/internal/middleware"
	"github.com/harliandi/sizefit/pkg/jpeg"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool := converter.NewWorkerPool(converter.New(cfg.OutputFormat, cfg.Tolerance()), cfg.WorkerCount)
	pool.Start()

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSec, cfg.RateLimitBurst)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(cfg, pool, limiter),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.Info().
		Str("addr", server.Addr).
		Int("max_upload_mb", cfg.MaxUploadMB).
		Int("max_concurrent", cfg.MaxConcurrent).
		Int("rate_limit", cfg.RateLimitPerSec).
		Int("workers", cfg.WorkerCount).
		Float64("tolerance_percent", cfg.TolerancePercent).
		Str("output_format", cfg.OutputFormat.String()).
		Bool("turbo_jpeg", jpeg.Turbo).
		Msg("starting sizefit API")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	pool.Stop()
	limiter.Stop()
}

// newRouter wires the endpoints behind the middleware stack, outermost first:
// security headers, request logging, panic recovery, per-IP rate limit and
// the global concurrency limit. The caller owns limiter and stops it.
func newRouter(cfg *config.Config, pool handler.Submitter, limiter *middleware.RateLimiter) http.Handler {
	h := handler.New(pool, cfg.MaxUploadMB)

	mux := http.NewServeMux()
	mux.HandleFunc("/resize", h.Resize)
	mux.HandleFunc("/health", h.Health)
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.Chain(mux,
		middleware.Security,
		middleware.Logger,
		middleware.Recovery,
		limiter.Middleware,
		middleware.ConcurrencyLimit(cfg.MaxConcurrent),
	)
}
