package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dex-assistant/internal/alerts"
	"dex-assistant/internal/assistant"
	"dex-assistant/internal/auth"
	"dex-assistant/internal/config"
	"dex-assistant/internal/exchange"
	"dex-assistant/internal/gateway"
	"dex-assistant/internal/logger"
	"dex-assistant/internal/market"
	"dex-assistant/internal/metrics"
	"dex-assistant/internal/positions"
)

var processStart = time.Now()

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	lg := logger.Init("assistant", levelFromEnv())
	lg.Info("starting")

	cfg := config.Load()

	prom := metrics.New()
	go func() {
		if err := metrics.Serve(cfg.MetricsAddr); err != nil {
			log.Printf("[main] metrics server stopped: %v", err)
		}
	}()

	signer := auth.NewSigner(cfg.ExchangeBaseURL, cfg.AccountID, cfg.OrderlyKey, cfg.OrderlySecret)
	if !signer.Configured() {
		lg.Warn("exchange credentials missing, using public endpoints only")
	}

	client := exchange.New(exchange.Config{
		Signer:     signer,
		Metrics:    prom,
		CacheTTL:   cfg.CacheTTL,
		RateWindow: cfg.RateWindow,
	})
	agg := market.New(client, cfg.PollInterval)
	gen := alerts.New(agg, prom)

	completer := assistant.NewHTTPCompleter(cfg.CompletionURL, cfg.CompletionKey, cfg.CompletionModel)
	chat := assistant.NewService(agg, completer, prom)
	pos := positions.New(client)

	hub := gateway.NewHub(agg, gen, prom, cfg.AlertInterval)

	mux := http.NewServeMux()
	gateway.RegisterRoutes(mux, hub, chat, agg, pos, processStart)

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		lg.Info("serving", "addr", cfg.ListenAddr, "symbols", cfg.ParseSymbols())
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	<-sigCh
	lg.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("[main] shutdown: %v", err)
	}
}

func levelFromEnv() slog.Level {
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
