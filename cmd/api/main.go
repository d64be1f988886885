package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spacesedan/racepulse/internal/api"
	"github.com/spacesedan/racepulse/internal/app"
	"github.com/spacesedan/racepulse/internal/clients"
	"github.com/spacesedan/racepulse/internal/monitoring"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := app.Init()

	ctx, cancel := app.SignalContext()
	defer cancel()

	if cfg.AppEnv != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine, err := app.NewEngine(cfg)
	if err != nil {
		slog.Error("[Main] Failed to build scoring engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer clients.CloseHugot()

	store, sqlite, err := app.OpenStore(cfg)
	if err != nil {
		slog.Error("[Main] Failed to open result store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	deps := api.Deps{
		Engine: engine,
		Store:  store,
	}
	if sqlite != nil {
		deps.Races = sqlite
	}

	if cfg.NeuralBackend == "remote" && engine.NeuralEnabled() {
		healthy := &atomic.Bool{}
		deps.NeuralHealthy = healthy
		go monitoring.MonitorClassifierHealth(ctx,
			clients.GetHuggingFaceClient(cfg.NeuralEndpoint),
			healthy,
			monitoring.HEALTHCHECK_TIMER*time.Second)
	}

	go monitoring.ReportProgress(ctx, engine, cfg.ProgressPeriod)

	srv := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("[Main] API listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("[Main] API server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("[Main] Shutting down API")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("[Main] Graceful shutdown failed", slog.String("error", err.Error()))
	}
}
