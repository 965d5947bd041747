package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-finder/internal/app"
	"stock-finder/internal/audit"
	"stock-finder/internal/auth"
	"stock-finder/internal/config"
	"stock-finder/internal/httpapi"
	"stock-finder/internal/jobs"
	"stock-finder/pkg/logger"

	"github.com/gin-gonic/gin"
)

// auditRetention bounds the in-memory audit trail.
const auditRetention = 10000

const jobSweepInterval = 10 * time.Minute

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	a, err := app.New(rootCtx, cfg, app.Options{BaseContext: logger.With(rootCtx, log)})
	if err != nil {
		log.Error("app init failed", "err", err)
		os.Exit(1)
	}
	defer a.Close()
	go a.Calls.Jobs().Sweep(rootCtx, jobSweepInterval, jobs.DefaultRetention)
	if cfg.Bland.APIKey == "" {
		log.Warn("BLAND_API_KEY not set, calls will fail")
	}

	h := httpapi.Handlers{
		Catalog:         a.Catalog,
		Directory:       a.Directory,
		Geo:             a.Geo,
		Calls:           a.Calls,
		Websites:        a.Websites,
		Audit:           audit.NewService(audit.NewMemoryRepo(auditRetention)),
		CallDelay:       cfg.Calls.Delay,
		WebsiteFallback: cfg.Calls.WebsiteFallback,
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))
	registerRoutes(r, h, auth.RequireAccessToken(authManager))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Single calls block until the provider finishes the call.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Batches observe rootCtx and mark their remaining targets failed.
	done := make(chan struct{})
	go func() {
		a.Calls.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		log.Warn("batches still running at shutdown deadline")
	}
	log.Info("shutdown complete")
}
