package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/config"
	availGet "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/availability/get"
	bookingCancel "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/bookings/cancel"
	bookingConfirm "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/bookings/confirm"
	bookingGet "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/bookings/get"
	holdCreate "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/holds/create"
	holdRelease "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/holds/release"
	sessionCreate "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/sessions/create"
	sessionDelete "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/sessions/delete"
	sessionGet "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/sessions/get"
	sessionUpdate "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/sessions/update"
	ruleCreate "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/working_rules/create"
	ruleDelete "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/working_rules/delete"
	ruleGet "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/working_rules/get"
	ruleUpdate "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/http-server/handlers/working_rules/update"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/lock"
	svc "github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/service"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/storage/postgres"
	slogpretty "github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/handlers/slogPretty"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/middleware/mwLogger"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {

	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting API", slog.String("env", cfg.Env))
	log.Debug("Debug messages are enabled")

	loc, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		log.Error("Failed to load timezone", sl.Err(err))
		os.Exit(1)
	}

	storage, err := postgres.New(cfg.StoragePath)
	if err != nil {
		log.Error("Failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	locker, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("Failed to init redis lock", sl.Err(err))
		os.Exit(1)
	}

	service := svc.NewService(storage, locker, loc, cfg.Booking)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(cfg.Booking.SweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				n, err := service.SweepExpiredHolds(sweepCtx)
				if err != nil {
					log.Error("Hold sweep failed", sl.Err(err))
					continue
				}
				if n > 0 {
					log.Info("Expired holds swept", slog.Int64("count", n))
				}
			}
		}
	}()

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwLogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(CORS)

	// Working Rules
	router.Post("/working_rules", ruleCreate.New(log, service))
	router.Get("/working_rules/{id}", ruleGet.New(log, service))
	router.Put("/working_rules/{id}", ruleUpdate.New(log, service))
	router.Delete("/working_rules/{id}", ruleDelete.New(log, service))

	// Sessions
	router.Post("/sessions", sessionCreate.New(log, service))
	router.Get("/sessions/{id}", sessionGet.New(log, service))
	router.Put("/sessions/{id}", sessionUpdate.New(log, service))
	router.Delete("/sessions/{id}", sessionDelete.New(log, service))

	// Availability
	router.Get("/availability", availGet.New(log, service))

	// Holds
	router.Post("/holds", holdCreate.New(log, service))
	router.Delete("/holds/{token}", holdRelease.New(log, service))

	// Bookings
	router.Post("/bookings/confirm", bookingConfirm.New(log, service))
	router.Get("/bookings/{id}", bookingGet.New(log, service))
	router.Put("/bookings/{id}/cancel", bookingCancel.New(log, service))

	serv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	serverErrCh := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", slog.String("addr", cfg.Address))
		if err := serv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case err := <-serverErrCh:
		if err != nil {
			log.Error("HTTP server stopped unexpectedly", sl.Err(err))
		} else {
			log.Info("HTTP server stopped gracefully")
		}
	}

	stopSweep()

	shutdownTimeout := cfg.HTTPServer.ShutdownTimeout

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	log.Info("Shutting down HTTP server", slog.String("timeout", shutdownTimeout.String()))

	if err := serv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", sl.Err(err))
	} else {
		log.Info("Server shutdown complete")
	}

	if storage != nil {
		if err := storage.Close(); err != nil {
			log.Error("Failed to close storage", sl.Err(err))
		} else {
			log.Info("Storage closed")
		}
	}

	if locker != nil {
		if err := locker.Close(); err != nil {
			log.Error("Failed to close locker", sl.Err(err))
		} else {
			log.Info("Locker closed")
		}
	}

	log.Info("Shutdown finished, server stopped")

}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger
	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
