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

	"slot_watch/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return app.ExitFatal
	}
	defer bootstrap.Close()

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Supervisor server (state, stop, metrics, pprof)
	if addr := bootstrap.Config.Supervisor.Listen; addr != "" {
		srv := &http.Server{Addr: addr, Handler: bootstrap.SupervisorHandler()}
		go func() {
			slog.Info("🕵️ Supervisor server started", slog.String("addr", addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Supervisor server failed", slog.Any("error", err))
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
	}

	// 4. Monitoring session (blocks until stop, signal or port failure)
	slog.InfoContext(ctx, "✨ Slot watch running. Press Ctrl+C to exit.")
	if err := bootstrap.Run(ctx); err != nil {
		code := app.ExitCode(err)
		slog.Error("❌ Session ended with error", slog.Any("error", err), slog.Bool("retriable", code == app.ExitRetry))
		return code
	}

	slog.Info("👋 Shutting down gracefully...")
	return app.ExitOK
}
