package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/waveforge/photonics-core/internal/designd"
	"github.com/waveforge/photonics-core/pkg/logger"
)

func main() {
	var httpAddr string
	var logLevel string
	var artifactDir string

	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&artifactDir, "artifact-dir", "", "base directory for per-run artifacts (empty disables snapshots)")
	flag.Parse()

	logger.SetDefault(logger.NewText(logLevel, os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	store := designd.NewRunStore()
	executor := designd.NewRunExecutor(store).
		WithNotifier(designd.NewNotifier()).
		WithArtifactRoot(artifactDir)

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           designd.NewHTTPServer(store, executor).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		// No WriteTimeout: metrics streams are long-lived SSE responses.
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown requested")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	// Let in-flight optimizations finish their status updates.
	executor.Wait()
}
