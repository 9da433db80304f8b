package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/bootstrap"
	"github.com/personal/ad-lifecycle/pkg/config"
	mylogger "github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

// sweepFunc runs one pass and returns how many items it handled
type sweepFunc func(ctx context.Context) (int, error)

// Worker runs the maintenance sweeps on independent tickers
type Worker struct {
	maintenance *service.MaintenanceService
	logger      *mylogger.Logger
	config      *config.Config
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

// NewWorker creates a new Worker
func NewWorker(maintenance *service.MaintenanceService, logger *mylogger.Logger, config *config.Config) *Worker {
	return &Worker{
		maintenance: maintenance,
		logger:      logger,
		config:      config,
		stopChan:    make(chan struct{}),
	}
}

// Start launches one goroutine per sweep
func (w *Worker) Start(ctx context.Context) {
	wc := w.config.Worker
	batch := wc.BatchSize
	ttl := w.config.Payment.SessionTTL()

	w.logger.WithFields(mylogger.Fields{
		"archive_interval":        wc.ArchiveIntervalSeconds,
		"session_expiry_interval": wc.SessionExpiryIntervalSeconds,
		"serve_flush_interval":    wc.ServeFlushIntervalSeconds,
		"batch_size":              batch,
	}).Info("Starting ad worker")

	w.run(ctx, "archive", seconds(wc.ArchiveIntervalSeconds), func(ctx context.Context) (int, error) {
		return w.maintenance.ArchiveEnded(ctx, batch)
	})
	w.run(ctx, "session_expiry", seconds(wc.SessionExpiryIntervalSeconds), func(ctx context.Context) (int, error) {
		return w.maintenance.ExpireStaleSessions(ctx, ttl, batch)
	})
	w.run(ctx, "serve_flush", seconds(wc.ServeFlushIntervalSeconds), func(ctx context.Context) (int, error) {
		return w.maintenance.FlushServeLog(ctx, batch)
	})
}

// Stop signals every sweep and waits for in-flight passes
func (w *Worker) Stop() {
	w.logger.Info("Stopping ad worker...")

	close(w.stopChan)
	w.wg.Wait()

	w.logger.Info("Ad worker stopped")
}

func (w *Worker) run(ctx context.Context, name string, interval time.Duration, sweep sweepFunc) {
	entry := w.logger.WithComponent("worker").WithField("sweep", name)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopChan:
				return
			case <-ticker.C:
				handled, err := sweep(ctx)
				if err != nil {
					monitoring.RecordSystemError("worker_"+name, "error")
					entry.WithError(err).Error("Sweep failed")
					continue
				}
				if handled > 0 {
					entry.WithField("handled", handled).Debug("Sweep completed")
				}
			}
		}
	}()
}

func seconds(n int) time.Duration {
	if n <= 0 {
		n = 60
	}
	return time.Duration(n) * time.Second
}

func main() {
	// Container health probe
	if len(os.Args) > 1 && os.Args[1] == "-health-check" {
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	myLogger := mylogger.New(cfg.LogLevel, cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, myLogger)
	if err != nil {
		myLogger.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	worker := NewWorker(app.Maintenance, myLogger, cfg)
	worker.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	myLogger.Info("Shutting down worker...")
	worker.Stop()
	cancel()
	myLogger.Info("Worker exited")
}
