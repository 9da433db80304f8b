package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/personal/ad-lifecycle/internal/bootstrap"
	"github.com/personal/ad-lifecycle/internal/interfaces/http/handlers"
	"github.com/personal/ad-lifecycle/pkg/config"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

func main() {
	// Container health probe
	if len(os.Args) > 1 && os.Args[1] == "-health-check" {
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.LogLevel, cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	checks := map[string]handlers.Checker{
		"postgres": app.DB.PingContext,
	}
	checks["serving_reads"] = func(ctx context.Context) error {
		_, err := app.Reader.GetHealthStats(ctx)
		return err
	}
	if app.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}
	}

	router := setupRouter(cfg, logger)
	handlers.NewHealthHandler("ad-api", checks).RegisterRoutes(router)
	if cfg.Monitoring.Metrics.Enabled {
		router.GET(cfg.Monitoring.Metrics.Path, gin.WrapH(monitoring.PrometheusHandler()))
	}

	v1 := router.Group("/api/v1")
	handlers.NewAdvertisementHandler(app.Submission).RegisterRoutes(v1)
	handlers.NewWebhookHandler(app.Reconciler, app.Safety, bootstrap.WebhookVerifier(cfg.Payment)).RegisterRoutes(v1)
	handlers.NewModerationHandler(app.Approval).RegisterRoutes(v1)
	handlers.NewServingHandler(app.Selector).RegisterRoutes(v1)
	handlers.NewPricingHandler(app.Pricing).RegisterRoutes(v1)

	go cleanupSessionCache(ctx, app)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout(),
		WriteTimeout:   cfg.Server.WriteTimeout(),
		IdleTimeout:    cfg.Server.IdleTimeout(),
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logger.Infof("Starting Ad API server on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// cleanupSessionCache evicts expired L1 entries until ctx is done
func cleanupSessionCache(ctx context.Context, app *bootstrap.App) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			app.SessionCache.CleanupExpired()
		}
	}
}

func setupRouter(cfg *config.Config, logger *logger.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(logger))
	router.Use(monitoring.MetricsMiddleware())

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Signature")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: logger.Writer(),
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[%s] %s %s %d %s %s\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
				param.ClientIP,
			)
		},
	})
}
