// Package bootstrap wires configuration into repositories, adapters and
// services shared by the API and worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/media"
	"github.com/personal/ad-lifecycle/internal/domain/notification"
	"github.com/personal/ad-lifecycle/internal/domain/payment"
	"github.com/personal/ad-lifecycle/internal/domain/pricing"
	"github.com/personal/ad-lifecycle/internal/domain/serving"
	"github.com/personal/ad-lifecycle/internal/infrastructure/cache"
	"github.com/personal/ad-lifecycle/internal/infrastructure/external"
	"github.com/personal/ad-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/ad-lifecycle/internal/infrastructure/storage"
	"github.com/personal/ad-lifecycle/pkg/config"
	"github.com/personal/ad-lifecycle/pkg/logger"
)

// App holds every wired component
type App struct {
	DB       *sql.DB
	Replicas []*sql.DB
	Redis    *redis.Client

	Ads          *persistence.PostgresAdRepository
	Sessions     *persistence.PostgresSessionRepository
	Reader       *persistence.ServingReadRepository
	ServeLog     serving.Log
	SessionCache *cache.SessionCache
	Notifier     notification.Notifier
	Gateway      payment.Gateway
	Media        media.Store

	Submission  *service.SubmissionService
	Reconciler  *service.PaymentReconciler
	Approval    *service.ApprovalGate
	Safety      *service.ContentSafetyService
	Selector    *service.ServingSelector
	Pricing     *service.PricingService
	Maintenance *service.MaintenanceService
}

// Build opens connections and wires services. Close releases them.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{}

	var err error
	app.DB, err = OpenDatabase(cfg.Database, cfg.Database.Host, cfg.Database.Port)
	if err != nil {
		return nil, err
	}
	for _, replica := range cfg.Database.ReadReplicas {
		db, err := OpenDatabase(cfg.Database, replica.Host, replica.Port)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to open read replica %s: %w", replica.Host, err)
		}
		app.Replicas = append(app.Replicas, db)
	}

	if cfg.Redis.Enabled {
		app.Redis, err = OpenRedis(ctx, cfg.Redis)
		if err != nil {
			app.Close()
			return nil, err
		}
	}

	engine, err := PricingEngine(cfg.Pricing)
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Media, err = MediaStore(ctx, cfg.Storage.S3, log)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Gateway = PaymentGateway(cfg.Payment, log)

	app.Ads = persistence.NewPostgresAdRepository(app.DB)
	app.Sessions = persistence.NewPostgresSessionRepository(app.DB)
	app.Reader, err = persistence.NewServingReadRepository(app.DB, app.Replicas, &persistence.ConnectionPoolConfig{
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute,
		ConnMaxIdleTime:    time.Duration(cfg.Database.ConnMaxIdleMinutes) * time.Minute,
		PreparedStatements: true,
	})
	if err != nil {
		app.Close()
		return nil, err
	}

	app.SessionCache = cache.NewSessionCache(app.Redis, &cache.CacheConfig{
		L1TTL:      time.Duration(cfg.Serving.SessionCacheL1Seconds) * time.Second,
		L2TTL:      time.Duration(cfg.Serving.SessionCacheL2Seconds) * time.Second,
		L1MaxItems: cfg.Serving.SessionCacheMaxItems,
		EnableL1:   true,
		EnableL2:   app.Redis != nil,
	})
	if app.Redis != nil {
		app.ServeLog = cache.NewRedisServeLog(app.Redis, cfg.Serving.ShardCount)
		app.Notifier = cache.NewRedisNotifier(app.Redis, cache.DefaultNotificationChannel)
	} else {
		log.Warn("Redis disabled: impressions are written directly and owner notifications are dropped")
	}

	currency := cfg.Pricing.Currency
	app.Submission = service.NewSubmissionService(app.Ads, app.Sessions, persistence.NewPostgresSubmissionWriter(app.DB), app.Gateway, engine, app.Media, currency, service.SystemClock, log)
	app.Reconciler = service.NewPaymentReconciler(app.Ads, app.Sessions, app.SessionCache, app.Notifier, service.SystemClock, log)
	app.Approval = service.NewApprovalGate(app.Ads, app.Notifier, service.SystemClock, log)
	app.Safety = service.NewContentSafetyService(app.Ads, app.Notifier, service.SystemClock, log)
	app.Selector = service.NewServingSelector(app.Reader, app.Ads, app.ServeLog, app.Media, cfg.Storage.S3.PresignTTL(), service.SystemClock, log)
	app.Pricing = service.NewPricingService(engine, currency)
	app.Maintenance = service.NewMaintenanceService(app.Ads, app.Sessions, app.Reconciler, app.ServeLog, service.SystemClock, log)

	return app, nil
}

// Close releases connections; safe on a partially built App
func (a *App) Close() {
	// The read repository owns the replicas once built
	if a.Reader != nil {
		_ = a.Reader.Close()
	} else {
		for _, replica := range a.Replicas {
			_ = replica.Close()
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

// OpenDatabase opens and pings a Postgres connection
func OpenDatabase(cfg config.DatabaseConfig, host string, port int) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN(host, port))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxOpenConns := cfg.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = 50
	}
	maxIdleConns := cfg.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 10
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", host, err)
	}
	return db, nil
}

// OpenRedis opens and pings a Redis client
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = 100
	}

	client := redis.NewClient(&redis.Options{
		Addr:            fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        poolSize,
		ConnMaxIdleTime: time.Duration(cfg.IdleTimeoutSeconds) * time.Second,
		ReadTimeout:     time.Duration(cfg.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:    time.Duration(cfg.WriteTimeoutSeconds) * time.Second,
		DialTimeout:     5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// PricingEngine builds the engine from the configured table, or the
// built-in table when none is configured
func PricingEngine(cfg config.PricingConfig) (*pricing.Engine, error) {
	table := pricing.DefaultTable()
	if cfg.IsSet() {
		var err error
		table, err = pricing.TableFromStrings(cfg.BasePrices, cfg.FormatMultipliers, cfg.RegionMultipliers)
		if err != nil {
			return nil, fmt.Errorf("invalid pricing table: %w", err)
		}
	}
	engine, err := pricing.NewEngine(table)
	if err != nil {
		return nil, fmt.Errorf("invalid pricing table: %w", err)
	}
	return engine, nil
}

// PaymentGateway returns the HTTP gateway when an API key is configured,
// otherwise the local mock
func PaymentGateway(cfg config.PaymentConfig, log *logger.Logger) payment.Gateway {
	if cfg.APIKey != "" && cfg.BaseURL != "" {
		log.WithField("provider", cfg.Provider).Info("Using HTTP payment gateway")
		return external.NewHTTPPaymentGateway(external.HTTPGatewayConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			Timeout:    cfg.Timeout(),
		})
	}
	log.Warn("Using mock payment gateway - set PAYMENT_API_KEY and PAYMENT_BASE_URL for production")
	return external.NewMockPaymentGateway(cfg.MockCheckoutURL)
}

// MediaStore returns the S3 store, or nil when no bucket is configured
func MediaStore(ctx context.Context, cfg config.S3Config, log *logger.Logger) (media.Store, error) {
	if cfg.Bucket == "" {
		log.Warn("No media bucket configured - media references are not verified")
		return nil, nil
	}
	store, err := storage.NewS3MediaStore(ctx, storage.S3Config{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		Endpoint:        cfg.Endpoint,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		UsePathStyle:    cfg.UsePathStyle,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create media store: %w", err)
	}
	return store, nil
}

// WebhookVerifier returns a signature check for payment callbacks, or nil
// when no secret is configured
func WebhookVerifier(cfg config.PaymentConfig) func(body []byte, signature string) bool {
	if cfg.WebhookSecret == "" {
		return nil
	}
	secret := cfg.WebhookSecret
	return func(body []byte, signature string) bool {
		return external.VerifySignature(secret, body, signature)
	}
}
