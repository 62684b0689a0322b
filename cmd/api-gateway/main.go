package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/erp-status-api/api/swagger"
	"github.com/noah-isme/erp-status-api/internal/events"
	"github.com/noah-isme/erp-status-api/internal/models"
	"github.com/noah-isme/erp-status-api/internal/repository"
	"github.com/noah-isme/erp-status-api/internal/service"
	"github.com/noah-isme/erp-status-api/pkg/cache"
	"github.com/noah-isme/erp-status-api/pkg/config"
	"github.com/noah-isme/erp-status-api/pkg/database"
	"github.com/noah-isme/erp-status-api/pkg/jobs"
	"github.com/noah-isme/erp-status-api/pkg/logger"
	"github.com/noah-isme/erp-status-api/pkg/messaging"
)

// @title ERP Status API
// @version 1.0.0
// @description Status change workflow and stock access tokens for the ERP back office.
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	redisClient, err = cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		if cfg.AccessTokens.Backend == config.TokenBackendRedis {
			return fmt.Errorf("connect redis: %w", err)
		}
		logr.Warn("redis unavailable, reason cache disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	metrics := service.NewMetricsService()
	bus := events.NewBus(logr.Named("events"))

	var reasonCache *service.CacheService
	if redisClient != nil {
		reasonCache = service.NewCacheService(repository.NewCacheRepository(redisClient, "erp-status"), metrics, cfg.StatusManagement.ReasonCacheTTL, logr)
	}

	var leases interface {
		Acquire(ctx context.Context, token *models.StockAccessToken, ttl time.Duration) (bool, error)
		Lookup(ctx context.Context, token string) (*models.StockAccessToken, error)
		Release(ctx context.Context, token *models.StockAccessToken, outcome models.TokenOutcome) (bool, error)
		Outcome(ctx context.Context, token string) (models.TokenOutcome, error)
		Holder(ctx context.Context, key string) (string, error)
	}
	if cfg.AccessTokens.Backend == config.TokenBackendMemory {
		logr.Warn("stock access tokens use the in-process lease store; run a single instance")
		leases = repository.NewMemoryLeaseStore()
	} else {
		leases = repository.NewRedisLeaseStore(redisClient)
	}

	reasons := service.NewStatusReasonService(repository.NewStatusReasonRepository(db), reasonCache, cfg.StatusManagement.ReasonCacheTTL, nil, logr.Named("reasons"))
	statusMgmt := service.NewStatusManagementService(repository.NewStatusTransitionRepository(db), reasons, bus, logr.Named("status"),
		service.WithSystemUserID(cfg.StatusManagement.SystemUserID),
		service.WithStatusMetrics(metrics),
	)
	recordRepo := repository.NewStatusRecordRepository(db)
	tokens := service.NewAccessTokenService(leases, logr.Named("tokens"),
		service.WithTokenTTL(cfg.AccessTokens.DefaultTTL, cfg.AccessTokens.MaxTTL),
		service.WithTokenWait(cfg.AccessTokens.WaitInterval, cfg.AccessTokens.MaxWait),
		service.WithTokenMetrics(metrics),
	)
	defer tokens.Close()

	if cfg.Events.ForwardingEnabled {
		producer := messaging.NewProducer(cfg.Events.Brokers, cfg.Events.Topic)
		defer producer.Close()
		forwarder := service.NewEventForwarder(producer, metrics, logr.Named("forwarder"), jobs.QueueConfig{
			Workers:    cfg.Events.Workers,
			MaxRetries: cfg.Events.MaxRetries,
			RetryDelay: cfg.Events.RetryDelay,
		})
		forwarder.Start(ctx, bus)
		defer forwarder.Stop()
		logr.Info("forwarding domain events", zap.Strings("brokers", cfg.Events.Brokers), zap.String("topic", cfg.Events.Topic))
	}

	deps := routeDeps{
		auth: service.NewAuthService(logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		metrics:    metrics,
		reasons:    reasons,
		records:    service.NewStatusRecordService(recordRepo, logr),
		exporter:   service.NewStatusExportService(recordRepo, logr),
		statusMgmt: statusMgmt,
		tokens:     tokens,
		stock:      service.NewStockService(repository.NewStockRepository(db), tokens, statusMgmt, bus, logr.Named("stock")),
		hr:         service.NewHRService(repository.NewEmployeeRepository(db), statusMgmt, bus, logr.Named("hr")),
		accounting: service.NewAccountingService(repository.NewInvoiceRepository(db), statusMgmt, bus, logr.Named("accounting")),
		assets:     service.NewAssetService(repository.NewAssetRepository(db), statusMgmt, logr.Named("assets")),
		checks: map[string]func() error{
			"postgres": func() error { return db.PingContext(ctx) },
		},
	}
	if redisClient != nil {
		deps.checks["redis"] = func() error { return redisClient.Ping(ctx).Err() }
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newRouter(cfg, logr, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "token_backend", cfg.AccessTokens.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
