package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"AccountPlatform/pkg/config"
	"AccountPlatform/pkg/database"
	"AccountPlatform/pkg/health"
	"AccountPlatform/pkg/logger"
	"AccountPlatform/pkg/metrics"
	"AccountPlatform/pkg/rabbitmq"
	pkgredis "AccountPlatform/pkg/redis"
	"AccountPlatform/services/account-service/internal/cache"
	handler "AccountPlatform/services/account-service/internal/handler/http"
	"AccountPlatform/services/account-service/internal/pkg/jwt"
	"AccountPlatform/services/account-service/internal/pkg/password"
	notifications "AccountPlatform/services/account-service/internal/producer/rabbitmq"
	"AccountPlatform/services/account-service/internal/repository/postgres"
	redisrepo "AccountPlatform/services/account-service/internal/repository/redis"
	"AccountPlatform/services/account-service/internal/service"
)

// healthPollInterval период обновления статуса gRPC health сервиса
const healthPollInterval = 10 * time.Second

// newServeCmd запускает HTTP и gRPC серверы
func newServeCmd(load loadFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Запустить HTTP API и gRPC health сервис",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = appLogger.Sync() }()

			return serve(cmd.Context(), cfg, appLogger)
		},
	}
}

// dependencies внешние подключения сервиса
type dependencies struct {
	db     *database.Postgres
	redis  *pkgredis.Client
	rabbit *rabbitmq.Connection
}

func (d *dependencies) close(log logger.Logger) {
	if d.rabbit != nil {
		if err := d.rabbit.Close(); err != nil {
			log.Warn("Failed to close RabbitMQ connection", logger.Error(err))
		}
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			log.Warn("Failed to close Redis connection", logger.Error(err))
		}
	}
	if d.db != nil {
		d.db.Close()
	}
}

// connect устанавливает подключения к PostgreSQL, Redis и RabbitMQ
func connect(ctx context.Context, cfg *config.Config, log logger.Logger) (*dependencies, error) {
	deps := &dependencies{}

	db, err := database.Connect(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.db = db
	log.Info("Connected to PostgreSQL", logger.String("host", cfg.Database.Host))

	if cfg.Database.MigrateOnStart {
		if err := postgres.Migrate(ctx, db.Pool); err != nil {
			deps.close(log)
			return nil, err
		}
		log.Info("Migrations applied on start")
	}

	if cfg.Cache.Backend == "redis" {
		redisConfig := pkgredis.NewConfig()
		redisConfig.Addr = cfg.Redis.Addr
		redisConfig.Password = cfg.Redis.Password
		redisConfig.DB = cfg.Redis.DB
		if cfg.Redis.PoolSize > 0 {
			redisConfig.PoolSize = cfg.Redis.PoolSize
		}
		if cfg.Redis.MinIdleConn > 0 {
			redisConfig.MinIdleConn = cfg.Redis.MinIdleConn
		}
		redisConfig.MaxRetries = cfg.Redis.MaxRetries
		redisConfig.RetryInterval = cfg.RedisRetryInterval()

		client, err := pkgredis.Connect(ctx, redisConfig)
		if err != nil {
			deps.close(log)
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.redis = client
		log.Info("Connected to Redis", logger.String("addr", cfg.Redis.Addr))
	}

	rabbitConfig := rabbitmq.NewConfig()
	rabbitConfig.URL = cfg.RabbitMQ.URL
	rabbitConfig.Queue = cfg.RabbitMQ.Queue
	rabbitConfig.MaxRetries = cfg.RabbitMQ.MaxRetries
	rabbitConfig.PublishTimeout = cfg.PublishTimeout()

	conn, err := rabbitmq.Connect(ctx, rabbitConfig)
	if err != nil {
		deps.close(log)
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	deps.rabbit = conn
	log.Info("Connected to RabbitMQ", logger.String("queue", cfg.RabbitMQ.Queue))

	return deps, nil
}

// cacheStore выбирает хранилище кеша профилей
func cacheStore(cfg *config.Config, deps *dependencies) cache.Store {
	if cfg.Cache.Backend == "memory" || deps.redis == nil {
		return cache.NewMemoryStore()
	}
	return redisrepo.NewProfileStore(deps.redis.Client)
}

// healthChecker регистрирует проверки внешних зависимостей
func healthChecker(deps *dependencies) *health.DependencyChecker {
	checker := health.NewDependencyChecker(version, 3*time.Second)
	checker.Register("postgres", deps.db.HealthCheck)
	if deps.redis != nil {
		checker.Register("redis", deps.redis.HealthCheck)
	}
	checker.Register("rabbitmq", deps.rabbit.HealthCheck)
	return checker
}

func serve(ctx context.Context, cfg *config.Config, appLogger logger.Logger) error {
	appLogger.Info("Starting account service",
		logger.String("environment", cfg.Environment),
		logger.String("version", version),
	)

	tp := metrics.InitializeOpenTelemetry(cfg.Service.Name, version)
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			appLogger.Warn("Failed to shutdown tracer provider", logger.Error(err))
		}
	}()
	appMetrics := metrics.NewMetrics(cfg.Service.Name)

	deps, err := connect(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer deps.close(appLogger)

	hasher, err := password.New(cfg.Password.Algorithm, cfg.Password.BcryptCost)
	if err != nil {
		return err
	}

	producer := rabbitmq.NewProducer(deps.rabbit, &rabbitmq.Config{
		Queue:          cfg.RabbitMQ.Queue,
		PublishTimeout: cfg.PublishTimeout(),
	})

	accountService := service.NewAccountService(service.Config{
		Accounts:   postgres.NewAccountRepository(deps.db.Pool, hasher),
		Keys:       postgres.NewActivationKeyRepository(deps.db.Pool),
		Tokens:     jwt.NewManager(cfg.JWT.Secret, cfg.TokenTTL()),
		Hasher:     hasher,
		Profiles:   cache.NewProfileCache(cacheStore(cfg, deps), cfg.Cache.KeyPrefix, cfg.CacheTTL(), appLogger, appMetrics),
		Notifier:   notifications.NewNotificationProducer(producer, appLogger, appMetrics),
		PublicHost: cfg.Service.PublicHost,
		Logger:     appLogger,
	})

	checker := healthChecker(deps)
	router := handler.NewRouter(handler.NewHandler(accountService, appLogger), handler.RouterOptions{
		Logger:  appLogger,
		Metrics: appMetrics,
		Health:  checker,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	grpcServer := grpc.NewServer()
	healthServer := grpchealth.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	grpcAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", grpcAddr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	serverErrors := make(chan error, 2)

	go func() {
		appLogger.Info("Starting HTTP server", logger.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("http server failed: %w", err)
		}
	}()

	go func() {
		appLogger.Info("Starting gRPC server", logger.String("addr", grpcAddr))
		if err := grpcServer.Serve(lis); err != nil {
			serverErrors <- fmt.Errorf("grpc server failed: %w", err)
		}
	}()

	go watchHealth(ctx, checker, healthServer, cfg.Service.Name)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		appLogger.Info("Received shutdown signal", logger.String("signal", sig.String()))
	case runErr = <-serverErrors:
		appLogger.Error("Server failed, shutting down", logger.Error(runErr))
	case <-ctx.Done():
	}

	healthServer.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("HTTP server shutdown failed", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		appLogger.Info("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Shutdown timeout, forcing gRPC server stop")
		grpcServer.Stop()
	}

	appLogger.Info("Account service stopped")
	return runErr
}

// watchHealth переводит статус gRPC health сервиса по результатам проверок зависимостей
func watchHealth(ctx context.Context, checker health.HealthChecker, server *grpchealth.Server, serviceName string) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if !checker.Check(ctx).Healthy() {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		server.SetServingStatus("", status)
		server.SetServingStatus(serviceName, status)
	}

	update()
	ticker := time.NewTicker(healthPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			update()
		}
	}
}
