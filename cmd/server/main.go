package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/asakaida/kanmon/internal/handlers"
	snapshot "github.com/asakaida/kanmon/internal/infrastructure/cache"
	"github.com/asakaida/kanmon/internal/infrastructure/config"
	"github.com/asakaida/kanmon/internal/infrastructure/database"
	"github.com/asakaida/kanmon/internal/infrastructure/logging"
	"github.com/asakaida/kanmon/internal/infrastructure/metrics"
	"github.com/asakaida/kanmon/internal/repositories/postgres"
	"github.com/asakaida/kanmon/internal/services/contenttypes"
	"github.com/asakaida/kanmon/internal/services/permission"
	"github.com/asakaida/kanmon/internal/services/providers"
	"github.com/asakaida/kanmon/internal/services/sanitize"
	"github.com/asakaida/kanmon/pkg/cache"
	"github.com/asakaida/kanmon/pkg/cache/memorycache"
	"github.com/asakaida/kanmon/pkg/cache/rediscache"
)

const defaultEnv = "dev"

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		logrus.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		return err
	}
	defer pg.Close()

	logger.WithFields(logrus.Fields{
		"user":     cfg.Database.User,
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Database,
	}).Info("connected to database")

	if cfg.Permissions.RunMigrations {
		if err := pg.RunMigrations(database.MigrationsPath); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	// Content types
	registry := contenttypes.NewRegistry()
	n, err := registry.LoadDir(cfg.Permissions.SchemasDir)
	if err != nil {
		return fmt.Errorf("failed to load content types: %w", err)
	}
	logger.WithFields(logrus.Fields{"dir": cfg.Permissions.SchemasDir, "count": n}).Info("content types loaded")

	// Providers
	actions, conditions, err := newProviders(ctx, cfg.Permissions)
	if err != nil {
		return err
	}

	// Metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector)

	// Engine
	engine := permission.NewEngine(conditions,
		permission.WithLogger(logger),
		permission.WithRecorder(metrics.NewEvaluationRecorder(collector, exporter)),
	)
	permission.RegisterAdminHooks(engine, actions)

	// Repositories
	permissionRepo := postgres.NewPostgresPermissionRepository(pg.DB)
	roleRepo := postgres.NewPostgresRoleRepository(pg.DB)
	if roles, err := roleRepo.List(ctx); err == nil {
		logger.WithField("count", len(roles)).Info("roles available")
	}

	// Ability cache
	var abilityCache cache.Cache
	var snapshots *snapshot.SnapshotManager
	if cfg.Cache.Enabled {
		abilityCache, err = newCache(ctx, cfg)
		if err != nil {
			return err
		}
		defer abilityCache.Close()
		collector.SetCache(abilityCache)

		refresh := time.Duration(cfg.Cache.SnapshotRefreshSeconds) * time.Second
		snapshots = snapshot.NewSnapshotManager(permissionRepo, cfg.Database.ConnectionString(), refresh, logger)
		snapshots.OnChange(func(token string) {
			logger.WithField("token", token).Debug("permissions changed, clearing ability cache")
			if err := abilityCache.Clear(context.Background()); err != nil {
				logger.WithError(err).Warn("failed to clear ability cache")
			}
		})
		if err := snapshots.Start(ctx); err != nil {
			return fmt.Errorf("failed to start snapshot manager: %w", err)
		}
		defer snapshots.Stop()

		logger.WithField("backend", cfg.Cache.Backend).Info("ability cache enabled")
	}

	serviceCfg := permission.ServiceConfig{
		Engine:      engine,
		Permissions: permissionRepo,
		Actions:     actions,
		Schemas:     registry,
		Cache:       abilityCache,
		CacheTTL:    time.Duration(cfg.Cache.TTLMinutes) * time.Minute,
		FieldPolicy: sanitize.ParseFieldPolicy(cfg.Permissions.FieldPolicy),
		Logger:      logger,
	}
	if snapshots != nil {
		serviceCfg.Tokens = snapshots
	}
	service := permission.NewService(serviceCfg)

	// Create gRPC server
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(metrics.UnaryServerInterceptor(collector, exporter)))
	handlers.RegisterPermissionServiceServer(grpcServer, handlers.NewPermissionHandler(service, roleRepo, logger))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// Register reflection service (for grpcurl, etc.)
	reflection.Register(grpcServer)

	listener, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler:           metricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 2)
	go func() {
		logger.WithField("addr", listener.Addr().String()).Info("gRPC server listening")
		if err := grpcServer.Serve(listener); err != nil {
			serverErrors <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	go func() {
		logger.WithField("addr", metricsServer.Addr).Info("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()
	go updateGauges(ctx, exporter)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		logger.Info("initiating graceful shutdown")
	}

	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing stop")
		grpcServer.Stop()
	}

	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("failed to stop metrics server")
	}

	logger.Info("shutdown complete")
	return nil
}

func newProviders(ctx context.Context, cfg config.PermissionsConfig) (*providers.ActionProvider, *providers.ConditionProvider, error) {
	actions := providers.NewActionProvider()
	if err := actions.RegisterMany(ctx, providers.DefaultActions()); err != nil {
		return nil, nil, fmt.Errorf("failed to register actions: %w", err)
	}

	conditions := providers.NewConditionProvider()
	if err := conditions.RegisterMany(ctx, providers.DefaultConditions()); err != nil {
		return nil, nil, fmt.Errorf("failed to register conditions: %w", err)
	}

	if cfg.ConditionsFile != "" {
		celEngine, err := providers.NewCELEngine()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create CEL engine: %w", err)
		}
		defs, err := providers.NewCELConditionLoader(celEngine).LoadFile(filepath.Clean(cfg.ConditionsFile))
		if err != nil {
			return nil, nil, err
		}
		if err := conditions.RegisterMany(ctx, defs); err != nil {
			return nil, nil, fmt.Errorf("failed to register conditions: %w", err)
		}
	}

	actions.Freeze()
	conditions.Freeze()
	return actions, conditions, nil
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	ttl := time.Duration(cfg.Cache.TTLMinutes) * time.Minute

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		return rediscache.New(ctx, &rediscache.Config{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Prefix:     cfg.Redis.Prefix,
			DefaultTTL: ttl,
		})
	default:
		return memorycache.New(&memorycache.Config{
			MaxEntries:    cfg.Cache.MaxEntries,
			DefaultTTL:    ttl,
			EnableMetrics: cfg.Cache.Metrics,
		})
	}
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// updateGauges refreshes the cache gauges every 10 seconds
func updateGauges(ctx context.Context, exporter *metrics.PrometheusExporter) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exporter.Update()
		}
	}
}
