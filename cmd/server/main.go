package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/yuandi/fulfillment/internal/adapter/handler"
	"github.com/yuandi/fulfillment/internal/adapter/storage"
	"github.com/yuandi/fulfillment/internal/core/service"
	"github.com/yuandi/fulfillment/internal/infrastructure/config"
	"github.com/yuandi/fulfillment/internal/infrastructure/logger"
	"github.com/yuandi/fulfillment/internal/infrastructure/metrics"
	"github.com/yuandi/fulfillment/internal/infrastructure/migration"
	"github.com/yuandi/fulfillment/internal/port"
)

type txStore interface {
	port.TransactionScope
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultConfig().TimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	idempotency, closeIdem, err := openIdempotency(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeIdem()

	prom := metrics.NewPrometheus()

	alerter := service.NewStockAlerter(store, log, cfg.Alerts.QueueSize, service.WithMetrics(prom))
	alerter.Start(cfg.Alerts.Workers)
	defer alerter.Close()

	inventory := service.NewInventoryService(store, log, service.WithMetrics(prom), service.WithStockAlerts(alerter))
	orders := service.NewOrderService(store, idempotency, log, service.WithMetrics(prom), service.WithStockAlerts(alerter))
	cashbook := service.NewCashbookService(store, log, service.WithMetrics(prom))
	integrity := service.NewIntegrityValidator(store, log, service.WithMetrics(prom))

	if booked, err := cashbook.EnsureOpeningBalance(ctx, cfg.Ledger.OpeningBalance); err != nil {
		return fmt.Errorf("failed to book opening balance: %w", err)
	} else if booked {
		log.Info("opening balance booked", zap.Int64("amount", cfg.Ledger.OpeningBalance))
	}

	if cfg.Integrity.MonitorInterval > 0 {
		go integrity.Monitor(ctx, cfg.Integrity.MonitorInterval)
		log.Info("integrity monitor started", zap.Duration("interval", cfg.Integrity.MonitorInterval))
	}

	// gRPC
	var grpcServer *grpc.Server
	if cfg.GRPC.Port != "" {
		grpcServer = grpc.NewServer(grpc.UnaryInterceptor(handler.UnaryLogging(log)))
		handler.RegisterFulfillmentServer(grpcServer, handler.NewGRPCHandler(orders, integrity))

		lis, err := net.Listen("tcp", ":"+cfg.GRPC.Port)
		if err != nil {
			return fmt.Errorf("failed to listen on grpc port: %w", err)
		}
		go func() {
			log.Info("gRPC server listening", zap.String("port", cfg.GRPC.Port))
			if err := grpcServer.Serve(lis); err != nil {
				log.Error("gRPC server error", zap.Error(err))
			}
		}()
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handler.NewRouter(
		handler.NewHTTPHandler(inventory, orders, cashbook, integrity, store.Ping),
		handler.RouterConfig{
			Logger:         log,
			RateLimitRPS:   cfg.HTTP.RateLimitRPS,
			RateLimitBurst: cfg.HTTP.RateLimitBurst,
			Metrics:        prom.Handler(),
		},
	)
	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.HTTP.Port))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", zap.String("signal", sig.String()))
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", zap.Error(err))
	}
	log.Info("HTTP server stopped")

	if grpcServer != nil {
		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (txStore, func(), error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory store, data is lost on exit")
		return storage.NewMemoryStore(), func() {}, nil
	}

	dialect := storage.Dialect(cfg.Database.Driver)
	if cfg.App.AutoMigrate {
		if err := migrateUp(cfg, dialect, log); err != nil {
			return nil, nil, err
		}
	}

	db, err := sql.Open(dialect.DriverName(), cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", dialect, err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping %s: %w", dialect, err)
	}
	log.Info("connected to database", zap.String("driver", string(dialect)))

	return storage.NewSQLStore(db, dialect), func() {
		db.Close()
		log.Info("database connection closed")
	}, nil
}

// migrateUp runs on its own connection because closing the migrator closes
// the database handle too.
func migrateUp(cfg *config.Config, dialect storage.Dialect, log *zap.Logger) error {
	db, err := sql.Open(dialect.DriverName(), cfg.Database.MigrationDSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	m, err := migration.New(db, string(dialect), log)
	if err != nil {
		db.Close()
		return err
	}
	defer m.Close()
	return m.Up()
}

func openIdempotency(ctx context.Context, cfg *config.Config, log *zap.Logger) (port.IdempotencyStore, func(), error) {
	if cfg.Redis.Addr == "" {
		log.Info("redis disabled, idempotency keys kept in memory")
		return storage.NewMemoryIdempotencyStore(cfg.Redis.IdempotencyTTL), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	log.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))

	return storage.NewRedisIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL), func() {
		rdb.Close()
		log.Info("redis connection closed")
	}, nil
}
