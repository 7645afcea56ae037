package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	c "github.com/vendlyapp/selfcheckout/internal/cache"
	"github.com/vendlyapp/selfcheckout/internal/catalog"
	"github.com/vendlyapp/selfcheckout/internal/checkout"
	"github.com/vendlyapp/selfcheckout/internal/config"
	h "github.com/vendlyapp/selfcheckout/internal/http"
	"github.com/vendlyapp/selfcheckout/internal/logger"
	"github.com/vendlyapp/selfcheckout/internal/persist"
	"github.com/vendlyapp/selfcheckout/internal/poller"
	"github.com/vendlyapp/selfcheckout/internal/promo"
	"github.com/vendlyapp/selfcheckout/internal/repository"
	s "github.com/vendlyapp/selfcheckout/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "selfcheckout: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return err
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx := context.Background()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())

	repo := repository.NewMongoRepository(mongoDB)
	if err := repository.EnsureIndexes(ctx, repo); err != nil {
		return err
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.DBName))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.Redis.Addr))

	registries := persist.NewAdapter(repo, c.NewRedisCache(redisClient), log)

	if err := os.MkdirAll(filepath.Dir(cfg.Catalog.DBPath), 0o755); err != nil {
		return fmt.Errorf("failed to create catalog directory: %w", err)
	}
	products, err := catalog.NewSQLiteRepository(cfg.Catalog.DBPath, cfg.Catalog.DefaultCurrency)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(); err != nil {
		return err
	}

	validator, closeValidator, err := newValidator(cfg, log)
	if err != nil {
		return err
	}
	defer closeValidator()

	submitter := checkout.NewKafkaSubmitter(cfg.Kafka.SubmissionTopic, log, cfg.Kafka.Brokers...)
	defer submitter.Close()

	svc := s.NewCartService(registries, products, validator, submitter, cfg.VATRate, log)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	orderEvents := poller.NewPoller(svc, log, cfg.Kafka.OrderEventsTopic, cfg.Kafka.ConsumerGroup, cfg.Kafka.Brokers...)
	go orderEvents.Run(bgCtx)
	go svc.RunJanitor(bgCtx, cfg.JanitorInterval, cfg.SessionIdleTTL)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.NewRouter(svc, cfg.RequestTimeout, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("selfcheckout starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	stopBackground()
	orderEvents.Close()

	log.Info("server exited")
	return nil
}

func newValidator(cfg *config.Config, log *zap.Logger) (promo.Validator, func(), error) {
	switch cfg.Promo.Source {
	case config.PromoSourceHTTP:
		log.Info("validating promo codes over HTTP", zap.String("url", cfg.Promo.ServiceURL))
		return promo.NewHTTPValidator(cfg.Promo.ServiceURL, cfg.Promo.Timeout, log), func() {}, nil
	default:
		v, err := promo.NewPostgresValidator(&promo.Credentials{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			DBName:   cfg.Database.DBName,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := v.RunMigrations(); err != nil {
			v.Close()
			return nil, nil, err
		}
		log.Info("validating promo codes against Postgres", zap.String("host", cfg.Database.Host))
		return v, func() { v.Close() }, nil
	}
}
