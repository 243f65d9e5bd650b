package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybook/config"
	"github.com/Domenick1991/skybook/internal/cache"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/logger"
	"github.com/Domenick1991/skybook/internal/notify"
	"github.com/Domenick1991/skybook/internal/repository"
	"github.com/Domenick1991/skybook/internal/service/pricing"
	"github.com/Domenick1991/skybook/internal/service/seats"
	"github.com/Domenick1991/skybook/internal/worker"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logg, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PublishRetries, logg)
	defer producer.Close()
	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()

	txManager := repository.NewTxManager(pool, cfg.Tx.MaxAttempts, cfg.Tx.Backoff())

	seatService := seats.NewSeatService(repository.NewSeatRepository(pool), repository.NewHoldRepository(pool), txManager,
		seats.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
		seats.WithLogger(logg.Named("seats")),
	)
	pricingService := pricing.NewPricingService(repository.NewFlightRepository(pool), repository.NewAttemptRepository(pool), txManager,
		pricing.WithCache(redisCache),
		pricing.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
		pricing.WithLogger(logg.Named("pricing")),
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logg.Named("consumer"))
	defer consumer.Close()

	w := worker.New(seatService, pricingService,
		worker.WithConsumer(consumer, notify.NewSender(logg.Named("notify"))),
		worker.WithHoldInterval(time.Duration(cfg.Worker.HoldSweepSeconds)*time.Second),
		worker.WithSurgeInterval(time.Duration(cfg.Worker.SurgeSweepSeconds)*time.Second),
		worker.WithBatchSize(cfg.Worker.BatchSize),
		worker.WithLogger(logg.Named("worker")),
	)

	logg.Info("worker started")
	if err := w.Run(ctx); err != nil {
		logg.Fatal("worker stopped", zap.Error(err))
	}
	logg.Info("worker stopped")
}
