package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skybook/api"
	"github.com/Domenick1991/skybook/config"
	"github.com/Domenick1991/skybook/internal/bootstrap"
	"github.com/Domenick1991/skybook/internal/cache"
	"github.com/Domenick1991/skybook/internal/kafka"
	"github.com/Domenick1991/skybook/internal/logger"
	"github.com/Domenick1991/skybook/internal/migrations"
	"github.com/Domenick1991/skybook/internal/repository"
	"github.com/Domenick1991/skybook/internal/service/booking"
	"github.com/Domenick1991/skybook/internal/service/flights"
	"github.com/Domenick1991/skybook/internal/service/payments"
	"github.com/Domenick1991/skybook/internal/service/pricing"
	"github.com/Domenick1991/skybook/internal/service/seats"
	"github.com/Domenick1991/skybook/internal/service/wallet"
	"github.com/gin-gonic/gin"
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

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Database.RunMigrations {
		if err := migrations.Up(ctx, cfg.Database.DSN()); err != nil {
			logg.Fatal("apply migrations", zap.Error(err))
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		logg.Fatal("parse postgres dsn", zap.Error(err))
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logg.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		logg.Warn("redis unavailable, falling back to database locks", zap.Error(err))
	}

	producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.PublishRetries, logg)
	defer producer.Close()

	txManager := repository.NewTxManager(pool, cfg.Tx.MaxAttempts, cfg.Tx.Backoff())

	flightRepo := repository.NewFlightRepository(pool)
	seatRepo := repository.NewSeatRepository(pool)
	holdRepo := repository.NewHoldRepository(pool)
	passengerRepo := repository.NewPassengerRepository(pool)
	walletRepo := repository.NewWalletRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)

	seatService := seats.NewSeatService(seatRepo, holdRepo, txManager,
		seats.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
		seats.WithDefaultHoldMinutes(cfg.Booking.DefaultHoldMinutes),
		seats.WithLogger(logg.Named("seats")),
	)
	walletService := wallet.NewWalletService(walletRepo, passengerRepo, txManager,
		wallet.WithOpeningBalance(cfg.Booking.OpeningBalance),
	)
	pricingService := pricing.NewPricingService(flightRepo, attemptRepo, txManager,
		pricing.WithCache(redisCache),
		pricing.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
		pricing.WithLogger(logg.Named("pricing")),
	)
	flightService := flights.NewFlightService(flightRepo,
		flights.WithCache(redisCache),
		flights.WithPageSize(cfg.Booking.SearchPageSize),
		flights.WithLogger(logg.Named("flights")),
	)
	bookingService := booking.NewBookingService(bookingRepo, passengerRepo, flightRepo, seatService, walletService, txManager,
		booking.WithCache(redisCache,
			time.Duration(cfg.Booking.SeatLockSeconds)*time.Second,
			time.Duration(cfg.Booking.IdempotencyTTLMinutes)*time.Minute,
		),
		booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithLogger(logg.Named("booking")),
	)
	paymentService := payments.NewPaymentService(paymentRepo, bookingRepo, txManager,
		payments.WithProducer(producer, cfg.Kafka.NotificationsTopic),
		payments.WithLogger(logg.Named("payments")),
	)

	handlers := api.Handlers{
		Holds:    api.NewHoldHandler(seatService),
		Bookings: api.NewBookingHandler(bookingService),
		Pricing:  api.NewPricingHandler(pricingService),
		Wallet:   api.NewWalletHandler(walletService),
		Flights:  api.NewFlightHandler(flightService, seatService),
		Payments: api.NewPaymentHandler(paymentService),
	}

	if err := bootstrap.Run(ctx, cfg.HTTP, logg, handlers); err != nil {
		logg.Fatal("server error", zap.Error(err))
	}
}
