package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/events"
	"storefront/internal/httpserver"
	"storefront/internal/idempotency"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/payment"
	addressrepo "storefront/internal/repository/address"
	categoryrepo "storefront/internal/repository/category"
	couponrepo "storefront/internal/repository/coupon"
	itemrepo "storefront/internal/repository/item"
	orderrepo "storefront/internal/repository/order"
	wishlistrepo "storefront/internal/repository/wishlist"
	zipcoderepo "storefront/internal/repository/zipcode"
	addresssvc "storefront/internal/service/address"
	cartsvc "storefront/internal/service/cart"
	catalogsvc "storefront/internal/service/catalog"
	checkoutsvc "storefront/internal/service/checkout"
	fulfillmentsvc "storefront/internal/service/fulfillment"
	wishlistsvc "storefront/internal/service/wishlist"
	"storefront/internal/validation"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.LogLevel, "storefront-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString, logger)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("init event publisher", zap.String("backend", cfg.EventsBackend), zap.Error(err))
	}
	defer publisher.Close()

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		logger.Fatal("init payment gateway", zap.String("gateway", cfg.PaymentGateway), zap.Error(err))
	}

	idemStore, err := newIdempotencyStore(cfg)
	if err != nil {
		logger.Fatal("init idempotency store", zap.String("backend", cfg.IdempotencyBackend), zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	validate := validation.New()

	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	itemRepo := itemrepo.NewPostgres(dbpool, logger)
	categoryRepo := categoryrepo.NewPostgres(dbpool, logger)
	addressRepo := addressrepo.NewPostgres(dbpool, logger)
	couponRepo := couponrepo.NewPostgres(dbpool, logger)
	zipcodeRepo := zipcoderepo.NewPostgres(dbpool, logger)
	wishlistRepo := wishlistrepo.NewPostgres(dbpool, logger)

	checkoutService := checkoutsvc.New(checkoutsvc.Deps{
		Orders:    orderRepo,
		Coupons:   couponRepo,
		Zipcodes:  zipcodeRepo,
		Gateway:   gateway,
		Publisher: publisher,
		Metrics:   m,
		Validator: validate,
		Logger:    logger,
	}, checkoutsvc.Options{
		Currency:         cfg.Currency,
		PlacementRetries: cfg.PlacementRetries,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		CatalogSvc:       catalogsvc.New(itemRepo, categoryRepo),
		CartSvc:          cartsvc.New(orderRepo, itemRepo, logger),
		CheckoutSvc:      checkoutService,
		FulfillmentSvc:   fulfillmentsvc.New(orderRepo, publisher, m, validate, logger),
		AddressSvc:       addresssvc.New(addressRepo, validate),
		WishlistSvc:      wishlistsvc.New(wishlistRepo, itemRepo),
		Metrics:          m,
		MetricsGatherer:  prometheus.DefaultGatherer,
		IdempotencyStore: idemStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		AdminToken:       cfg.AdminToken,
		CORSOrigins:      cfg.CORSOrigins,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

func newPublisher(cfg config.Config, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case "kafka":
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case "amqp":
		return events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	case "log", "":
		return events.NewLogPublisher(logger.Named("events")), nil
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.EventsBackend)
}

func newGateway(cfg config.Config, logger *zap.Logger) (payment.Gateway, error) {
	gw, err := payment.NewGateway(cfg.PaymentGateway, payment.StripeConfig{APIKey: cfg.StripeSecretKey, Logger: logger})
	if err != nil {
		return nil, err
	}
	if cfg.PaymentGateway == payment.GatewaySandbox {
		logger.Warn("using sandbox payment gateway, no money is captured")
	}
	return payment.WithTimeout(gw, cfg.ChargeTimeout), nil
}

func newIdempotencyStore(cfg config.Config) (idempotency.Store, error) {
	switch cfg.IdempotencyBackend {
	case "redis":
		client, err := idempotency.DialRedis(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return idempotency.NewRedisStore(client), nil
	case "memory", "":
		return idempotency.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown idempotency backend %q", cfg.IdempotencyBackend)
}
