package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/safar/go-sql-shop/internal/cache"
	"github.com/safar/go-sql-shop/internal/config"
	"github.com/safar/go-sql-shop/internal/database"
	"github.com/safar/go-sql-shop/internal/events"
	"github.com/safar/go-sql-shop/internal/httpapi"
	"github.com/safar/go-sql-shop/internal/metrics"
	"github.com/safar/go-sql-shop/internal/models"
	"github.com/safar/go-sql-shop/internal/shop"
	"github.com/safar/go-sql-shop/internal/store"
	"github.com/safar/go-sql-shop/internal/store/memory"
	"github.com/safar/go-sql-shop/internal/store/postgres"
)

func setupLogger(cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithError(err).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}
	setupLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("server stopped with error")
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := log.WithField("component", "app")

	uow, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	shopMetrics := metrics.NewShopMetrics(prometheus.DefaultRegisterer)

	matrixCache := cache.MatrixCache(cache.Nop{})
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Warn("redis unavailable, comparison cache disabled")
		} else {
			matrixCache = cache.NewRedisMatrixCache(client, "sqlshop", cfg.Redis.ComparisonTTL)
			logger.WithField("addr", cfg.Redis.Addr).Info("comparison cache enabled")
		}
	}

	var publisher events.Publisher = events.NewLogPublisher(log.WithField("component", "events"))
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.OrderTopic)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			publisher = producer
			logger.WithField("brokers", cfg.Kafka.Brokers).Info("kafka producer initialized")
		}
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.WithError(err).Warn("failed to close event publisher")
		}
	}()

	ledger := shop.NewLedger(uow)
	handler := httpapi.NewHandler(httpapi.Services{
		Store: uow,
		Cart: shop.NewCartService(uow, cfg.Shop.CartAddValidation, shopMetrics,
			log.WithField("component", "cart")),
		Checkout: shop.NewCheckout(uow, ledger, publisher, shopMetrics,
			log.WithField("component", "checkout")),
		Orders: shop.NewLifecycle(uow, ledger, publisher, cfg.Shop.PageSize, cfg.Shop.MaxPageSize, shopMetrics,
			log.WithField("component", "orders")),
		Comparisons: shop.NewComparisons(uow, matrixCache, cfg.Shop.MaxComparisonItems, shopMetrics,
			log.WithField("component", "comparisons")),
	}, shopMetrics, log.WithField("component", "http"))

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      httpapi.NewRouter(handler, prometheus.DefaultGatherer),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(log.Fields{
			"port":    cfg.Server.Port,
			"backend": cfg.Store.Backend,
			"policy":  cfg.Shop.CartAddValidation,
		}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return server.Shutdown(shutdownCtx)
}

func openStore(cfg *config.Config, logger *log.Entry) (store.UnitOfWork, func(), error) {
	if cfg.Store.Backend == config.BackendMemory {
		s := memory.New()
		seedCatalog(s)
		logger.Warn("using in-memory store, data is lost on restart")
		return s, func() {}, nil
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("connected to database")

	return postgres.New(db, cfg.Database.TxMaxRetries), func() { _ = db.Close() }, nil
}

// seedCatalog gives the in-memory backend a small catalog to play with.
func seedCatalog(s *memory.Store) {
	gb, ghz, inch := "GB", "GHz", "in"

	laptop := s.PutItem(models.Item{SKU: "LAP-001", Name: "Laptop Pro 14", Price: 149900, Quantity: 10})
	ultra := s.PutItem(models.Item{SKU: "LAP-002", Name: "Laptop Air 13", Price: 109900, Quantity: 5})
	phone := s.PutItem(models.Item{SKU: "PHN-001", Name: "Phone X", Price: 79900, Quantity: 25})

	for _, spec := range []models.Specification{
		{ItemID: laptop.ID, Name: "RAM", Value: "32", Unit: &gb},
		{ItemID: laptop.ID, Name: "CPU", Value: "3.2", Unit: &ghz},
		{ItemID: laptop.ID, Name: "Screen", Value: "14", Unit: &inch},
		{ItemID: ultra.ID, Name: "RAM", Value: "16", Unit: &gb},
		{ItemID: ultra.ID, Name: "Screen", Value: "13.3", Unit: &inch},
		{ItemID: phone.ID, Name: "Screen", Value: "6.1", Unit: &inch},
		{ItemID: phone.ID, Name: "Color", Value: "Black"},
	} {
		s.PutSpecification(spec)
	}
}
