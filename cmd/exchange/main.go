package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/pkg/cache"
	"github.com/wyfcoding/pkg/config"
	"github.com/wyfcoding/pkg/database"
	"github.com/wyfcoding/pkg/logging"
	"github.com/wyfcoding/pkg/messagequeue/kafka"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"github.com/wyfcoding/pkg/metrics"
	"golang.org/x/sync/errgroup"

	"github.com/wyfcoding/exchange/internal/exchange/application"
	"github.com/wyfcoding/exchange/internal/exchange/infrastructure/persistence/mysql"
	redisrepo "github.com/wyfcoding/exchange/internal/exchange/infrastructure/persistence/redis"
	exconsumer "github.com/wyfcoding/exchange/internal/exchange/interfaces/consumer"
	httpserver "github.com/wyfcoding/exchange/internal/exchange/interfaces/http"
)

var configPath = flag.String("config", "configs/exchange/config.toml", "config file path")

func main() {
	flag.Parse()

	// 1. Config
	var cfg config.Config
	if err := config.Load(*configPath, &cfg); err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 2. Logger
	logCfg := &logging.Config{Service: cfg.Server.Name, Level: cfg.Log.Level}
	logger := logging.NewFromConfig(logCfg)
	slog.SetDefault(logger.Logger)

	// 3. Metrics
	metricsImpl := metrics.NewMetrics(cfg.Server.Name)
	if cfg.Metrics.Enabled {
		go metricsImpl.ExposeHTTP(cfg.Metrics.Port)
	}

	// 4. Infrastructure
	db, err := database.NewDB(cfg.Data.Database, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}

	if cfg.Server.Environment == "dev" {
		if err := db.RawDB().AutoMigrate(
			&mysql.CurrencyModel{}, &mysql.InstrumentModel{}, &mysql.UserModel{},
			&mysql.AccountModel{}, &mysql.TransferModel{},
			&mysql.OrderModel{}, &mysql.ClosedOrderModel{}, &mysql.TradeModel{},
			&outbox.Message{},
		); err != nil {
			slog.Error("failed to migrate database", "error", err)
		}
	}

	// 5. Kafka & Outbox
	kafkaProducer := kafka.NewProducer(&cfg.MessageQueue.Kafka, logger, metricsImpl)
	outboxMgr := outbox.NewManager(db.RawDB(), logger.Logger)
	pusher := func(ctx context.Context, topic, key string, payload []byte) error {
		return kafkaProducer.PublishToTopic(ctx, topic, []byte(key), payload)
	}
	outboxProcessor := outbox.NewProcessor(outboxMgr, pusher, 100, 2*time.Second)

	// 6. Redis
	redisCache, err := cache.NewRedisCache(&cfg.Data.Redis, cfg.CircuitBreaker, logger, metricsImpl)
	if err != nil {
		slog.Error("failed to init redis", "error", err)
		os.Exit(1)
	}
	redisClient := redisCache.GetClient()

	// 7. Repositories
	accountRepo := mysql.NewAccountRepository(db.RawDB())
	transferRepo := mysql.NewTransferRepository(db.RawDB())
	currencyRepo := mysql.NewCurrencyRepository(db.RawDB())
	instrumentRepo := mysql.NewInstrumentRepository(db.RawDB())
	userRepo := mysql.NewUserRepository(db.RawDB())
	orderRepo := mysql.NewOrderRepository(db.RawDB())
	closedOrderRepo := mysql.NewClosedOrderRepository(db.RawDB())
	tradeRepo := mysql.NewTradeRepository(db.RawDB())
	snapshotRepo := redisrepo.NewMarketDataRepository(redisClient)

	publisher := outbox.NewPublisher(outboxMgr)

	// 8. Application
	bus := application.NewEventBus()
	locks := application.NewLockSet()

	ledgerSvc := application.NewLedgerService(db.RawDB(), accountRepo, transferRepo, userRepo, currencyRepo, publisher, bus, locks, logger.Logger)
	registrySvc := application.NewRegistryService(db.RawDB(), currencyRepo, instrumentRepo, userRepo, ledgerSvc, publisher, bus, logger.Logger)
	orderSvc := application.NewOrderService(db.RawDB(), orderRepo, closedOrderRepo, accountRepo, userRepo, instrumentRepo, ledgerSvc, publisher, bus, locks, logger.Logger)
	matchingSvc := application.NewMatchingService(db.RawDB(), orderRepo, tradeRepo, accountRepo, userRepo, instrumentRepo, ledgerSvc, orderSvc, publisher, bus, locks, logger.Logger)
	marketDataSvc := application.NewMarketDataService(orderSvc, instrumentRepo, snapshotRepo, publisher, logger.Logger)

	bus.Subscribe(matchingSvc.HandleEvent)
	bus.Subscribe(marketDataSvc.HandleEvent)

	startCtx := context.Background()
	if err := orderSvc.LoadOpenOrders(startCtx); err != nil {
		slog.Error("failed to load open orders", "error", err)
		os.Exit(1)
	}
	if err := marketDataSvc.Bootstrap(startCtx); err != nil {
		slog.Error("failed to bootstrap market data", "error", err)
		os.Exit(1)
	}

	// 9. Consumers
	orderRequestHandler := exconsumer.NewOrderRequestHandler(orderSvc, logger.Logger)
	for _, topic := range []string{exconsumer.OrderOpenRequestedTopic, exconsumer.OrderCloseRequestedTopic} {
		consumerCfg := cfg.MessageQueue.Kafka
		consumerCfg.Topic = topic
		if consumerCfg.GroupID == "" {
			consumerCfg.GroupID = "exchange-order-request-group"
		}
		consumer := kafka.NewConsumer(&consumerCfg, logger, metricsImpl)
		consumer.Start(context.Background(), 3, orderRequestHandler.Handle)
	}

	// 10. Interfaces
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	httpHandler := httpserver.NewExchangeHandler(registrySvc, ledgerSvc, orderSvc, marketDataSvc)
	httpHandler.RegisterRoutes(r.Group("/api"))

	// 11. Start
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		outboxProcessor.Start()
		<-ctx.Done()
		outboxProcessor.Stop()
		return nil
	})

	g.Go(func() error {
		addr := fmt.Sprintf(":%d", cfg.Server.HTTP.Port)
		server := &http.Server{Addr: addr, Handler: r}
		slog.Info("HTTP server starting", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			slog.Info("shutting down servers...")
		case <-ctx.Done():
			slog.Info("context cancelled, shutting down...")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("server exited with error", "error", err)
	}
}
