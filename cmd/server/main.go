package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crypto-exchange/internal/cache"
	"crypto-exchange/internal/config"
	"crypto-exchange/internal/messaging"
	"crypto-exchange/internal/metrics"
	"crypto-exchange/internal/models"
	"crypto-exchange/internal/store"
	"crypto-exchange/internal/trading"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Load()

	pg, err := store.NewPostgresStore(cfg.GetPostgresDSN())
	if err != nil {
		logger.Fatal("postgres store not available", zap.Error(err))
	}
	defer pg.Close()
	logger.Info("postgres store connected")

	currencyStore := store.NewCurrencyStore(pg)
	seeded, err := currencyStore.SeedDefaultCurrencies(context.Background(), models.DefaultCurrencies)
	if err != nil {
		logger.Warn("failed to seed default currencies", zap.Error(err))
	} else if seeded > 0 {
		logger.Info("seeded default currencies", zap.Int("count", seeded))
	}

	orderStore := store.NewOrderStore(pg.DB())
	tradeStore := store.NewTradeStore(pg.DB())

	var redisCache *cache.RedisCache
	redisCache, err = cache.NewRedisCache(cfg.GetRedisAddr(), cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis cache not available", zap.Error(err))
		redisCache = nil
	} else {
		logger.Info("redis cache connected")
		defer redisCache.Close()
	}

	var publisher *messaging.Publisher
	publisher, err = messaging.NewPublisher(cfg.RabbitMQURL, cfg.RabbitMQExchange, logger)
	if err != nil {
		logger.Warn("rabbitmq publisher not available", zap.Error(err))
		publisher = nil
	} else {
		logger.Info("rabbitmq publisher connected")
		defer publisher.Close()
	}

	appMetrics := metrics.New()

	engine := trading.NewEngine(orderStore, tradeStore, logger)
	engine.SetTradeCallback(func(t *models.Trade) {
		appMetrics.TradesTotal.Inc()
		appMetrics.TradeVolume.WithLabelValues(cache.PairKey(t.BuyCurrencyID, t.SellCurrencyID)).Inc()

		if redisCache != nil {
			if err := redisCache.AddRecentTrade(context.Background(), t); err != nil {
				logger.Warn("failed to cache trade", zap.String("trade_id", t.ID), zap.Error(err))
			}
		}

		if publisher != nil {
			if err := publisher.Publish(messaging.EventTradeExecuted, t); err != nil {
				logger.Warn("failed to publish trade event", zap.String("trade_id", t.ID), zap.Error(err))
			}
			appMetrics.MQMessagesPublished.WithLabelValues(messaging.EventTradeExecuted).Inc()
		}
	})

	service := trading.NewService(orderStore, tradeStore, engine, logger)

	dedup := store.NewDedupStore(pg.DB(), nil, logger)
	defer dedup.Stop()

	consumer, err := messaging.NewConsumer(cfg.RabbitMQURL, service, dedup, publisher, redisCache, appMetrics, logger, cfg.WorkerCount)
	if err != nil {
		logger.Fatal("rabbitmq consumer not available", zap.Error(err))
	}
	if err := consumer.Start(cfg.RabbitMQExchange, cfg.RabbitMQQueue); err != nil {
		logger.Fatal("failed to start consumer", zap.Error(err))
	}
	defer consumer.Stop()

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("metrics listener started", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	metricsSrv.Shutdown(context.Background())
}
