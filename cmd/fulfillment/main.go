package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
	"github.com/danupranata/go-marketplace-orders/internal/config"
	"github.com/danupranata/go-marketplace-orders/internal/fulfillment"
	"github.com/danupranata/go-marketplace-orders/internal/invoice"
	kafkax "github.com/danupranata/go-marketplace-orders/internal/kafka"
	"github.com/danupranata/go-marketplace-orders/internal/notify"
	"github.com/danupranata/go-marketplace-orders/internal/postgres"
	"github.com/danupranata/go-marketplace-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	notifyProd := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicSellerNotifications, 1024, logger)
	notifyProd.Start(ctx)

	store := checkout.NewPostgresStore(db)
	svc := &fulfillment.Service{
		Invoices: &invoice.Generator{
			Orders: store,
			Store:  invoice.NewPostgresStore(db),
			Log:    logger,
		},
		Notifier: &notify.KafkaDispatcher{Producer: notifyProd, Service: cfg.ServiceName + "-fulfillment"},
		Dedup:    &redisx.Deduper{R: rdb, Service: "fulfillment"},
		Log:      logger,
	}

	group := getenv("FULFILLMENT_GROUP", "fulfillment-svc")
	workers := mustAtoi(os.Getenv("FULFILLMENT_WORKERS"), "8")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicOrderPlaced, workers, logger)

	go func() {
		logger.Info("fulfillment consumer started",
			zap.String("group", group),
			zap.String("topic", checkout.TopicOrderPlaced),
			zap.Int("workers", workers),
		)
		if err := cons.Start(ctx, svc.HandleOrderPlaced); err != nil {
			logger.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	notifyProd.Close()
	notifyProd.WaitClosed()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}
