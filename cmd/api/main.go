package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
	"github.com/danupranata/go-marketplace-orders/internal/config"
	"github.com/danupranata/go-marketplace-orders/internal/httpx"
	kafkax "github.com/danupranata/go-marketplace-orders/internal/kafka"
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

	prod := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicOrderPlaced, 1024, logger)
	prod.Start(ctx)

	store := checkout.NewPostgresStore(db)
	orch := &checkout.Orchestrator{
		Store:      store,
		Events:     prod,
		Service:    cfg.ServiceName,
		CodePrefix: cfg.OrderCodePrefix,
		Log:        logger,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{
		Orchestrator: orch,
		Store:        store,
		Redis:        rdb,
		Log:          logger,
	}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // close inbox -> flush & close writer
	cancel()
	prod.WaitClosed()
}
