package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Fyongquan/new-top-binfa/internal/config"
	"github.com/Fyongquan/new-top-binfa/internal/coupon"
	"github.com/Fyongquan/new-top-binfa/internal/db"
	"github.com/Fyongquan/new-top-binfa/internal/gate"
	"github.com/Fyongquan/new-top-binfa/internal/httpapi"
	"github.com/Fyongquan/new-top-binfa/internal/id"
	"github.com/Fyongquan/new-top-binfa/internal/mq"
	"github.com/Fyongquan/new-top-binfa/internal/obs"
	"github.com/Fyongquan/new-top-binfa/internal/order"
	"github.com/Fyongquan/new-top-binfa/internal/seckill"
	"github.com/Fyongquan/new-top-binfa/internal/task"
)

func main() {
	cfg := config.Load()
	logger := obs.NewLogger("seckill")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		gateStore  gate.Store
		alertSink  seckill.AlertSink
		orderStore order.Store
		broker     mq.Broker
		coupons    coupon.Repository
	)

	switch cfg.Mode {
	case config.ModeMemory:
		logger.Info().Msg("running in memory mode")
		ms := gate.NewMemoryStore()
		gateStore, alertSink = ms, ms
		orderStore = order.NewMemoryStore()
		broker = mq.NewMemoryBroker(1024, logger)

	default:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("connect redis")
		}
		defer client.Close()
		rs := gate.NewRedisStore(client)
		gateStore, alertSink = rs, rs

		if cfg.PostgresDSN == "" {
			logger.Fatal().Msg("SECKILL_DB_DSN not set")
		}
		if err := db.RunMigrations(cfg.PostgresDSN, logger); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		pool, err := db.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("open db")
		}
		defer pool.Close()
		orderStore = order.NewPostgresStore(pool)
		coupons = coupon.NewRepository(pool)

		conn, err := amqp.Dial(cfg.RabbitURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect rabbitmq")
		}
		defer conn.Close()
		broker, err = mq.NewRabbit(conn, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("set up broker")
		}
	}
	defer broker.Close()

	ids, err := id.NewGenerator(cfg.SnowflakeNode)
	if err != nil {
		logger.Fatal().Err(err).Msg("init id generator")
	}

	svc := seckill.NewService(gateStore, broker, ids, cfg.StatusTTL, logger)
	alerter := seckill.NewLogAlerter(logger, alertSink)
	consumer := seckill.NewConsumer(orderStore, gateStore, broker, alerter, cfg.StatusTTL, logger)
	if err := consumer.Start(ctx, broker); err != nil {
		logger.Fatal().Err(err).Msg("start consumer")
	}

	if cfg.ResetEnabled && coupons != nil {
		reset := task.NewStockReset(coupons, gateStore, logger)
		go reset.Run(ctx)
	}

	handler := httpapi.NewHandler(svc, coupons, orderStore, cfg.DefaultLimit, logger)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(handler),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	cancel()
}
