package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumenhq/dam/internal/bootstrap"
	"github.com/lumenhq/dam/internal/config"
	mq "github.com/lumenhq/dam/internal/infra/queue"
	"github.com/lumenhq/dam/internal/modules/service"
	"github.com/lumenhq/dam/internal/telemetry"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/samber/do"
	"go.uber.org/zap"
)

// worker consumes processor results and moves assets through their status lifecycle.
func main() {
	inj := bootstrap.BuildContainer()
	cfg := do.MustInvoke[*config.Config](inj)
	log := do.MustInvoke[*zap.Logger](inj).Named("worker")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otel, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Fatal("telemetry setup", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = otel.Shutdown(shutdownCtx)
	}()

	conn := do.MustInvoke[*amqp.Connection](inj)
	defer conn.Close()

	consumer, err := mq.NewConsumer(conn,
		cfg.RabbitMQ.ExchangeName.AssetResult,
		cfg.RabbitMQ.QueueName.AssetResult,
		"#",
		cfg.RabbitMQ.Prefetch,
		log, cfg)
	if err != nil {
		log.Fatal("declare result queue", zap.Error(err))
	}
	defer consumer.Close()

	handle := service.NewStatusMessageHandler(do.MustInvoke[service.StatusService](inj), log)

	log.Info("consuming processor results",
		zap.String("exchange", cfg.RabbitMQ.ExchangeName.AssetResult),
		zap.String("queue", cfg.RabbitMQ.QueueName.AssetResult))
	if err := consumer.Handle(ctx, handle); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("consumer stopped", zap.Error(err))
	}
	log.Info("worker exiting")
}
