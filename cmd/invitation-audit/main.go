package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/config"
	"github.com/Morgiver/invitation-core/internal/events"
	"github.com/Morgiver/invitation-core/internal/pkg/kafka"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

// invitation-audit consumes the invitation event topic and writes every event
// to the structured log. Messages that cannot be decoded end up on the DLQ.
func main() {
	configPath := flag.String("config", "", "path to a TOML config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer, err := kafka.NewConsumer(&cfg.Kafka, []string{cfg.Kafka.Topics.Events}, events.AuditHandler(appLogger), appLogger)
	if err != nil {
		appLogger.Fatal("failed to create consumer", zap.Strings("brokers", cfg.Kafka.Brokers), zap.Error(err))
	}

	if err := consumer.Start(ctx); err != nil {
		appLogger.Error("consumer did not start", zap.Error(err))
	} else {
		appLogger.Info("audit consumer started",
			zap.String("topic", cfg.Kafka.Topics.Events),
			zap.String("group", cfg.Kafka.ConsumerGroup),
		)
		<-ctx.Done()
	}

	if err := consumer.Stop(); err != nil {
		appLogger.Error("failed to stop consumer", zap.Error(err))
	}
}
