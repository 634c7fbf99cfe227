package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Morgiver/invitation-core/config"
	"github.com/Morgiver/invitation-core/internal/events"
	"github.com/Morgiver/invitation-core/internal/handlers"
	"github.com/Morgiver/invitation-core/internal/pkg/kafka"
	"github.com/Morgiver/invitation-core/internal/repositories"
	"github.com/Morgiver/invitation-core/internal/routers"
	"github.com/Morgiver/invitation-core/internal/services"
	"github.com/Morgiver/invitation-core/internal/storage"
	logger "github.com/Morgiver/invitation-core/middleware/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "path to a TOML config file; defaults and INVITATION_* env apply without it")
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

	repo, closeRepo, err := repositories.Open(cfg)
	if err != nil {
		appLogger.Fatal("failed to open storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer func() {
		if err := closeRepo(); err != nil {
			appLogger.Warn("failed to close storage", zap.Error(err))
		}
	}()

	bus := events.NewBus(appLogger)

	// Kafka is optional: without it events stay in-process.
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(&cfg.Kafka, appLogger)
		if err != nil {
			appLogger.Warn("kafka producer unavailable, events will not be forwarded", zap.Error(err))
		} else {
			defer producer.Close()
			bus.SubscribeAll(events.NewKafkaForwarder(producer, cfg.Kafka.Topics.Events, cfg.Kafka.Producer.MaxRetries).Handle)
		}
	}

	if cfg.Events.RedisEnabled {
		redisClient, err := storage.InitRedis(&cfg.Redis)
		if err != nil {
			appLogger.Warn("redis unavailable, events will not be forwarded", zap.Error(err))
		} else {
			defer redisClient.Close()
			bus.SubscribeAll(events.NewRedisForwarder(redisClient, cfg.Events.RedisChannel).Handle)
		}
	}

	invitationService := services.NewInvitationService(repo, bus, appLogger)
	invitationHandler, err := handlers.NewInvitationHandler(invitationService, appLogger)
	if err != nil {
		appLogger.Fatal("failed to build invitation handler", zap.Error(err))
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery())
	routers.SetupRoutes(r, appLogger, invitationHandler)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		appLogger.Info("invitation server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("storage", cfg.Storage.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
