package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wandermap/subscription-service/config"
	"github.com/wandermap/subscription-service/internal/api/rest"
	"github.com/wandermap/subscription-service/internal/api/rest/middleware"
	"github.com/wandermap/subscription-service/internal/events"
	"github.com/wandermap/subscription-service/internal/metrics"
	"github.com/wandermap/subscription-service/internal/repository"
	"github.com/wandermap/subscription-service/internal/repository/postgres"
	"github.com/wandermap/subscription-service/internal/service"
	"github.com/wandermap/subscription-service/pkg/logger"
)

var log *logger.Logger

func init() {
	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	log = logger.New(logger.ParseLevel(cfg.Logging.Level))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	entMetrics := metrics.NewEntitlementMetrics(promRegistry, log)
	systemMetrics := metrics.NewSystemMetrics(promRegistry, log)

	// Запускаем сбор системных метрик
	systemMetrics.StartRecording(15 * time.Second)
	defer systemMetrics.Stop()

	// Выбор носителя хранилища подписок
	store, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize subscription store: %v", err)
	}
	defer cleanup()

	// Инициализация Kafka продюсера событий подписок
	var producer events.SubscriptionProducer
	if cfg.Kafka.Enabled {
		kafkaConfig := events.NewKafkaConfig(cfg.Kafka.Brokers)
		saramaConfig := events.NewSaramaConfig(kafkaConfig)

		syncProducer, err := sarama.NewSyncProducer(kafkaConfig.Brokers, saramaConfig)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}

		producer = events.NewKafkaSubscriptionProducer(syncProducer, log)
		defer producer.Close()
	}

	// Движок подписок
	entitlementSvc := service.NewEntitlementService(store, producer, entMetrics, log)

	// Аутентификация
	validator, err := middleware.NewHMACValidator(cfg.Auth.JWTSecret)
	if err != nil {
		log.Fatal("Failed to initialize token validator: %v", err)
	}
	authMiddleware := middleware.NewJWTMiddleware(validator, log)

	// Установка режима Gin
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(entitlementSvc, authMiddleware, promRegistry, log)

	// Создание и запуск HTTP сервера
	server := rest.NewServer(router, cfg, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}

// buildStore создает хранилище подписок согласно конфигурации.
// Возвращаемая функция освобождает ресурсы носителя.
func buildStore(ctx context.Context, cfg *config.Config) (repository.SubscriptionStore, func(), error) {
	var store repository.SubscriptionStore
	cleanup := func() {}

	switch cfg.Storage.Backend {
	case "memory":
		store = repository.NewInMemorySubscriptionStore(log)

	case "file":
		fileStore, err := repository.NewFileSubscriptionStore(cfg.Storage.FilePath, log)
		if err != nil {
			return nil, nil, err
		}
		store = fileStore

	case "postgres":
		dbPool, err := postgres.NewConnection(ctx, cfg.Database.GetDSN(), log)
		if err != nil {
			return nil, nil, err
		}

		pgStore := repository.NewPostgresSubscriptionStore(dbPool, log)
		if err := pgStore.EnsureSchema(ctx); err != nil {
			dbPool.Close()
			return nil, nil, err
		}

		store = pgStore
		cleanup = dbPool.Close

	default:
		log.Warn("Unknown storage backend %q, falling back to in-memory", cfg.Storage.Backend)
		store = repository.NewInMemorySubscriptionStore(log)
	}

	// Опциональный кэширующий слой поверх основного хранилища
	if cfg.Redis.Enabled {
		cached, err := repository.NewCachedSubscriptionStore(store, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		innerCleanup := cleanup
		cleanup = func() {
			cached.Close()
			innerCleanup()
		}
		store = cached
	}

	return store, cleanup, nil
}
