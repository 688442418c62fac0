package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"securemarket/config"
	"securemarket/internal/api"
	"securemarket/internal/broker"
	"securemarket/internal/models"
	"securemarket/internal/redisclient"
	"securemarket/internal/service"
	"securemarket/internal/state"
	"securemarket/internal/store"
	"securemarket/internal/util"
	"securemarket/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, "securemarket"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting securemarket state service")

	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	tp, err := util.InitTracer("securemarket", cfg.Observ.JaegerEndpoint, cfg.Observ.TracingEnabled)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	ctx := context.Background()

	var (
		primary     service.SlotStore
		cache       service.SlotStore
		locker      service.Locker
		ledger      worker.EventLedger
		idempotency api.IdempotencyStore
	)

	memory := store.NewMemoryStore()
	primary, ledger = memory, memory

	if cfg.Store.UsesPostgres() {
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			logger.Fatal("Failed to prepare database schema", zap.Error(err))
		}
		logger.Info("Database connected")
		primary, ledger = db, db
	}

	if cfg.Store.UsesRedis() {
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")

		if cfg.Store.Backend == config.BackendRedis {
			primary = redisClient
		} else {
			cache = redisClient
		}
		locker = redisClient
		idempotency = redisClient
	}

	repo := service.NewSnapshotRepository(cfg.Store.SlotKey, primary, cache, locker)

	seedRandom := cfg.Store.SeedRandom
	if seedRandom == 0 {
		seedRandom = time.Now().UnixNano()
	}
	env := state.DefaultEnv()
	seed := func() models.Snapshot {
		return state.Seed(env.Now(), rand.New(rand.NewSource(seedRandom)))
	}

	var (
		publisher    service.EventPublisher
		handlerOpts  []api.Option
		intentWorker *worker.IntentWorker
	)

	if idempotency != nil {
		handlerOpts = append(handlerOpts,
			api.WithIdempotency(idempotency, time.Duration(cfg.Store.IdempotencyTTLSeconds)*time.Second))
	}

	if cfg.Kafka.Enabled {
		eventsProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicEvents)
		defer eventsProducer.Close()
		commandsProducer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicIntents)
		defer commandsProducer.Close()
		logger.Info("Kafka producers initialized")

		eventPublisher := broker.NewEventPublisher(eventsProducer, commandsProducer)
		publisher = eventPublisher
		handlerOpts = append(handlerOpts, api.WithCommandPublisher(eventPublisher))
	}

	appStore := service.NewApplicationStore(repo, publisher, env, seed)
	if err := appStore.Restore(ctx); err != nil {
		logger.Fatal("Failed to restore application snapshot", zap.Error(err))
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	if cfg.Kafka.Enabled {
		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicIntents, cfg.Kafka.ConsumerGroup)
		intentWorker = worker.NewIntentWorker(consumer, appStore, ledger)
		go func() {
			if err := intentWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Intent worker error", zap.Error(err))
			}
		}()
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(appStore, handlerOpts...)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if intentWorker != nil {
		_ = intentWorker.Stop()
	}

	logger.Info("Server exited")
}
