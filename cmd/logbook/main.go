package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/akvo/ai-logbook/internal/config"
	"github.com/akvo/ai-logbook/internal/database"
	httpapi "github.com/akvo/ai-logbook/internal/http"
	"github.com/akvo/ai-logbook/internal/logger"
	"github.com/akvo/ai-logbook/internal/reconciler"
	"github.com/akvo/ai-logbook/internal/repository"
	"github.com/akvo/ai-logbook/internal/service"
	"github.com/akvo/ai-logbook/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)
	events := store.NewEventPublisher(redisClient, log)

	farmersRepo := repository.NewPostgresFarmersRepo(db)
	recordsRepo := repository.NewPostgresRecordsRepo(db)
	messagesRepo := repository.NewPostgresMessagesRepo(db)

	openaiClient := service.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, log)
	twilioClient := service.NewTwilioClient(
		cfg.Twilio.BaseURL,
		cfg.Twilio.AccountSID,
		cfg.Twilio.AuthToken,
		cfg.Twilio.WhatsAppNumber,
		log,
	)

	rec := reconciler.NewReconciler(recordsRepo, openaiClient, events, log)

	router := httpapi.NewRouter(log)
	router.RegisterWebhookRoutes(httpapi.NewWebhookHandler(
		farmersRepo, messagesRepo, rec, kv, twilioClient, openaiClient, openaiClient, log,
	))
	router.RegisterFarmerRoutes(httpapi.NewFarmersHandler(farmersRepo, log))
	router.RegisterRecordRoutes(httpapi.NewRecordsHandler(recordsRepo, farmersRepo, log))
	router.RegisterExtractRoutes(httpapi.NewExtractHandler(openaiClient, log))

	srv := service.NewServer(cfg.HTTP.Addr, router, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("Shutdown signal received")
	case err := <-errCh:
		log.Error("HTTP server exited", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	_ = redisClient.Close()
	_ = db.Close()
}
