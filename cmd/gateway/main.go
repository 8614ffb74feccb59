package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/pm25-intent/internal/connection"
	"github.com/smukkama/pm25-intent/internal/database"
	"github.com/smukkama/pm25-intent/internal/fixstore"
	"github.com/smukkama/pm25-intent/internal/intent"
	"github.com/smukkama/pm25-intent/internal/logging"
	"github.com/smukkama/pm25-intent/internal/mqtt"
	"github.com/smukkama/pm25-intent/internal/pm25"
	"github.com/smukkama/pm25-intent/internal/queue"
	"github.com/smukkama/pm25-intent/internal/server"
	"github.com/smukkama/pm25-intent/internal/timer"
	"github.com/smukkama/pm25-intent/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("failed to load configuration", err)
	}

	logger := logging.New(os.Stdout, cfg.App, "pm25-gateway")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting gateway", "locale", cfg.Intent.Locale, "profile", cfg.Intent.Profile.Name)

	db, err := database.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logging.Fatal("failed to connect to database", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, "migrations", logger); err != nil {
		logging.Fatal("failed to run migrations", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logging.Fatal("failed to connect to redis", err)
	}
	fixes := fixstore.New(redisClient, cfg.Location.FixMaxAge)

	if err := queue.CreateTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicLocationRequests, cfg.Kafka.NumPartitions, 1); err != nil {
		logger.Warn("topic creation failed (may already exist)", "topic", cfg.Kafka.TopicLocationRequests, "error", err)
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLocationRequests)
	defer producer.Close()

	runner := &intent.DeviceRunner{
		Grants:   db,
		Fixes:    fixes,
		Requests: queue.NewRequester(producer),
		Fetcher:  pm25.NewClient(cfg.PM25.APIURL, cfg.PM25.Timeout),
		Profile:  cfg.Intent.Profile,
		Locale:   cfg.Intent.Locale,
		Attempts: cfg.Location.Attempts,
		Interval: cfg.Location.Interval,
		MaxAge:   cfg.Location.FixMaxAge,
		Logger:   logger,
	}

	connManager := connection.NewManager(cfg.TCPServer.MaxConnections)

	timerManager := timer.NewTimerManager(4, logger)
	timerManager.Start()
	defer timerManager.Stop()

	gateway := server.NewGateway(&cfg.TCPServer, connManager, timerManager, fixes, db, runner, logger)
	if err := gateway.Start(); err != nil {
		logging.Fatal("failed to start gateway", err)
	}
	defer gateway.Stop()

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicLocationRequests, cfg.Kafka.ConsumerGroup)
	defer consumer.Close()

	dispatcher := queue.NewDispatcher(consumer, gateway, cfg.Location.FixMaxAge, logger)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	if cfg.MQTT.Enabled() {
		subscriber := mqtt.NewSubscriber(cfg.MQTT, fixes, logger)
		if err := subscriber.Connect(ctx); err != nil {
			logging.Fatal("failed to connect to mqtt broker", err)
		}
		defer subscriber.Disconnect()
	}

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := connManager.Stats()
				timerStats := timerManager.Stats()
				readerStats := consumer.Stats()
				logger.Info("gateway statistics",
					"connections", stats.TotalConnections,
					"max_connections", stats.MaxConnections,
					"devices", stats.UniqueDevices,
					"timers", timerStats.ScheduledTasks,
					"requests_consumed", readerStats.Messages,
					"consumer_lag", readerStats.Lag,
				)
			}
		}
	}()

	logger.Info("gateway running", "addr", gateway.Addr().String(), "topic", cfg.Kafka.TopicLocationRequests)

	<-ctx.Done()
	logger.Info("shutting down gracefully")
}
