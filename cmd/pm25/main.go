package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/pm25-intent/internal/database"
	"github.com/smukkama/pm25-intent/internal/fixstore"
	"github.com/smukkama/pm25-intent/internal/intent"
	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/logging"
	"github.com/smukkama/pm25-intent/internal/pm25"
	"github.com/smukkama/pm25-intent/internal/queue"
	"github.com/smukkama/pm25-intent/pkg/config"
)

// pm25 answers one "how is the air here" invocation and prints the sentence.
// Failures of the intent itself are reported as a sentence, not an exit code.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run writes the sentence, and nothing else, to stdout. Logs go to stderr.
func run(ctx context.Context, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	if err := cfg.Location.Validate(); err != nil {
		fmt.Fprintf(stderr, "invalid location configuration: %v\n", err)
		return 1
	}

	logger := logging.New(stderr, cfg.App, "pm25")
	slog.SetDefault(logger)

	fetcher := pm25.NewClient(cfg.PM25.APIURL, cfg.PM25.Timeout)

	var action *intent.Action
	switch cfg.Location.Source {
	case config.SourceDevice:
		a, cleanup, err := deviceAction(ctx, cfg, fetcher, logger)
		if err != nil {
			logger.Error("failed to prepare device location", "error", err)
			return 1
		}
		defer cleanup()
		action = a
	default:
		capability := location.Static{Coordinate: location.Coordinate{
			Latitude:  cfg.Location.Latitude,
			Longitude: cfg.Location.Longitude,
		}}
		provider := location.NewProvider(capability, cfg.Location.Attempts, cfg.Location.Interval, logger)
		action = intent.New(provider, fetcher, cfg.Intent.Profile, cfg.Intent.Locale, logger)
	}

	fmt.Fprintln(stdout, action.Run(ctx))
	return 0
}

func deviceAction(ctx context.Context, cfg *config.Config, fetcher pm25.Fetcher, logger *slog.Logger) (*intent.Action, func(), error) {
	db, err := database.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		return nil, nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicLocationRequests)

	cleanup := func() {
		producer.Close()
		redisClient.Close()
		db.Close()
	}

	runner := &intent.DeviceRunner{
		Grants:   db,
		Fixes:    fixstore.New(redisClient, cfg.Location.FixMaxAge),
		Requests: queue.NewRequester(producer),
		Fetcher:  fetcher,
		Profile:  cfg.Intent.Profile,
		Locale:   cfg.Intent.Locale,
		Attempts: cfg.Location.Attempts,
		Interval: cfg.Location.Interval,
		MaxAge:   cfg.Location.FixMaxAge,
		Logger:   logger,
	}
	return runner.Action(cfg.Location.DeviceID), cleanup, nil
}
