package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thirai-kg/backend/internal/bootstrap"
	"github.com/thirai-kg/backend/internal/jobs"
	"github.com/thirai-kg/backend/internal/queue"
	"github.com/thirai-kg/backend/internal/storage"
	"github.com/thirai-kg/backend/internal/util"
	"github.com/thirai-kg/backend/pkg/leaselock"
	"github.com/thirai-kg/backend/pkg/loader"
	s3loader "github.com/thirai-kg/backend/pkg/loader/s3"
	"github.com/thirai-kg/backend/pkg/loader/web"
	"github.com/thirai-kg/backend/pkg/logger"
	"github.com/thirai-kg/backend/pkg/logger/console"

	"github.com/jackc/pgx/v5/pgxpool"
)

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
}

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  debug,
		JSON:   util.GetEnv("LOG_FORMAT") == "json",
		Prefix: "worker",
	})
	logger.Init(consoleLogger)

	// graph pipeline
	pipeline, err := bootstrap.NewPipeline(ctx, bootstrap.LoadConfig())
	if err != nil {
		logger.Fatal("Could not set up graph pipeline", "err", err)
	}
	defer pipeline.Close(context.Background())

	// source loaders
	resolverOpts := []loader.ResolverOption{
		loader.WithLoader(loader.SourceURL, web.NewWebTextLoader()),
	}
	if bucket := storage.Bucket(); bucket != "" {
		client, err := storage.NewS3Client(ctx)
		if err != nil {
			logger.Fatal("Could not create S3 client", "err", err)
		}
		resolverOpts = append(resolverOpts, loader.WithLoader(loader.SourceS3, s3loader.NewS3TextLoaderWithClient(bucket, client)))
	}

	// Init pgx client
	dbURL := util.GetEnv("DATABASE_URL")
	if err := jobs.Migrate(dbURL, util.GetEnvString("MIGRATIONS_DIR", "migrations")); err != nil {
		logger.Fatal("Unable to migrate database", "err", err)
	}
	pgConn, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	// Init rabbitmq
	conn, err := queue.Init()
	if err != nil {
		logger.Fatal("Unable to connect to queue", "err", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	if err := queue.SetupQueues(ch, []string{queue.IngestQueue}); err != nil {
		logger.Fatal("Failed to declare queues", "err", err)
	}

	processor := queue.NewIngestProcessor(queue.NewIngestProcessorParams{
		Ledger:   jobs.New(pgConn),
		Ingester: pipeline.Graph,
		Resolver: loader.NewResolver(resolverOpts...),
		Locks:    leaselock.New(pgConn),
		Events:   ch,
	})

	// One unacknowledged message at a time; a job already fans out its texts.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	logger.Info("Listening for messages", "queue", queue.IngestQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.IngestQueue)
					stop()
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.IngestQueue)

				if err := processor.Process(ctx, msg.Body, queue.IsLastAttempt(msg)); err != nil {
					logger.Error("Error processing message", "queue", queue.IngestQueue, "err", err)
					queue.HandleProcessingError(context.Background(), consumerCh, msg, queue.IngestQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", queue.IngestQueue)
				}

				metrics := pipeline.AI.GetMetrics()
				logger.Info(
					"AI Metrics",
					"requests", metrics.Requests,
					"input_tokens", metrics.InputTokens,
					"output_tokens", metrics.OutputTokens,
					"total_tokens", metrics.TotalTokens,
					"duration", formatDuration(time.Duration(metrics.DurationMs)*time.Millisecond),
				)
				logger.Info("Processing time", "duration", formatDuration(time.Since(startTime)))
				logger.Info("Waiting for next message")
				pipeline.AI.ResetMetrics()
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
