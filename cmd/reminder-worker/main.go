// Package main is the entry point for the reminder worker.
//
// In AWS Lambda it consumes the SQS queue fed by the reminder relay and
// dispatches each message through the reminder dispatcher. Everywhere else
// it runs a worker pool that claims due jobs straight from the configured
// delay queue backend.
//
// Dispatch outcomes never fail a message: a reminder is attempted once and
// then settled. Only records left unprocessed when the invocation runs out
// of time are reported back to SQS for redelivery.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"recipescheduler/internal/config"
	"recipescheduler/internal/db"
	"recipescheduler/internal/external"
	"recipescheduler/internal/queue"
	"recipescheduler/internal/reminder"
	"recipescheduler/internal/worker"
)

// Handler adapts SQS batches to a worker.Handler.
type Handler struct {
	jobs   worker.Handler
	logger *slog.Logger
}

// Handle processes an SQS batch using partial batch responses.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for i, record := range sqsEvent.Records {
		if ctx.Err() != nil {
			// Out of time: hand the rest back to SQS untouched.
			for _, rest := range sqsEvent.Records[i:] {
				response.BatchItemFailures = append(response.BatchItemFailures,
					events.SQSBatchItemFailure{ItemIdentifier: rest.MessageId},
				)
			}
			h.logger.Warn("invocation deadline reached, returning unprocessed messages",
				"unprocessed", len(sqsEvent.Records)-i,
			)
			break
		}
		h.processMessage(ctx, record)
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) {
	msg, err := queue.DecodeRelayMessage(record.Body)
	if err != nil {
		// Permanent parse failure; acknowledge so it is not redelivered.
		h.logger.ErrorContext(ctx, "discarding undecodable reminder message",
			"message_id", record.MessageId,
			"error", err,
		)
		return
	}

	out := h.jobs.HandleJob(ctx, msg.Job())
	h.logger.InfoContext(ctx, "reminder message processed",
		"message_id", record.MessageId,
		"job_key", msg.JobKey,
		"trace_id", msg.TraceID,
		"outcome", out.String(),
	)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics, err := newMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}
	dispatcher := reminder.NewDispatcher(
		db.NewPushTokenRepository(pool),
		external.NewPushSender(cfg.Push, logger),
		metrics,
		nil,
		logger,
	)

	if isLambdaEnvironment() {
		logger.Info("reminder worker starting in Lambda mode")
		h := &Handler{jobs: dispatcher, logger: logger}
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
		return nil
	}

	backend, err := queue.OpenBackend(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close queue backend", "error", err)
		}
	}()

	logger.Info("reminder worker starting in poll mode",
		"queue_backend", backend.Name,
		"concurrency", cfg.Reminder.WorkerConcurrency,
	)
	workers := worker.NewPool(backend.Queue, dispatcher, worker.PoolConfig{
		Concurrency:  cfg.Reminder.WorkerConcurrency,
		BatchSize:    cfg.Queue.BatchSize,
		Lease:        cfg.Queue.Lease,
		PollInterval: cfg.Queue.PollInterval,
	}, nil, logger)
	return workers.Run(ctx)
}

// newMetrics returns CloudWatch metrics when enabled, otherwise a no-op.
func newMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (reminder.Metrics, error) {
	if !cfg.Observability.EnableMetrics {
		return reminder.NoopMetrics{}, nil
	}
	awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	return reminder.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger), nil
}

// isLambdaEnvironment reports whether the process runs inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
