// Package main is the entry point for the reminder relay.
//
// The relay claims due reminder jobs from the durable delay queue (postgres
// or redis) and forwards them to the SQS queue consumed by the reminder
// worker Lambda. In AWS Lambda it runs on an EventBridge schedule and drains
// the queue once per invocation; elsewhere it polls continuously.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"recipescheduler/internal/config"
	"recipescheduler/internal/db"
	"recipescheduler/internal/queue"
	"recipescheduler/internal/reminder"
)

// drainReserve is kept free before the invocation deadline so the last
// pass can finish its acks.
const drainReserve = 5 * time.Second

var errNoRelayQueue = errors.New("SQS_REMINDERS must be set for the reminder relay")

// passRunner is the subset of *queue.SQSRelay the drain loop needs.
type passRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Handler runs one drain per scheduled invocation.
type Handler struct {
	relay     passRunner
	batchSize int
	logger    *slog.Logger
}

// Handle drains due jobs in response to an EventBridge schedule tick.
func (h *Handler) Handle(ctx context.Context, tick events.CloudWatchEvent) error {
	total, err := drain(ctx, h.relay, h.batchSize)
	h.logger.InfoContext(ctx, "relay invocation complete",
		"schedule_event_id", tick.ID,
		"forwarded", total,
	)
	return err
}

// drain runs relay passes until a pass comes back short of a full batch or
// the context deadline is within drainReserve.
func drain(ctx context.Context, relay passRunner, batchSize int) (int, error) {
	total := 0
	for {
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < drainReserve {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, nil
		}

		n, err := relay.RunOnce(ctx)
		total += n
		if err != nil {
			return total, fmt.Errorf("relay pass: %w", err)
		}
		if n < batchSize {
			return total, nil
		}
	}
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

	if cfg.AWS.ReminderQueueURL == "" {
		return errNoRelayQueue
	}
	if cfg.Queue.Backend == config.QueueBackendMemory {
		return fmt.Errorf("reminder relay needs a durable queue backend, got %q", cfg.Queue.Backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()

	backend, err := queue.OpenBackend(ctx, cfg, pool)
	if err != nil {
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("failed to close queue backend", "error", err)
		}
	}()

	awsCfg, err := config.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return err
	}

	var recorder queue.RelayRecorder = reminder.NoopMetrics{}
	if cfg.Observability.EnableMetrics {
		recorder = reminder.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.Observability.MetricNamespace, logger)
	}

	relay := queue.NewSQSRelay(backend.Queue, sqs.NewFromConfig(awsCfg), queue.RelayConfig{
		QueueName: queueName(cfg.AWS.ReminderQueueURL),
		QueueURL:  cfg.AWS.ReminderQueueURL,
		BatchSize: cfg.Queue.BatchSize,
		Lease:     cfg.Queue.Lease,
	}, nil, recorder, logger)

	if isLambdaEnvironment() {
		logger.Info("reminder relay starting in Lambda mode", "queue_backend", backend.Name)
		h := &Handler{relay: relay, batchSize: cfg.Queue.BatchSize, logger: logger}
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
		return nil
	}

	logger.Info("reminder relay starting in poll mode",
		"queue_backend", backend.Name,
		"interval", cfg.Queue.PollInterval,
	)
	return relay.Run(ctx, cfg.Queue.PollInterval)
}

// queueName returns the final path segment of an SQS queue URL.
func queueName(queueURL string) string {
	return queueURL[strings.LastIndex(queueURL, "/")+1:]
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
