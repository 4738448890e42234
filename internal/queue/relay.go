package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"recipescheduler/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// RelayRecorder receives the number of jobs forwarded per relay pass.
type RelayRecorder interface {
	RecordForwarded(ctx context.Context, queueName string, n int)
}

// RelayMessage is the SQS body for one due job.
type RelayMessage struct {
	JobKey     string    `json:"job_key"`
	Generation string    `json:"generation"`
	Attempts   int       `json:"attempts"`
	FireAt     time.Time `json:"fire_at"`
	Payload    []byte    `json:"payload"`
	TraceID    string    `json:"trace_id"`
}

// Job converts the message back into the queue job it was built from.
func (m RelayMessage) Job() Job {
	return Job{
		Key:        m.JobKey,
		Payload:    m.Payload,
		FireAt:     m.FireAt,
		Generation: m.Generation,
		Attempts:   m.Attempts,
	}
}

// DecodeRelayMessage parses an SQS body produced by SQSRelay.
func DecodeRelayMessage(body string) (RelayMessage, error) {
	var msg RelayMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return RelayMessage{}, fmt.Errorf("queue: failed to decode relay message: %w", err)
	}
	if msg.JobKey == "" {
		return RelayMessage{}, fmt.Errorf("queue: relay message has no job_key")
	}
	return msg, nil
}

// RelayConfig tunes an SQSRelay.
type RelayConfig struct {
	// QueueName labels forwarded-count metrics. The message itself carries
	// the reminder job class.
	QueueName string
	QueueURL  string
	BatchSize int
	Lease     time.Duration
}

// SQSRelay moves due jobs from a delay queue onto an SQS queue so that
// Lambda consumers can dispatch them. A job is acknowledged in the delay
// queue only after SQS accepted it; a failed send leaves the job leased and
// it is forwarded again once the lease expires.
type SQSRelay struct {
	source   Consumer
	client   SQSSender
	cfg      RelayConfig
	clock    types.Clock
	recorder RelayRecorder
	logger   *slog.Logger
}

// NewSQSRelay creates a relay. recorder may be nil.
func NewSQSRelay(source Consumer, client SQSSender, cfg RelayConfig, clock types.Clock, recorder RelayRecorder, logger *slog.Logger) *SQSRelay {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = types.RealClock{}
	}
	return &SQSRelay{
		source:   source,
		client:   client,
		cfg:      cfg,
		clock:    clock,
		recorder: recorder,
		logger:   logger,
	}
}

// RunOnce forwards one batch of due jobs and returns how many were handed to
// SQS. Send failures are logged and do not abort the batch.
func (r *SQSRelay) RunOnce(ctx context.Context) (int, error) {
	jobs, err := r.source.Claim(ctx, r.clock.Now(), r.cfg.BatchSize, r.cfg.Lease)
	if err != nil {
		return 0, err
	}

	forwarded := 0
	for _, job := range jobs {
		if err := r.forward(ctx, job); err != nil {
			r.logger.ErrorContext(ctx, "failed to relay job",
				"job_key", job.Key,
				"attempts", job.Attempts,
				"error", err,
			)
			continue
		}
		forwarded++

		if err := r.source.Ack(ctx, job); err != nil {
			// SQS already holds the job; it may be relayed twice.
			r.logger.WarnContext(ctx, "failed to ack relayed job",
				"job_key", job.Key,
				"error", err,
			)
		}
	}

	if r.recorder != nil && len(jobs) > 0 {
		r.recorder.RecordForwarded(ctx, r.cfg.QueueName, forwarded)
	}
	if len(jobs) > 0 {
		r.logger.InfoContext(ctx, "relay pass complete",
			"claimed", len(jobs),
			"forwarded", forwarded,
		)
	}
	return forwarded, nil
}

// Run calls RunOnce every interval until ctx is cancelled. A full batch is
// followed by another pass without waiting.
func (r *SQSRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		n, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.ErrorContext(ctx, "relay pass failed", "error", err)
		}
		if err == nil && n >= r.cfg.BatchSize {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (r *SQSRelay) forward(ctx context.Context, job Job) error {
	msg := RelayMessage{
		JobKey:     job.Key,
		Generation: job.Generation,
		Attempts:   job.Attempts,
		FireAt:     job.FireAt,
		Payload:    job.Payload,
		TraceID:    uuid.NewString(),
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal relay message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(r.cfg.QueueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"job_class": {
				DataType:    aws.String("String"),
				StringValue: aws.String(types.JobClassReminder),
			},
		},
	}
	if _, err := r.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("queue: failed to send job to %s: %w", r.cfg.QueueURL, err)
	}
	return nil
}
