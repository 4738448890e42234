package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipescheduler/internal/queue"
	"recipescheduler/internal/types"
)

type recordingJobs struct {
	mu   sync.Mutex
	jobs []queue.Job
	out  types.Outcome
}

func (r *recordingJobs) HandleJob(_ context.Context, job queue.Job) types.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return r.out
}

func relayBody(t *testing.T, key string) string {
	t.Helper()
	payload, err := types.ReminderPayload{EventID: key, UserID: "u1", Title: "Bake bread", EventTime: time.Now().UTC()}.Encode()
	require.NoError(t, err)
	b, err := json.Marshal(queue.RelayMessage{
		JobKey:     key,
		Generation: "gen-" + key,
		Attempts:   1,
		FireAt:     time.Date(2025, 3, 1, 9, 45, 0, 0, time.UTC),
		Payload:    payload,
		TraceID:    "trace-" + key,
	})
	require.NoError(t, err)
	return string(b)
}

func newTestHandler(out types.Outcome) (*Handler, *recordingJobs) {
	jobs := &recordingJobs{out: out}
	return &Handler{jobs: jobs, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, jobs
}

func TestHandle_DispatchesEveryRecord(t *testing.T) {
	h, jobs := newTestHandler(types.Outcome{Kind: types.OutcomeDelivered})

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: relayBody(t, "e1")},
		{MessageId: "m2", Body: relayBody(t, "e2")},
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	require.Len(t, jobs.jobs, 2)
	assert.Equal(t, "e1", jobs.jobs[0].Key)
	assert.Equal(t, "gen-e1", jobs.jobs[0].Generation)

	p, err := types.DecodeReminderPayload(jobs.jobs[1].Payload)
	require.NoError(t, err)
	assert.Equal(t, "Bake bread", p.Title)
}

func TestHandle_FailedDeliveryIsNotRetried(t *testing.T) {
	h, jobs := newTestHandler(types.Outcome{Kind: types.OutcomeDeliveryFailed, Reason: "timeout"})

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: relayBody(t, "e1")},
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Len(t, jobs.jobs, 1)
}

func TestHandle_MalformedBodyIsAcked(t *testing.T) {
	h, jobs := newTestHandler(types.Outcome{Kind: types.OutcomeDelivered})

	resp, err := h.Handle(context.Background(), events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "bad", Body: "{not json"},
		{MessageId: "nokey", Body: `{"generation":"g"}`},
		{MessageId: "m1", Body: relayBody(t, "e1")},
	}})

	require.NoError(t, err)
	assert.Empty(t, resp.BatchItemFailures)
	assert.Len(t, jobs.jobs, 1)
}

func TestHandle_ExpiredContextReturnsRemainder(t *testing.T) {
	h, jobs := newTestHandler(types.Outcome{Kind: types.OutcomeDelivered})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := h.Handle(ctx, events.SQSEvent{Records: []events.SQSMessage{
		{MessageId: "m1", Body: relayBody(t, "e1")},
		{MessageId: "m2", Body: relayBody(t, "e2")},
	}})

	require.NoError(t, err)
	assert.Empty(t, jobs.jobs)
	require.Len(t, resp.BatchItemFailures, 2)
	assert.Equal(t, "m1", resp.BatchItemFailures[0].ItemIdentifier)
}

func TestIsLambdaEnvironment(t *testing.T) {
	t.Setenv("AWS_LAMBDA_RUNTIME_API", "")
	assert.True(t, isLambdaEnvironment())
}
