package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipescheduler/internal/types"
)

// --- Mock SQS Client ---

// mockSQSSender captures SendMessage calls for test assertions.
type mockSQSSender struct {
	mu    sync.Mutex
	calls []*sqs.SendMessageInput
	// failKeys makes SendMessage fail for messages with these job keys.
	failKeys map[string]bool
}

func (m *mockSQSSender) SendMessage(_ context.Context, params *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, params)

	var msg RelayMessage
	_ = json.Unmarshal([]byte(*params.MessageBody), &msg)
	if m.failKeys[msg.JobKey] {
		return nil, errors.New("sqs: service unavailable")
	}
	return &sqs.SendMessageOutput{}, nil
}

type recordedForward struct {
	queue string
	n     int
}

type fakeRecorder struct {
	got []recordedForward
}

func (f *fakeRecorder) RecordForwarded(_ context.Context, queueName string, n int) {
	f.got = append(f.got, recordedForward{queueName, n})
}

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123456789/reminders"

func newTestRelay(source Consumer, sender SQSSender, rec RelayRecorder) *SQSRelay {
	return NewSQSRelay(source, sender, RelayConfig{
		QueueName: "reminders",
		QueueURL:  testQueueURL,
		BatchSize: 10,
		Lease:     time.Minute,
	}, types.FixedClock{T: baseTime}, rec, slog.Default())
}

func TestSQSRelay_ForwardsDueJobsAndAcks(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "evt-1", []byte(`{"eventId":"evt-1"}`), baseTime.Add(-time.Minute)))
	require.NoError(t, q.Enqueue(ctx, "evt-2", []byte(`{"eventId":"evt-2"}`), baseTime.Add(time.Hour)))

	sender := &mockSQSSender{}
	rec := &fakeRecorder{}
	relay := newTestRelay(q, sender, rec)

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, sender.calls, 1)

	call := sender.calls[0]
	assert.Equal(t, testQueueURL, *call.QueueUrl)
	assert.Equal(t, types.JobClassReminder, *call.MessageAttributes["job_class"].StringValue)

	msg, err := DecodeRelayMessage(*call.MessageBody)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", msg.JobKey)
	assert.Equal(t, `{"eventId":"evt-1"}`, string(msg.Payload))
	assert.NotEmpty(t, msg.TraceID)
	assert.Equal(t, 1, msg.Attempts)

	// Forwarded job is acked; the future one is untouched.
	pending := q.Pending()
	assert.Len(t, pending, 1)
	assert.Contains(t, pending, "evt-2")
	assert.Equal(t, []recordedForward{{"reminders", 1}}, rec.got)
}

func TestSQSRelay_FailedSendLeavesJobLeased(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	require.NoError(t, q.Enqueue(ctx, "ok", nil, baseTime))
	require.NoError(t, q.Enqueue(ctx, "fails", nil, baseTime))

	sender := &mockSQSSender{failKeys: map[string]bool{"fails": true}}
	relay := newTestRelay(q, sender, nil)

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending := q.Pending()
	require.Len(t, pending, 1)
	assert.Contains(t, pending, "fails")

	// Once the lease expires the job is claimable again.
	again, err := q.Claim(ctx, baseTime.Add(time.Minute), 10, time.Minute)
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 2, again[0].Attempts)
}

type failingConsumer struct{}

func (failingConsumer) Claim(context.Context, time.Time, int, time.Duration) ([]Job, error) {
	return nil, unavailable("claim", errors.New("down"))
}

func (failingConsumer) Ack(context.Context, Job) error { return nil }

func TestSQSRelay_ClaimErrorIsReturned(t *testing.T) {
	relay := newTestRelay(failingConsumer{}, &mockSQSSender{}, nil)
	_, err := relay.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestSQSRelay_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	relay := newTestRelay(NewMemoryQueue(), &mockSQSSender{}, nil)

	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx, 10*time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestDecodeRelayMessage(t *testing.T) {
	_, err := DecodeRelayMessage("{not json")
	assert.Error(t, err)

	_, err = DecodeRelayMessage(`{"generation":"g"}`)
	assert.Error(t, err)

	msg, err := DecodeRelayMessage(`{"job_key":"evt-1","generation":"g","attempts":2,"payload":"e30="}`)
	require.NoError(t, err)
	job := msg.Job()
	assert.Equal(t, "evt-1", job.Key)
	assert.Equal(t, "g", job.Generation)
	assert.Equal(t, 2, job.Attempts)
	assert.Equal(t, "{}", string(job.Payload))
}
