package external

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// StubPushSender implements PushSender by logging each message instead of
// contacting a gateway. It is used with PUSH_PROVIDER=stub for local runs.
// Every token is accepted.
type StubPushSender struct {
	logger *slog.Logger
}

// NewStubPushSender creates a new StubPushSender.
func NewStubPushSender(logger *slog.Logger) *StubPushSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubPushSender{logger: logger}
}

func (s *StubPushSender) ValidAddress(token string) bool {
	return token != ""
}

func (s *StubPushSender) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	tickets := make([]PushTicket, 0, len(messages))
	for _, m := range messages {
		s.logger.InfoContext(ctx, "stub: push sent",
			"to", m.To,
			"title", m.Title,
			"body", m.Body,
		)
		tickets = append(tickets, PushTicket{Status: TicketStatusOK, ID: "stub_" + uuid.NewString()})
	}
	return tickets, nil
}

var _ PushSender = (*StubPushSender)(nil)
