package external

import "context"

// PushMessage is one notification addressed to a single device token.
type PushMessage struct {
	To    string         `json:"to"`
	Sound string         `json:"sound,omitempty"`
	Title string         `json:"title,omitempty"`
	Body  string         `json:"body,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// Ticket statuses reported by the gateway per message.
const (
	TicketStatusOK    = "ok"
	TicketStatusError = "error"
)

// PushTicket is the gateway's per-message receipt. A ticket with status
// "error" means the gateway accepted the request but rejected that message.
type PushTicket struct {
	Status  string            `json:"status"`
	ID      string            `json:"id,omitempty"`
	Message string            `json:"message,omitempty"`
	Details PushTicketDetails `json:"details"`
}

// PushTicketDetails carries the machine-readable reason of a failed ticket,
// e.g. "DeviceNotRegistered".
type PushTicketDetails struct {
	Error string `json:"error,omitempty"`
}

// Failed reports whether the gateway rejected the message.
func (t PushTicket) Failed() bool {
	return t.Status == TicketStatusError
}

// PushSender is the push-delivery capability. Send returns one ticket per
// message in order, or an error when the request as a whole failed.
type PushSender interface {
	// ValidAddress reports whether token has the format the gateway accepts.
	ValidAddress(token string) bool
	Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
}
