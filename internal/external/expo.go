package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"recipescheduler/internal/types"
)

// DefaultExpoPushURL is the Expo push send endpoint.
const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// expoMaxBatch is the largest number of messages Expo accepts per request.
const expoMaxBatch = 100

var expoUUIDToken = regexp.MustCompile(`(?i)^[a-z\d]{8}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{12}$`)

// IsExpoPushToken reports whether token looks like an Expo push token:
// ExponentPushToken[...], ExpoPushToken[...] or a bare UUID.
func IsExpoPushToken(token string) bool {
	if (strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]") {
		return true
	}
	return expoUUIDToken.MatchString(token)
}

// ExpoClientConfig holds the configuration for creating an ExpoClient.
type ExpoClientConfig struct {
	URL         string // defaults to DefaultExpoPushURL
	AccessToken types.SecretString
	Timeout     time.Duration
	Logger      *slog.Logger
}

// ExpoClient implements PushSender against the Expo push service. Requests
// are attempted once; the breaker only short-circuits while Expo is down.
type ExpoClient struct {
	base        *BaseClient
	url         string
	accessToken types.SecretString
	logger      *slog.Logger
}

// NewExpoClient creates an ExpoClient with its own BaseClient.
func NewExpoClient(cfg ExpoClientConfig) *ExpoClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := NewBaseClient(&http.Client{Timeout: timeout}, "expo-push", "recipe-scheduler/1.0")
	return NewExpoClientWithBase(base, cfg)
}

// NewExpoClientWithBase creates an ExpoClient over a pre-built BaseClient.
func NewExpoClientWithBase(base *BaseClient, cfg ExpoClientConfig) *ExpoClient {
	url := cfg.URL
	if url == "" {
		url = DefaultExpoPushURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpoClient{
		base:        base,
		url:         url,
		accessToken: cfg.AccessToken,
		logger:      logger,
	}
}

// ValidAddress implements PushSender.
func (c *ExpoClient) ValidAddress(token string) bool {
	return IsExpoPushToken(token)
}

// Send posts messages in chunks of at most 100. The first failing chunk
// aborts the call; tickets from earlier chunks are discarded with it.
func (c *ExpoClient) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	tickets := make([]PushTicket, 0, len(messages))
	for start := 0; start < len(messages); start += expoMaxBatch {
		end := min(start+expoMaxBatch, len(messages))
		chunk, err := c.sendChunk(ctx, messages[start:end])
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, chunk...)
	}
	return tickets, nil
}

type expoSendResponse struct {
	Data   []PushTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

func (c *ExpoClient) sendChunk(ctx context.Context, chunk []PushMessage) ([]PushTicket, error) {
	body, err := json.Marshal(chunk)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to marshal push messages", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create push request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken.IsSet() {
		req.Header.Set("Authorization", "Bearer "+c.accessToken.Unmask())
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush, "failed to read push response", err)
	}

	var parsed expoSendResponse
	_ = json.Unmarshal(raw, &parsed)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if len(parsed.Errors) > 0 {
			msg = parsed.Errors[0].Code + ": " + parsed.Errors[0].Message
		}
		return nil, types.NewAppError(types.ErrCodeUpstreamPush,
			fmt.Sprintf("push gateway returned %d: %s", resp.StatusCode, msg), nil)
	}
	if len(parsed.Data) != len(chunk) {
		return nil, types.NewAppError(types.ErrCodeUpstreamPush,
			fmt.Sprintf("push gateway returned %d tickets for %d messages", len(parsed.Data), len(chunk)), nil)
	}

	c.logger.DebugContext(ctx, "push chunk sent", "messages", len(chunk))
	return parsed.Data, nil
}

var _ PushSender = (*ExpoClient)(nil)
