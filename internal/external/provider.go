package external

import (
	"log/slog"

	"recipescheduler/internal/config"
)

// NewPushSender returns the PushSender selected by cfg.Provider.
func NewPushSender(cfg config.PushConfig, logger *slog.Logger) PushSender {
	if cfg.Provider == config.PushProviderStub {
		return NewStubPushSender(logger)
	}
	return NewExpoClient(ExpoClientConfig{
		URL:         cfg.ExpoURL,
		AccessToken: cfg.AccessToken,
		Timeout:     cfg.Timeout,
		Logger:      logger,
	})
}
