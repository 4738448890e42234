package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"recipescheduler/internal/core"
	"recipescheduler/internal/types"
)

// TokenStore persists the single current push token of each user.
// db.PushTokenRepository satisfies it.
type TokenStore interface {
	Upsert(ctx context.Context, userID, token string) error
}

// RegisterDeviceRequest is the body of POST /api/devices.
type RegisterDeviceRequest struct {
	Token string `json:"token" validate:"required,notblank,max=512"`
}

type registerDeviceResponse struct {
	Success bool `json:"success"`
}

// DeviceHandler registers push tokens. Tokens are stored as given; whether
// the push gateway accepts them is decided at dispatch time.
type DeviceHandler struct {
	tokens    TokenStore
	validator *core.Validator
	logger    *slog.Logger
}

// NewDeviceHandler creates a DeviceHandler.
func NewDeviceHandler(tokens TokenStore, v *core.Validator, l *slog.Logger) *DeviceHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DeviceHandler{tokens: tokens, validator: v, logger: l}
}

// RegisterRoutes mounts the device routes.
func (h *DeviceHandler) RegisterRoutes(r chi.Router) {
	r.Post("/devices", h.Register)
}

// Register handles POST /api/devices. A second registration replaces the
// user's previous token.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterDeviceRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	userID := types.GetUserID(r.Context())
	if err := h.tokens.Upsert(r.Context(), userID, strings.TrimSpace(req.Token)); err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "push token registered", "user_id", userID)
	core.JSON(w, r, http.StatusCreated, registerDeviceResponse{Success: true})
}
