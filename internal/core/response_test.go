package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recipescheduler/internal/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusCreated, map[string]bool{"success": true})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if strings.TrimSpace(w.Body.String()) != `{"success":true}` {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestJSON_MarshalFailure(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(types.WithRequestID(r.Context(), "req-marshal-fail"))
	w := httptest.NewRecorder()

	JSON(w, r, http.StatusOK, map[string]any{"bad": make(chan int)})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.RequestID != "req-marshal-fail" {
		t.Errorf("request_id = %q", resp.Error.RequestID)
	}
}

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		code types.ErrorCode
		want int
	}{
		{types.ErrCodeValidationInvalidTime, http.StatusBadRequest},
		{types.ErrCodeValidationMissingField, http.StatusBadRequest},
		{types.ErrCodeNotFoundEvent, http.StatusNotFound},
		{types.ErrCodeSchedulingFailed, http.StatusBadGateway},
		{types.ErrCodeUpstreamQueue, http.StatusBadGateway},
		{types.ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{types.ErrCodeInternalDB, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			Error(w, httptest.NewRequest(http.MethodGet, "/", nil), types.NewAppError(tc.code, "msg", errors.New("secret cause")))

			if w.Code != tc.want {
				t.Errorf("status = %d, want %d", w.Code, tc.want)
			}
			resp := decodeError(t, w)
			if resp.Error.Code != string(tc.code) || resp.Error.Message != "msg" {
				t.Errorf("error = %+v", resp.Error)
			}
			if strings.Contains(w.Body.String(), "secret cause") {
				t.Error("wrapped cause leaked to client")
			}
		})
	}
}

func TestError_WrappedAppErrorAndDetails(t *testing.T) {
	appErr := types.NewAppErrorWithDetails(types.ErrCodeValidationMissingField, "title is required", nil,
		map[string]any{"field": "title"})
	w := httptest.NewRecorder()
	Error(w, httptest.NewRequest(http.MethodPost, "/", nil), fmt.Errorf("handler: %w", appErr))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.Details["field"] != "title" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}

func TestError_GenericError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: relation does not exist"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	resp := decodeError(t, w)
	if resp.Error.Code != string(types.ErrCodeInternalUnexpected) {
		t.Errorf("code = %q", resp.Error.Code)
	}
	if strings.Contains(w.Body.String(), "relation") {
		t.Error("internal message leaked")
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Title string `json:"title"`
		Count int    `json:"count"`
	}

	cases := []struct {
		name       string
		body       string
		wantErr    string
		wantDetail string
	}{
		{"valid", `{"title":"Bake","count":2}`, "", ""},
		{"unknown field", `{"title":"Bake","extra":1}`, "unknown field in request body: extra", "field"},
		{"truncated body", `{"title":`, "malformed", ""},
		{"truncated mid string", `{"title":"Ba`, "malformed", ""},
		{"bad character", `{"title" 1}`, "malformed", "offset"},
		{"empty body", ``, "must not be empty", ""},
		{"type mismatch", `{"count":"two"}`, "invalid value for field count", "expected"},
		{"multiple values", `{"title":"a"}{"title":"b"}`, "single JSON object", ""},
		{"too large", `{"title":"` + strings.Repeat("x", maxRequestBodySize) + `"}`, "64KiB", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
			var dst payload
			err := DecodeJSON(httptest.NewRecorder(), r, &dst)

			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if dst.Title != "Bake" || dst.Count != 2 {
					t.Errorf("decoded %+v", dst)
				}
				return
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T (%v)", err, err)
			}
			if appErr.Code != types.ErrCodeValidationInvalidJSON {
				t.Errorf("code = %q", appErr.Code)
			}
			if !strings.Contains(appErr.Message, tc.wantErr) {
				t.Errorf("message %q does not contain %q", appErr.Message, tc.wantErr)
			}
			if tc.wantDetail != "" {
				if _, ok := appErr.Details[tc.wantDetail]; !ok {
					t.Errorf("details %v missing %q", appErr.Details, tc.wantDetail)
				}
			}
		})
	}
}
