package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"recipescheduler/internal/types"
)

// maxRequestBodySize caps event and device bodies. Both carry a few short
// strings, so 64 KiB is generous.
const maxRequestBodySize = 64 << 10

// APIErrorResponse is the error envelope every endpoint returns.
type APIErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of APIErrorResponse.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id"`
}

func errorEnvelope(r *http.Request, code types.ErrorCode, message string, details map[string]any) APIErrorResponse {
	return APIErrorResponse{Error: ErrorDetail{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: types.GetRequestID(r.Context()),
	}}
}

// JSON writes data with the given status. A value that cannot be marshalled
// turns into a 500 envelope instead of a half-written body.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorEnvelope(r, types.ErrCodeInternalUnexpected, "failed to marshal response", nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes err as an envelope. A *types.AppError anywhere in the chain
// supplies the code, status and details; anything else is reported as an
// opaque 500. Wrapped causes never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		JSON(w, r, http.StatusInternalServerError,
			errorEnvelope(r, types.ErrCodeInternalUnexpected, "an unexpected error occurred", nil))
		return
	}
	JSON(w, r, appErr.HTTPStatus(), errorEnvelope(r, appErr.Code, appErr.Message, appErr.Details))
}

// DecodeJSON reads exactly one JSON object from the request body into dst.
// Unknown fields, oversized or empty bodies, truncated input and trailing
// values all fail with validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		message, details := describeDecodeError(err)
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, message, err, details)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

func describeDecodeError(err error) (string, map[string]any) {
	var (
		maxBytesErr  *http.MaxBytesError
		syntaxErr    *json.SyntaxError
		typeErr      *json.UnmarshalTypeError
		unknownField = strings.TrimPrefix(err.Error(), "json: unknown field ")
	)

	switch {
	case errors.As(err, &maxBytesErr):
		return "request body must not exceed 64KiB", nil
	case errors.As(err, &syntaxErr):
		return "malformed JSON in request body", map[string]any{"offset": syntaxErr.Offset}
	case errors.Is(err, io.ErrUnexpectedEOF):
		// A body cut off mid-value never reaches the scanner's syntax check.
		return "malformed JSON in request body", nil
	case errors.Is(err, io.EOF):
		return "request body must not be empty", nil
	case errors.As(err, &typeErr):
		return "invalid value for field " + typeErr.Field, map[string]any{
			"field":    typeErr.Field,
			"expected": typeErr.Type.String(),
		}
	case unknownField != err.Error():
		field := strings.Trim(unknownField, `"`)
		return "unknown field in request body: " + field, map[string]any{"field": field}
	default:
		return "invalid JSON in request body", nil
	}
}
