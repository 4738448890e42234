package core

import (
	"errors"
	"testing"

	"recipescheduler/internal/types"
)

type testEventRequest struct {
	Title     string `json:"title" validate:"required,notblank,max=200"`
	EventTime string `json:"eventTime" validate:"required,rfc3339"`
}

func TestValidationResult_IsValid(t *testing.T) {
	if !(ValidationResult{}).IsValid() {
		t.Error("empty result should be valid")
	}
	if !(ValidationResult{Warnings: []string{"note"}}).IsValid() {
		t.Error("warnings alone should be valid")
	}
	if (ValidationResult{Errors: []ValidationError{{Field: "title"}}}).IsValid() {
		t.Error("result with errors should be invalid")
	}
}

func TestValidateStruct_Success(t *testing.T) {
	v := NewValidator(discardLogger())
	err := v.ValidateStruct(testEventRequest{Title: "Bake bread", EventTime: "2025-03-01T10:00:00Z"})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateStruct_FailureReturnsAppError(t *testing.T) {
	v := NewValidator(discardLogger())

	err := v.ValidateStruct(testEventRequest{Title: "", EventTime: "tomorrow"})
	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T: %v", err, err)
	}
	if appErr.Code != types.ErrCodeValidationMissingField {
		t.Errorf("code = %q, want first failure's code", appErr.Code)
	}
	errs, ok := appErr.Details["validation_errors"].([]ValidationError)
	if !ok || len(errs) != 2 {
		t.Fatalf("validation_errors = %#v", appErr.Details["validation_errors"])
	}
	if errs[0].Field != "title" || errs[1].Field != "eventTime" {
		t.Errorf("fields should use JSON names, got %q and %q", errs[0].Field, errs[1].Field)
	}
	if errs[1].Code != string(types.ErrCodeValidationInvalidTime) {
		t.Errorf("eventTime code = %q", errs[1].Code)
	}
}

func TestValidateStruct_CustomTags(t *testing.T) {
	v := NewValidator(discardLogger())
	cases := []struct {
		name     string
		req      testEventRequest
		wantCode types.ErrorCode
	}{
		{"blank title", testEventRequest{Title: "   ", EventTime: "2025-03-01T10:00:00Z"}, types.ErrCodeValidationInvalidTitle},
		{"date only", testEventRequest{Title: "x", EventTime: "2025-03-01"}, types.ErrCodeValidationInvalidTime},
		{"offset time is valid", testEventRequest{Title: "x", EventTime: "2025-03-01T10:00:00+02:00"}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := v.ValidateStructWithWarnings(tc.req)
			if tc.wantCode == "" {
				if !result.IsValid() {
					t.Errorf("unexpected errors: %v", result.Errors)
				}
				return
			}
			if result.IsValid() || result.Errors[0].Code != string(tc.wantCode) {
				t.Errorf("errors = %v, want code %s", result.Errors, tc.wantCode)
			}
		})
	}
}

func TestTagToErrorCode(t *testing.T) {
	cases := map[string]types.ErrorCode{
		"required": types.ErrCodeValidationMissingField,
		"rfc3339":  types.ErrCodeValidationInvalidTime,
		"notblank": types.ErrCodeValidationInvalidTitle,
		"max":      types.ErrCodeValidationInvalidTitle,
		"uuid":     types.ErrCodeValidationFailed,
	}
	for tag, want := range cases {
		if got := tagToErrorCode(tag); got != string(want) {
			t.Errorf("tagToErrorCode(%q) = %q, want %q", tag, got, want)
		}
	}
}

func TestValidateStruct_FieldSpecificCodes(t *testing.T) {
	type deviceRequest struct {
		Token string `json:"token" validate:"required,notblank,max=8"`
	}
	v := NewValidator(discardLogger())

	result := v.ValidateStructWithWarnings(deviceRequest{Token: "ExponentPushToken[too-long]"})
	if result.IsValid() {
		t.Fatal("expected max failure")
	}
	if result.Errors[0].Code != string(types.ErrCodeValidationInvalidToken) {
		t.Errorf("code = %q, want %q", result.Errors[0].Code, types.ErrCodeValidationInvalidToken)
	}

	result = v.ValidateStructWithWarnings(deviceRequest{})
	if result.Errors[0].Code != string(types.ErrCodeValidationMissingField) {
		t.Errorf("code = %q, want missing field", result.Errors[0].Code)
	}
}
