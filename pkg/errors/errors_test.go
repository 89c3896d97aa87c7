package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	expected := "INVALID_INPUT: test error"
	if err.Error() != expected {
		t.Errorf("Error() = %v, want %v", err.Error(), expected)
	}
}

func TestAppError_WithCause(t *testing.T) {
	originalErr := errors.New("original error")
	err := WrapError(originalErr, ErrCodeInternal, "wrapped error", 500)

	if err.Cause != originalErr {
		t.Errorf("Cause = %v, want %v", err.Cause, originalErr)
	}
	if !strings.Contains(err.Error(), "original error") {
		t.Errorf("Error() should contain cause, got: %v", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("errors.Is should see the cause")
	}
}

func TestAppError_WithContext(t *testing.T) {
	err := NewAppError(ErrCodeInvalidInput, "test error", 400)
	err.WithContext("field", "value").WithContext("count", 42)

	if err.Context["field"] != "value" {
		t.Errorf("Context[field] = %v, want 'value'", err.Context["field"])
	}
	if err.Context["count"] != 42 {
		t.Errorf("Context[count] = %v, want 42", err.Context["count"])
	}
}

func TestNewConfigurationError(t *testing.T) {
	err := NewConfigurationError("gemini", "api key is not set")
	if err.Code != ErrCodeConfiguration {
		t.Errorf("Code = %v, want %v", err.Code, ErrCodeConfiguration)
	}
	if err.Context["provider"] != "gemini" {
		t.Errorf("provider context = %v", err.Context["provider"])
	}
	if UserMessage(err) != "api key is not set" {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestNewUpstreamError(t *testing.T) {
	cause := errors.New("429 quota exhausted")
	err := NewUpstreamError("gemini", cause)
	if err.HTTPStatus != 502 {
		t.Errorf("HTTPStatus = %v, want 502", err.HTTPStatus)
	}
	if got := UserMessage(err); got != "gemini request failed: 429 quota exhausted" {
		t.Errorf("UserMessage = %q", got)
	}
}

func TestGetAppError_ThroughWrapping(t *testing.T) {
	appErr := NewNotFoundError("scan record")
	wrapped := fmt.Errorf("follow-up: %w", appErr)

	if got := GetAppError(wrapped); got != appErr {
		t.Errorf("GetAppError() = %v, want %v", got, appErr)
	}
	if !HasCode(wrapped, ErrCodeNotFound) {
		t.Error("HasCode should find NOT_FOUND through wrapping")
	}
	if GetAppError(errors.New("plain")) != nil {
		t.Error("plain errors have no AppError")
	}
	if UserMessage(errors.New("plain")) != "plain" {
		t.Error("plain errors keep their message")
	}
}
