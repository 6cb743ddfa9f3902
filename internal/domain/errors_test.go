package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestNetworkError(t *testing.T) {
	baseErr := errors.New("connection refused")

	t.Run("retriable error", func(t *testing.T) {
		err := NewNetworkError("dial", baseErr)

		if !err.IsRetriable() {
			t.Error("Expected error to be retriable")
		}

		if err.Error() != "dial: connection refused" {
			t.Errorf("Error message = %q, want %q", err.Error(), "dial: connection refused")
		}

		if !errors.Is(err, baseErr) {
			t.Error("Expected error to wrap baseErr")
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		err := NewFatalNetworkError("click", ErrAgent)

		if err.IsRetriable() {
			t.Error("Expected error to not be retriable")
		}
		if !errors.Is(err, ErrAgent) {
			t.Error("Expected error to wrap ErrAgent")
		}
	})

	t.Run("IsRetriable through wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("probe slot 3: %w", NewNetworkError("capture", baseErr))
		plain := errors.New("plain error")

		if !IsRetriable(wrapped) {
			t.Error("IsRetriable should see through fmt.Errorf wrapping")
		}
		if IsRetriable(plain) {
			t.Error("IsRetriable should return false for plain error")
		}
	})
}

func TestConfigError(t *testing.T) {
	err := &ConfigError{Field: "cloak.window", Err: ErrInvalidWindow}

	if err.IsRetriable() {
		t.Error("ConfigError should never be retriable")
	}

	expected := "config error [cloak.window]: invalid target window"
	if err.Error() != expected {
		t.Errorf("Error message = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, ErrInvalidWindow) {
		t.Error("Expected ConfigError to unwrap to ErrInvalidWindow")
	}
}
