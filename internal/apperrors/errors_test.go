package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

type clientError struct{ code int }

func (e *clientError) Error() string { return fmt.Sprintf("status %d", e.code) }

func TestConfiguration(t *testing.T) {
	t.Parallel()
	err := Configuration("AZ_REGION", "required configuration missing: AZ_REGION")

	if !errors.Is(err, ErrConfig) {
		t.Error("expected error to match ErrConfig")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("configuration error must not match ErrValidation")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "AZ_REGION" {
		t.Errorf("expected field 'AZ_REGION', got %q", appErr.Field)
	}
}

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("pool", "pool is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "pool is required" {
		t.Errorf("expected message 'pool is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "pool" {
		t.Errorf("expected field 'pool', got %q", appErr.Field)
	}
}

func TestAlreadyExists_KeepsCause(t *testing.T) {
	t.Parallel()
	cause := &clientError{code: 409}
	err := AlreadyExists("job", "agent-job-1", cause)

	if !errors.Is(err, ErrConflict) {
		t.Error("expected error to match ErrConflict")
	}
	if errors.Is(err, ErrInternal) {
		t.Error("conflict must not match ErrInternal")
	}

	var ce *clientError
	if !errors.As(err, &ce) {
		t.Fatal("expected client error to be reachable")
	}
	if ce.code != 409 {
		t.Errorf("expected code 409, got %d", ce.code)
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "job" {
		t.Errorf("expected resource 'job', got %q", appErr.Resource)
	}
	if err.Error() != "job agent-job-1 already exists" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("api server unavailable")
	err := Internal("kubernetes.listJobs", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through errors.Is")
	}
	if err.Error() != "kubernetes.listJobs: api server unavailable" {
		t.Errorf("unexpected message: %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "kubernetes.listJobs" {
		t.Errorf("expected op 'kubernetes.listJobs', got %q", appErr.Op)
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"validation", Validation("pool", "required"), http.StatusBadRequest},
		{"already exists", AlreadyExists("job", "123", fmt.Errorf("409")), http.StatusConflict},
		{"internal", Internal("op", fmt.Errorf("fail")), http.StatusBadGateway},
		{"configuration", Configuration("JOB_IMAGE", "missing"), http.StatusInternalServerError},
		{"wrapped validation", fmt.Errorf("wrap: %w", Validation("f", "m")), http.StatusBadRequest},
		{"unknown error", fmt.Errorf("unknown"), http.StatusInternalServerError},
		{"nil error", nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := HTTPStatus(tt.err)
			if got != tt.expected {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestErrorsIsWithWrapping(t *testing.T) {
	t.Parallel()
	original := AlreadyExists("job", "agent-job-7", fmt.Errorf("exists"))
	wrapped := fmt.Errorf("service error: %w", original)
	doubleWrapped := fmt.Errorf("handler error: %w", wrapped)

	if !errors.Is(doubleWrapped, ErrConflict) {
		t.Error("expected errors.Is to find ErrConflict through multiple wraps")
	}
}
