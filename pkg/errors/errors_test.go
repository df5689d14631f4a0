package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "slot not found",
			},
			expected: "NOT_FOUND: slot not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeTransient,
				Message: "store unavailable",
				Err:     errors.New("connection refused"),
			},
			expected: "TRANSIENT: store unavailable (caused by: connection refused)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.appErr.Error()
			if got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	originalErr := errors.New("socket closed")
	appErr := Transient("store unreachable", originalErr)

	if unwrapped := errors.Unwrap(appErr); unwrapped != originalErr {
		t.Errorf("Unwrap() should return the original error, got %v", unwrapped)
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", NotFound("booking"), CodeNotFound},
		{"conflict", Conflict("slot already booked"), CodeConflict},
		{"transient", Transient("timeout", errors.New("i/o timeout")), CodeTransient},
		{"wrapped transient", fmt.Errorf("reserve: %w", Transient("timeout", nil)), CodeTransient},
		{"plain error", errors.New("boom"), CodeInternal},
		{"validation", Validation("bad payload", nil), CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestKindHelpers(t *testing.T) {
	if !IsTransient(Transient("down", nil)) {
		t.Error("IsTransient should report true for transient errors")
	}
	if IsTransient(Conflict("held by someone else")) {
		t.Error("IsTransient should report false for conflicts")
	}
	if !IsConflict(fmt.Errorf("confirm: %w", Conflict("slot booked"))) {
		t.Error("IsConflict should see through wrapping")
	}
	if !IsNotFound(NotFoundWithID("slot", "abc")) {
		t.Error("IsNotFound should report true for not-found errors")
	}
}

func TestAppError_StatusCode(t *testing.T) {
	if got := NotFound("slot").StatusCode(); got != http.StatusNotFound {
		t.Errorf("StatusCode() = %d, want %d", got, http.StatusNotFound)
	}
	if got := Transient("down", nil).StatusCode(); got != http.StatusServiceUnavailable {
		t.Errorf("StatusCode() = %d, want %d", got, http.StatusServiceUnavailable)
	}
}

func TestAsAppError(t *testing.T) {
	plain := errors.New("boom")
	appErr := AsAppError(plain)
	if appErr.Code != CodeInternal {
		t.Errorf("expected plain errors to map to %s, got %s", CodeInternal, appErr.Code)
	}
	if errors.Unwrap(appErr) != plain {
		t.Error("AsAppError should keep the original error as cause")
	}

	conflict := Conflict("already cancelled")
	if AsAppError(conflict) != conflict {
		t.Error("AsAppError should return AppError values unchanged")
	}
}
