package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := Wrap(internal, "failed")

	if err.Error() != "failed: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrValidation
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestNewValidation(t *testing.T) {
	err := NewValidation("Resume data is required")
	if err.Code != ErrValidation.Code {
		t.Fatalf("expected %s, got %s", ErrValidation.Code, err.Code)
	}
	if err.Message != "Resume data is required" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}

func TestNewConfigurationStatus(t *testing.T) {
	err := NewConfiguration("auth.api_secret must be configured")
	if err.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
	if err.Code != ErrConfiguration.Code {
		t.Fatalf("unexpected code: %s", err.Code)
	}
}
