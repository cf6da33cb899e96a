package errors

import (
	stdErrors "errors"
	"fmt"
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

	if !stdErrors.Is(with, base) {
		t.Fatal("expected copy to match its sentinel")
	}
}

func TestIsDistinguishesCodes(t *testing.T) {
	taken := New("USERNAME_TAKEN", "Username already registered", http.StatusBadRequest)
	exists := New("ADMIN_EXISTS", "Admin already exists", http.StatusBadRequest)

	wrapped := fmt.Errorf("register: %w", taken)
	if !stdErrors.Is(wrapped, taken) {
		t.Fatal("expected wrapped error to match")
	}
	if stdErrors.Is(wrapped, exists) {
		t.Fatal("expected different codes not to match")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
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

func TestNewBadRequest(t *testing.T) {
	err := NewBadRequest("invalid payload")
	if err.Code != ErrBadRequest.Code {
		t.Fatalf("expected %s, got %s", ErrBadRequest.Code, err.Code)
	}
	if err.Message != "invalid payload" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
	if err.StatusCode != ErrBadRequest.StatusCode {
		t.Fatalf("unexpected status: %d", err.StatusCode)
	}
}

func TestNewDuplicateAndNotFound(t *testing.T) {
	dup := NewDuplicate("Username already registered")
	if dup.StatusCode != http.StatusBadRequest || dup.Code != ErrDuplicate.Code {
		t.Fatalf("unexpected duplicate error: %+v", dup)
	}

	missing := NewNotFound("Server not found")
	if missing.StatusCode != http.StatusNotFound || missing.Code != ErrNotFound.Code {
		t.Fatalf("unexpected not found error: %+v", missing)
	}
}
