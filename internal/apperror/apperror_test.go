package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := ErrBackendUnavailable.WithCause(errors.New("dial tcp: refused"))
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Error("wrapped error should match its sentinel")
	}
	if errors.Is(err, ErrCodeNotFound) {
		t.Error("different codes should not match")
	}

	wrapped := fmt.Errorf("login: %w", ErrCodeDeactivated)
	if !errors.Is(wrapped, ErrCodeDeactivated) {
		t.Error("fmt-wrapped sentinel should match")
	}
}

func TestUnavailable(t *testing.T) {
	if Unavailable(nil) != nil {
		t.Error("nil stays nil")
	}

	cause := errors.New("disk full")
	err := Unavailable(cause)
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Errorf("err = %v, want backend_unavailable", err)
	}
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable")
	}

	notFound := fmt.Errorf("get item: %w", ErrRecordNotFound)
	if got := Unavailable(notFound); !errors.Is(got, ErrRecordNotFound) {
		t.Errorf("app errors should pass through, got %v", got)
	}
}

func TestFrom(t *testing.T) {
	ae := From(Validation("name is required"))
	if ae.HTTPCode() != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", ae.HTTPCode())
	}
	if ae.Message() != "name is required" {
		t.Errorf("message = %q", ae.Message())
	}

	ae = From(errors.New("boom"))
	if ae.ErrorCode() != "backend_unavailable" {
		t.Errorf("code = %q, want backend_unavailable", ae.ErrorCode())
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, fmt.Errorf("login: %w", ErrCodeDeactivated))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["error"] != "code_deactivated" {
		t.Errorf("error = %q, want code_deactivated", got["error"])
	}
	if got["message"] == "" {
		t.Error("expected a message")
	}
}

func TestWriteJSONPlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, errors.New("boom"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}
