package toolerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	e := New(KindProtocol, "unknown tool %q", "search")
	want := `[protocol] unknown tool "search"`
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}

	wrapped := Wrap(KindTransport, fmt.Errorf("dial refused"), "connect %q", "srv1")
	want = `[transport] connect "srv1": dial refused`
	if wrapped.Error() != want {
		t.Errorf("Error() = %q, want %q", wrapped.Error(), want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	e := Wrap(KindTransport, cause, "connect failed")
	if !errors.Is(e, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(New(KindTransport, "dial timeout")) {
		t.Error("transport errors should be retryable")
	}
	if IsRetryable(New(KindRegistration, "duplicate name")) {
		t.Error("registration errors should not be retryable")
	}
	if IsRetryable(fmt.Errorf("some plain error")) {
		t.Error("a non-toolerr error should not be reported retryable")
	}
}

func TestAs(t *testing.T) {
	original := New(KindSchema, "missing required field %q", "path")
	wrapped := fmt.Errorf("executing tool: %w", original)

	got, ok := As(wrapped)
	if !ok {
		t.Fatal("expected As to find the toolerr.Error in the chain")
	}
	if got.Kind != KindSchema {
		t.Errorf("Kind = %q, want %q", got.Kind, KindSchema)
	}

	if _, ok := As(fmt.Errorf("unrelated")); ok {
		t.Error("As should return false for an error with no toolerr.Error in its chain")
	}
}
