package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusCode(t *testing.T) {
	cause := errors.New("restock failed")

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("order ord-1 not found"), http.StatusNotFound},
		{"invalid transition", NewInvalidTransitionError("delivered", "processing"), http.StatusBadRequest},
		{"side effect", NewSideEffectError("order.restock", cause), http.StatusInternalServerError},
		{"persistence", NewPersistenceError("update status", cause), http.StatusInternalServerError},
		{"wrapped conflict", fmt.Errorf("create: %w", ErrConflict), http.StatusConflict},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusCode(tt.err); got != tt.want {
				t.Fatalf("StatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInvalidTransitionNamesBothStatuses(t *testing.T) {
	err := NewInvalidTransitionError("delivered", "processing")

	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("expected ErrInvalidTransition kind")
	}
	if got, want := err.Error(), `cannot transition from "delivered" to "processing"`; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
	if err.Context["from"] != "delivered" || err.Context["to"] != "processing" {
		t.Fatalf("unexpected context: %v", err.Context)
	}
}

func TestSideEffectErrorKeepsCause(t *testing.T) {
	cause := errors.New("variant var-1 missing")
	err := NewSideEffectError("order.restock", cause)

	if !errors.Is(err, ErrSideEffect) {
		t.Fatal("expected ErrSideEffect kind")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be reachable with errors.Is")
	}
	if err.Cause() != cause {
		t.Fatal("Cause() did not return the original error")
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(NewInvalidTransitionError("a", "b")) {
		t.Fatal("invalid transition must not be retryable")
	}
	if !IsRetryable(NewTemporaryError("broker down")) {
		t.Fatal("temporary error must be retryable")
	}
	if !IsRetryable(fmt.Errorf("publish: %w", ErrTimeout)) {
		t.Fatal("wrapped timeout must be retryable")
	}
}
