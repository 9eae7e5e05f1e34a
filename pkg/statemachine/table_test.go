package statemachine

import (
	"errors"
	"testing"

	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

var checkTable = Table{
	"draft":     {"completed", "cancelled"},
	"completed": {},
	"cancelled": {},
}

func TestAllowedFailsClosed(t *testing.T) {
	if got := checkTable.Allowed("archived"); len(got) != 0 {
		t.Fatalf("Allowed(unknown) = %v, want empty", got)
	}
	if got := checkTable.Allowed("completed"); len(got) != 0 {
		t.Fatalf("Allowed(terminal) = %v, want empty", got)
	}
}

func TestAllowedReturnsCopy(t *testing.T) {
	got := checkTable.Allowed("draft")
	got[0] = "mutated"

	if checkTable["draft"][0] != "completed" {
		t.Fatal("Allowed must not expose the table's backing slice")
	}
}

func TestValidate(t *testing.T) {
	if err := checkTable.Validate("draft", "completed"); err != nil {
		t.Fatalf("draft -> completed: unexpected error %v", err)
	}

	err := checkTable.Validate("completed", "draft")
	if !errors.Is(err, apperrors.ErrInvalidTransition) {
		t.Fatalf("completed -> draft: got %v, want invalid transition", err)
	}

	if err := checkTable.Validate("unknown", "draft"); err == nil {
		t.Fatal("transition from unknown status must be rejected")
	}
}

func TestIsTerminal(t *testing.T) {
	tests := map[string]bool{
		"draft":     false,
		"completed": true,
		"cancelled": true,
		"missing":   false,
	}
	for status, want := range tests {
		if got := checkTable.IsTerminal(status); got != want {
			t.Errorf("IsTerminal(%q) = %v, want %v", status, got, want)
		}
	}
}

func TestStatusesSorted(t *testing.T) {
	got := checkTable.Statuses()
	want := []string{"cancelled", "completed", "draft"}

	if len(got) != len(want) {
		t.Fatalf("Statuses() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Statuses() = %v, want %v", got, want)
		}
	}
}
