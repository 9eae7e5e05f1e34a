// Package statemachine holds declarative status transition tables.
package statemachine

import (
	"sort"

	apperrors "github.com/vaidashi/backoffice-api/pkg/errors"
)

// Table maps every valid current status to the statuses reachable from it
// in one step. Terminal statuses map to an empty slice.
type Table map[string][]string

// Allowed returns the statuses reachable from current. Unknown statuses
// yield nil, so nothing is permitted from a state the table does not know.
func (t Table) Allowed(current string) []string {
	next, ok := t[current]
	if !ok {
		return nil
	}

	out := make([]string, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether from -> to is a declared edge.
func (t Table) CanTransition(from, to string) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate returns an invalid transition error naming both statuses when
// the edge is not declared.
func (t Table) Validate(from, to string) error {
	if !t.CanTransition(from, to) {
		return apperrors.NewInvalidTransitionError(from, to)
	}
	return nil
}

// Has reports whether status is a key of the table.
func (t Table) Has(status string) bool {
	_, ok := t[status]
	return ok
}

// IsTerminal reports whether status is known and has no outgoing edges.
func (t Table) IsTerminal(status string) bool {
	next, ok := t[status]
	return ok && len(next) == 0
}

// Statuses returns every status the table declares, sorted.
func (t Table) Statuses() []string {
	out := make([]string, 0, len(t))
	for s := range t {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
