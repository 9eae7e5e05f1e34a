package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")
	ErrDatabase = errors.New("database error")
)

// ListFilter pages and filters list queries
type ListFilter struct {
	Status string
	Limit  int
	Offset int
}

// Normalize clamps the page size to [1, 100], defaulting to 20
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
