// Package store defines the persistence contract for abbreviation entries.
//
// All implementations accept context.Context as the first parameter and
// report expected conditions through the sentinel errors below; any other
// error indicates an infrastructure failure.
package store

import (
	"context"
	"errors"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	// ErrNotFound is returned when the requested entry does not exist.
	ErrNotFound = errors.New("entry not found")

	// ErrConflict is returned when a write would duplicate an existing
	// abbreviation.
	ErrConflict = errors.New("abbreviation already exists")
)

// ---------------------------------------------------------------------------
// Search options
// ---------------------------------------------------------------------------

// Scope selects which columns a search matches against.
type Scope int

const (
	// ScopeAll matches the query against abbreviation, full form and
	// description.
	ScopeAll Scope = iota

	// ScopeAbbreviation matches the query against the abbreviation only.
	ScopeAbbreviation
)

// SearchOptions carries the parameters of a substring search. Matching is
// case-insensitive; a blank Query matches every entry.
type SearchOptions struct {
	Query string
	Scope Scope
}

// ---------------------------------------------------------------------------
// Store interface
// ---------------------------------------------------------------------------

// Store defines the data access methods for abbreviation entries. Every list
// is ordered ascending by abbreviation.
type Store interface {
	// Ping checks database connectivity. Used by the readiness probe.
	Ping(ctx context.Context) error

	// ListEntries returns every entry.
	ListEntries(ctx context.Context) ([]model.Entry, error)

	// SearchEntries returns the entries whose scoped columns contain the query.
	SearchEntries(ctx context.Context, opts SearchOptions) ([]model.Entry, error)

	// GetEntry retrieves a single entry by ID.
	// Returns ErrNotFound if the entry does not exist.
	GetEntry(ctx context.Context, id int64) (model.Entry, error)

	// CreateEntry inserts a new entry and returns it with its assigned ID.
	// Returns ErrConflict if the abbreviation is already taken.
	CreateEntry(ctx context.Context, m model.Entry) (model.Entry, error)

	// UpdateEntry replaces abbreviation, full form and description of the
	// entry with m.ID. Returns ErrNotFound or ErrConflict.
	UpdateEntry(ctx context.Context, m model.Entry) (model.Entry, error)

	// DeleteEntry removes an entry by ID.
	// Returns ErrNotFound if the entry does not exist.
	DeleteEntry(ctx context.Context, id int64) error

	// SeedEntries inserts every entry whose abbreviation is not present yet
	// and reports how many rows were inserted. Existing rows are untouched.
	SeedEntries(ctx context.Context, entries []model.Entry) (int, error)
}
