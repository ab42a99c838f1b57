// Package model defines the internal domain types for the abbreviation service.
package model

const (
	// MaxAbbreviationLength is the longest abbreviation accepted, in characters.
	MaxAbbreviationLength = 50

	// MaxFullFormLength is the longest full form accepted, in characters.
	MaxFullFormLength = 100
)

// Entry is one stored abbreviation: the short form, its expansion and an
// optional free-text description. ID is assigned by the store on insert and
// never changes afterwards.
type Entry struct {
	ID           int64
	Abbreviation string
	FullForm     string
	Description  string
}
