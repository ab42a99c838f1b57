// Package types defines the public wire format of the abbreviation service.
//
// These types are shared by the HTTP handlers, the client SDK and the CLI.
// JSON tags use snake_case to match the field names of the HTML forms and the
// /get_abbreviations endpoint.
package types

// ===========================================================================
// Entry
// ===========================================================================

// Entry is one abbreviation as returned by GET /get_abbreviations.
type Entry struct {
	ID           int64  `json:"id"`
	Abbreviation string `json:"abbreviation"`
	FullForm     string `json:"full_form"`
	Description  string `json:"description"`
}

// ===========================================================================
// Errors
// ===========================================================================

// ProblemDetail is an RFC 9457 problem document, returned by the JSON
// endpoints on failure.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Errors lists field-level validation failures, if any.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError describes a validation failure on a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ===========================================================================
// Build information
// ===========================================================================

// VersionInfo is the body of GET /version and of `version --json`.
type VersionInfo struct {
	Service   string `json:"service"`
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
}
