package server

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/httputil"
	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
)

// Form field names, shared with the templates.
const (
	fieldAbbreviation = "abbreviation"
	fieldFullForm     = "full_form"
	fieldDescription  = "description"
)

// entryForm holds the raw values submitted by the create and update forms.
type entryForm struct {
	Abbreviation string
	FullForm     string
	Description  string
}

func entryFormFromRequest(r *http.Request) entryForm {
	return entryForm{
		Abbreviation: r.PostFormValue(fieldAbbreviation),
		FullForm:     r.PostFormValue(fieldFullForm),
		Description:  r.PostFormValue(fieldDescription),
	}
}

func entryFormFromModel(m model.Entry) entryForm {
	return entryForm{
		Abbreviation: m.Abbreviation,
		FullForm:     m.FullForm,
		Description:  m.Description,
	}
}

// entry converts a validated form to the stored representation.
func (f entryForm) entry(id int64) model.Entry {
	return model.Entry{
		ID:           id,
		Abbreviation: strings.TrimSpace(f.Abbreviation),
		FullForm:     strings.TrimSpace(f.FullForm),
		Description:  f.Description,
	}
}

// validateEntryForm returns the field-level errors of f, or nil if f is valid.
func validateEntryForm(f entryForm) []httputil.ValidationError {
	var errs []httputil.ValidationError

	abbr := strings.TrimSpace(f.Abbreviation)
	switch {
	case abbr == "":
		errs = append(errs, httputil.ValidationError{
			Field:   fieldAbbreviation,
			Message: "Abbreviation is required.",
		})
	case utf8.RuneCountInString(abbr) > model.MaxAbbreviationLength:
		errs = append(errs, httputil.ValidationError{
			Field:   fieldAbbreviation,
			Message: fmt.Sprintf("Abbreviation must be at most %d characters.", model.MaxAbbreviationLength),
		})
	}

	fullForm := strings.TrimSpace(f.FullForm)
	switch {
	case fullForm == "":
		errs = append(errs, httputil.ValidationError{
			Field:   fieldFullForm,
			Message: "Full form is required.",
		})
	case utf8.RuneCountInString(fullForm) > model.MaxFullFormLength:
		errs = append(errs, httputil.ValidationError{
			Field:   fieldFullForm,
			Message: fmt.Sprintf("Full form must be at most %d characters.", model.MaxFullFormLength),
		})
	}

	return errs
}

func duplicateAbbreviationError(abbr string) httputil.ValidationError {
	return httputil.ValidationError{
		Field:   fieldAbbreviation,
		Message: fmt.Sprintf("Abbreviation %q already exists.", abbr),
	}
}

var invalidTokenError = httputil.ValidationError{
	Message: "The form has expired or was tampered with. Please submit it again.",
}
