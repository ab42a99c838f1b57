// Package view renders the server-side HTML pages.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"git.cscs.ch/openchami/chamicore-abbrev/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// Page names accepted by Render.
const (
	PageIndex    = "index"
	PageForm     = "form"
	PageNotFound = "notfound"
)

// IndexPage is the data for the list/search page.
type IndexPage struct {
	Entries []model.Entry
	Search  string
}

// FormValues are the raw values shown in the create/update form.
type FormValues struct {
	Abbreviation string
	FullForm     string
	Description  string
}

// FormPage is the data for the create and update forms.
type FormPage struct {
	Title     string
	Action    string
	Submit    string
	CSRFToken string
	Values    FormValues

	// FieldErrors maps a form field name to its messages.
	FieldErrors map[string][]string
	// FormErrors are messages not tied to a single field.
	FormErrors []string

	MaxAbbreviation int
	MaxFullForm     int
}

// NotFoundPage is the data for the 404 page.
type NotFoundPage struct {
	Message string
}

// Renderer executes the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page together with the shared layout.
func New() (*Renderer, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	pages := make(map[string]*template.Template, 3)
	for _, name := range []string{PageIndex, PageForm, PageNotFound} {
		base, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning layout for %s: %w", name, err)
		}
		tmpl, err := base.ParseFS(templateFS, "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parsing page %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes the named page to w. The page is executed into a buffer
// first so a template error never leaves a half-written response.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}
