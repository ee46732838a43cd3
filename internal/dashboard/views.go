package dashboard

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
)

const pageTemplate = "dashboard.html"

// Views holds the parsed page and partial templates.
type Views struct {
	t *template.Template
}

// ParseViews parses templates/*.html from fsys.
func ParseViews(fsys fs.FS) (*Views, error) {
	t, err := template.ParseFS(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse dashboard templates: %w", err)
	}
	return &Views{t: t}, nil
}

func (v *Views) partial(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := v.t.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(buf.String()), nil
}

func (v *Views) page(w io.Writer, doc *Document) error {
	data := struct{ Doc *Document }{Doc: doc}
	if err := v.t.ExecuteTemplate(w, pageTemplate, data); err != nil {
		return fmt.Errorf("render %s: %w", pageTemplate, err)
	}
	return nil
}
