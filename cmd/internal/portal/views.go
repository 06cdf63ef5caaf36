package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"projectbank/cmd/internal/authstate"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplates = []string{
	"home", "browse", "project", "upload", "profile", "edit_profile",
	"login", "register", "placeholder", "loading", "not_found",
}

// viewData is passed to every template.
type viewData struct {
	Page   Page
	User   *authstate.Identity
	Flash  string
	Error  string
	Fields map[string]string

	Login    loginForm
	Register registerForm
	Next     string

	Departments []Option
	Semesters   []Option

	ProjectID string
	Path      string
}

type views struct {
	pages map[string]*template.Template
}

func loadViews() (*views, error) {
	v := &views{pages: make(map[string]*template.Template, len(pageTemplates))}
	for _, name := range pageTemplates {
		t, err := template.New("layout.html").ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

func (v *views) render(w http.ResponseWriter, status int, name string, data viewData) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout.html", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
