// Package views renders the HTML pages. Each page is parsed together with
// the shared layout into its own template set so block names never clash.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin/render"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page is embedded by every page's data; the layout reads it.
type Page struct {
	Title       string
	CurrentUser string
}

// Renderer holds the parsed pages. It implements gin's render.HTMLRender.
type Renderer struct {
	pages map[string]*template.Template
}

// New parses every page in the embedded template directory.
func New() (*Renderer, error) {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	r := &Renderer{pages: make(map[string]*template.Template)}
	for _, e := range entries {
		file := path.Join("templates", e.Name())
		if e.IsDir() || file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".html")
		tmpl, err := template.New(name).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = tmpl
	}
	return r, nil
}

// Has reports whether a page called name exists.
func (r *Renderer) Has(name string) bool {
	_, ok := r.pages[name]
	return ok
}

// Render executes page name into w. Output is buffered so a failing
// template never leaves a half written page.
func (r *Renderer) Render(w io.Writer, name string, data any) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Instance lets gin's c.HTML render through r.
func (r *Renderer) Instance(name string, data any) render.Render {
	return pageRender{renderer: r, name: name, data: data}
}

type pageRender struct {
	renderer *Renderer
	name     string
	data     any
}

var htmlContentType = []string{"text/html; charset=utf-8"}

func (p pageRender) Render(w http.ResponseWriter) error {
	p.WriteContentType(w)
	return p.renderer.Render(w, p.name, p.data)
}

func (p pageRender) WriteContentType(w http.ResponseWriter) {
	header := w.Header()
	if val := header["Content-Type"]; len(val) == 0 {
		header["Content-Type"] = htmlContentType
	}
}
