// Package render fills named text templates from a flat key/value context.
package render

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/mark3labs/oasgen/internal/sqlmeta"
)

// Extension marks renderable files.
const Extension = ".tmpl"

// Subdirs are searched, in order, when a template is not found at the root.
var Subdirs = []string{"domain", "application", "infrastructure", "project", "tests"}

// ErrTemplateNotFound is wrapped when no candidate path holds the template.
var ErrTemplateNotFound = errors.New("template not found")

//go:embed templates/*.tmpl
var builtin embed.FS

type TemplateRenderer struct {
	fsys  fs.FS
	funcs template.FuncMap

	mu    sync.Mutex
	cache map[string]*template.Template
}

type Option func(*TemplateRenderer)

// WithFuncs adds template functions, overriding built-ins of the same name.
func WithFuncs(fm template.FuncMap) Option {
	return func(r *TemplateRenderer) {
		for k, v := range fm {
			r.funcs[k] = v
		}
	}
}

// NewTemplateRenderer renders templates stored in fsys.
func NewTemplateRenderer(fsys fs.FS, opts ...Option) *TemplateRenderer {
	r := &TemplateRenderer{
		fsys: fsys,
		funcs: template.FuncMap{
			"lower":      strings.ToLower,
			"upper":      strings.ToUpper,
			"lowerFirst": lowerFirst,
			"snake":      sqlmeta.SnakeCase,
			"plural":     sqlmeta.Pluralize,
			"join":       strings.Join,
		},
		cache: map[string]*template.Template{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Builtin renders the templates embedded in the binary.
func Builtin(opts ...Option) *TemplateRenderer {
	sub, err := fs.Sub(builtin, "templates")
	if err != nil {
		panic(err)
	}
	return NewTemplateRenderer(sub, opts...)
}

// Render executes the named template against ctx.
func (r *TemplateRenderer) Render(name string, ctx map[string]any) (string, error) {
	t, err := r.template(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// Locate returns the path of the named template: the name itself, then the
// name inside each of Subdirs.
func (r *TemplateRenderer) Locate(name string) (string, error) {
	candidates := make([]string, 0, len(Subdirs)+1)
	candidates = append(candidates, name)
	for _, dir := range Subdirs {
		candidates = append(candidates, path.Join(dir, name))
	}
	for _, c := range candidates {
		if st, err := fs.Stat(r.fsys, c); err == nil && !st.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
}

// Names lists the templates at the root of the file system, sorted.
func (r *TemplateRenderer) Names() ([]string, error) {
	entries, err := fs.ReadDir(r.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), Extension) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *TemplateRenderer) template(name string) (*template.Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.cache[name]; ok {
		return t, nil
	}
	p, err := r.Locate(name)
	if err != nil {
		return nil, err
	}
	src, err := fs.ReadFile(r.fsys, p)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", p, err)
	}
	t, err := template.New(name).Funcs(r.funcs).Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", p, err)
	}
	r.cache[name] = t
	return t, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
