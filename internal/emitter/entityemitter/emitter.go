// Package entityemitter writes what was inferred about each entity: its
// context as YAML, the rendered entity templates and a Backstage catalog
// descriptor per service.
package entityemitter

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasgen/internal/emitter"
	"github.com/mark3labs/oasgen/internal/pipeline"
	"github.com/mark3labs/oasgen/internal/render"
)

const (
	Dir        = "entities"
	CatalogDir = "catalog"

	defaultLifecycle = "experimental"
	defaultOwner     = "unknown"
)

type Options struct {
	OutDir  string
	Force   bool
	DryRun  bool
	Verbose bool
	// Renderer renders every root template once per entity; nil means the
	// embedded templates.
	Renderer  *render.TemplateRenderer
	Lifecycle string
	Owner     string
}

type Result struct {
	emitter.Result
}

// Emit plans entities/<Entity>/context.yaml, one entities/<Entity>/<name>
// per template and catalog/<service>/catalog-info.yaml for every service.
func Emit(ctx context.Context, res *pipeline.Result, opts Options) (*Result, error) {
	if res == nil {
		return nil, fmt.Errorf("entityemitter: nil result")
	}
	r := opts.Renderer
	if r == nil {
		r = render.Builtin()
	}
	names, err := r.Names()
	if err != nil {
		return nil, fmt.Errorf("entityemitter: %w", err)
	}

	files := emitter.Files{}
	for _, ec := range res.Entities {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		base := path.Join(Dir, ec.EntityName)
		data, err := encodeYAML(ec)
		if err != nil {
			return nil, fmt.Errorf("entityemitter: encode %s: %w", ec.EntityName, err)
		}
		files[path.Join(base, "context.yaml")] = data

		values := ec.Values()
		for _, name := range names {
			out, err := r.Render(name, values)
			if err != nil {
				return nil, fmt.Errorf("entityemitter: %s: %w", ec.EntityName, err)
			}
			files[path.Join(base, strings.TrimSuffix(name, render.Extension))] = []byte(out)
		}
	}

	owner := opts.Owner
	if owner == "" {
		owner = res.User
	}
	for _, svc := range res.Services {
		data, err := encodeYAML(Catalog(svc, owner, opts.Lifecycle))
		if err != nil {
			return nil, fmt.Errorf("entityemitter: encode catalog %s: %w", svc.Name, err)
		}
		files[path.Join(CatalogDir, svc.Name, "catalog-info.yaml")] = data
	}

	out, err := emitter.Emit("entityemitter", files, emitter.Options{
		OutDir:  opts.OutDir,
		Force:   opts.Force,
		DryRun:  opts.DryRun,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Result: *out}, nil
}

// CatalogEntity is a Backstage API entity descriptor.
type CatalogEntity struct {
	APIVersion string      `yaml:"apiVersion"`
	Kind       string      `yaml:"kind"`
	Metadata   CatalogMeta `yaml:"metadata"`
	Spec       CatalogSpec `yaml:"spec"`
}

type CatalogMeta struct {
	Name        string   `yaml:"name"`
	Title       string   `yaml:"title,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

type CatalogSpec struct {
	Type       string            `yaml:"type"`
	Lifecycle  string            `yaml:"lifecycle"`
	Owner      string            `yaml:"owner"`
	Definition map[string]string `yaml:"definition"`
}

// Catalog describes one service as an API whose definition is the source
// document. Entity names become lower-cased tags.
func Catalog(svc pipeline.Service, owner, lifecycle string) CatalogEntity {
	if owner == "" {
		owner = defaultOwner
	}
	if lifecycle == "" {
		lifecycle = defaultLifecycle
	}
	meta := CatalogMeta{Name: svc.Name + "-api"}
	if svc.Document != nil {
		meta.Title = svc.Document.Title
		if svc.Document.Version != "" {
			meta.Description = fmt.Sprintf("%s %s", svc.Document.Title, svc.Document.Version)
		}
	}
	seen := map[string]bool{}
	for _, e := range svc.Entities {
		tag := strings.ToLower(e)
		if !seen[tag] {
			seen[tag] = true
			meta.Tags = append(meta.Tags, tag)
		}
	}
	sort.Strings(meta.Tags)

	def := svc.Location
	if def != "" && !strings.Contains(def, "://") {
		def = filepath.ToSlash(def)
	}
	return CatalogEntity{
		APIVersion: "backstage.io/v1alpha1",
		Kind:       "API",
		Metadata:   meta,
		Spec: CatalogSpec{
			Type:       "openapi",
			Lifecycle:  lifecycle,
			Owner:      owner,
			Definition: map[string]string{"$text": def},
		},
	}
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
