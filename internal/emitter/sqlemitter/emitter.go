// Package sqlemitter writes the relational table metadata of each service as
// tables/<service>.yaml.
package sqlemitter

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasgen/internal/emitter"
	"github.com/mark3labs/oasgen/internal/pipeline"
	"github.com/mark3labs/oasgen/internal/sqlmeta"
)

const Dir = "tables"

type Options struct {
	OutDir  string
	Force   bool
	DryRun  bool
	Verbose bool
}

type Result struct {
	emitter.Result
}

// File is the document stored per service.
type File struct {
	Service     string          `yaml:"service"`
	Source      string          `yaml:"source,omitempty"`
	GeneratedAt string          `yaml:"generatedAt"`
	Tables      []sqlmeta.Table `yaml:"tables"`
}

// Emit writes one file per service that has at least one table.
func Emit(ctx context.Context, res *pipeline.Result, opts Options) (*Result, error) {
	if res == nil {
		return nil, fmt.Errorf("sqlemitter: nil result")
	}
	files := emitter.Files{}
	for _, svc := range res.Services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(svc.Tables) == 0 {
			continue
		}
		data, err := encode(File{
			Service:     svc.Name,
			Source:      svc.Location,
			GeneratedAt: res.GeneratedAt.UTC().Format(time.RFC3339),
			Tables:      svc.Tables,
		})
		if err != nil {
			return nil, fmt.Errorf("sqlemitter: encode %s: %w", svc.Name, err)
		}
		files[path.Join(Dir, svc.Name+".yaml")] = data
	}

	out, err := emitter.Emit("sqlemitter", files, emitter.Options{
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

func encode(v any) ([]byte, error) {
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
