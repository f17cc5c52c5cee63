// Package fakeemitter writes example request payloads for the composite
// request schemas of each service.
package fakeemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/mark3labs/oasgen/internal/emitter"
	"github.com/mark3labs/oasgen/internal/emitter/schemaemitter"
	"github.com/mark3labs/oasgen/internal/pipeline"
	"github.com/mark3labs/oasgen/internal/schema"
)

// Options controls the fake data emitter.
type Options struct {
	OutDir  string
	Force   bool
	DryRun  bool
	Verbose bool
	// Seed makes payloads reproducible; runs with the same seed and result
	// produce the same files. Zero picks a random seed.
	Seed   uint64
	Logger *slog.Logger
}

type Result struct {
	emitter.Result
	Skipped []pipeline.Skipped
}

// Emit generates one payload per composite request schema, stored as
// schemas/<service>/fake-data/<Name>.json. Schemas that still hold a
// reference after resolution are skipped, as are payloads that fail to
// validate against their own schema.
func Emit(ctx context.Context, res *pipeline.Result, opts Options) (*Result, error) {
	if res == nil {
		return nil, fmt.Errorf("fakeemitter: nil result")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	gen := newGenerator(opts.Seed, res.GeneratedAt)
	out := &Result{}
	files := emitter.Files{}

	for _, svc := range res.Services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var set map[string]schema.Schema
		if svc.Document != nil {
			set = svc.Document.SchemaSet()
		}
		resolver := schema.NewResolver(set, schema.WithPolicy(schema.Skip))
		for _, n := range svc.Schemas {
			if !IsRequestSchema(n.Name) {
				continue
			}
			skip := func(reason string) {
				logger.Debug("fake data skipped", "service", svc.Name, "schema", n.Name, "reason", reason)
				out.Skipped = append(out.Skipped, pipeline.Skipped{Service: svc.Name, Schema: n.Name, Reason: reason})
			}
			resolved, err := resolver.Resolve(n.Schema)
			if err != nil {
				skip(err.Error())
				continue
			}
			if resolved == nil {
				skip("unresolved reference")
				continue
			}
			payload, err := gen.value(resolved, "", 0)
			if err != nil {
				skip(err.Error())
				continue
			}
			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("fakeemitter: encode %s/%s: %w", svc.Name, n.Name, err)
			}
			if err := validate(svc.Name, n.Name, resolved, data); err != nil {
				skip(err.Error())
				continue
			}
			files[path.Join(schemaemitter.Dir, svc.Name, "fake-data", n.Name+".json")] = append(data, '\n')
		}
	}

	planned, err := emitter.Emit("fakeemitter", files, emitter.Options{
		OutDir:  opts.OutDir,
		Force:   opts.Force,
		DryRun:  opts.DryRun,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}
	out.Result = *planned
	return out, nil
}

// IsRequestSchema matches composite request schema names: "...Request" but
// not "...RequestContent" or any response.
func IsRequestSchema(name string) bool {
	return strings.HasSuffix(name, "Request") && !strings.Contains(name, "Response")
}

func validate(service, name string, s schema.Schema, payload []byte) error {
	encoded, err := schema.Marshal(s)
	if err != nil {
		return err
	}
	compiled, err := schemaemitter.Compile(service+"/fake/"+name, encoded)
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return err
	}
	if err := compiled.Validate(doc); err != nil {
		return fmt.Errorf("generated payload does not validate: %w", err)
	}
	return nil
}
