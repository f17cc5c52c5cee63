// Package schemaemitter writes the JSON Schema artifact set: one file per
// schema and service, a combined all_schemas.json and a generation report.
package schemaemitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mark3labs/oasgen/internal/emitter"
	"github.com/mark3labs/oasgen/internal/entity"
	"github.com/mark3labs/oasgen/internal/pipeline"
	"github.com/mark3labs/oasgen/internal/schema"
)

// Dir is the artifact root relative to the output directory.
const Dir = "schemas"

// Options controls the JSON Schema emitter.
type Options struct {
	OutDir  string
	Force   bool
	DryRun  bool
	Verbose bool
	// Validate compiles every schema as draft 2020-12 and skips the ones that
	// fail instead of writing them.
	Validate bool
}

type Result struct {
	emitter.Result
	Report *Report
}

// Report is written to schemas/generation_report.json.
type Report struct {
	GeneratedAt      string              `json:"generatedAt"`
	Generator        string              `json:"generator"`
	GeneratorVersion string              `json:"generatorVersion,omitempty"`
	User             string              `json:"user,omitempty"`
	RunID            string              `json:"runId"`
	Services         []ServiceReport     `json:"services"`
	TotalSchemas     int                 `json:"totalSchemas"`
	Skipped          []pipeline.Skipped  `json:"skipped"`
	Failed           []pipeline.Failure  `json:"failed"`
	Diagnostics      []entity.Diagnostic `json:"diagnostics"`
}

type ServiceReport struct {
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	SchemaCount int      `json:"schemaCount"`
	Schemas     []string `json:"schemas"`
	Composites  []string `json:"composites"`
	Entities    []string `json:"entities"`
}

// Emit renders the artifact set for every service in res.
func Emit(ctx context.Context, res *pipeline.Result, opts Options) (*Result, error) {
	if res == nil {
		return nil, fmt.Errorf("schemaemitter: nil result")
	}
	report := &Report{
		GeneratedAt:      res.GeneratedAt.Format(time.RFC3339),
		Generator:        pipeline.Generator,
		GeneratorVersion: res.GeneratorVersion,
		User:             res.User,
		RunID:            res.RunID,
		Services:         []ServiceReport{},
		Skipped:          append([]pipeline.Skipped{}, res.Skipped...),
		Failed:           append([]pipeline.Failure{}, res.Failed...),
		Diagnostics:      append([]entity.Diagnostic{}, res.Diagnostics...),
	}

	files := emitter.Files{}
	var combined []keyed
	for _, svc := range res.Services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sr := ServiceReport{
			Name:       svc.Name,
			Location:   svc.Location,
			Schemas:    []string{},
			Composites: []string{},
			Entities:   append([]string{}, svc.Entities...),
		}
		for _, c := range svc.Composites {
			sr.Composites = append(sr.Composites, c.Name)
		}
		for _, n := range svc.Schemas {
			data, err := schema.MarshalIndent(n.Schema, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("schemaemitter: encode %s/%s: %w", svc.Name, n.Name, err)
			}
			if opts.Validate {
				if _, err := Compile(svc.Name+"/"+n.Name, data); err != nil {
					report.Skipped = append(report.Skipped, pipeline.Skipped{
						Service: svc.Name,
						Schema:  n.Name,
						Reason:  fmt.Sprintf("invalid JSON Schema: %v", err),
					})
					continue
				}
			}
			files[path.Join(Dir, svc.Name, n.Name+".json")] = append(data, '\n')
			sr.Schemas = append(sr.Schemas, n.Name)
			combined = append(combined, keyed{key: svc.Name + "_" + n.Name, schema: n.Schema})
		}
		sr.SchemaCount = len(sr.Schemas)
		report.TotalSchemas += sr.SchemaCount
		report.Services = append(report.Services, sr)
	}

	all, err := encodeCombined(combined)
	if err != nil {
		return nil, fmt.Errorf("schemaemitter: encode all_schemas.json: %w", err)
	}
	files[path.Join(Dir, "all_schemas.json")] = all

	rep, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("schemaemitter: encode report: %w", err)
	}
	files[path.Join(Dir, "generation_report.json")] = append(rep, '\n')

	out, err := emitter.Emit("schemaemitter", files, emitter.Options{
		OutDir:  opts.OutDir,
		Force:   opts.Force,
		DryRun:  opts.DryRun,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Result: *out, Report: report}, nil
}

// Compile compiles an encoded schema as draft 2020-12. name only has to be
// unique enough to form the resource URL.
func Compile(name string, data []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := "https://oasgen.invalid/schemas/" + name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

type keyed struct {
	key    string
	schema schema.Schema
}

// encodeCombined writes one JSON object whose members keep the given order.
func encodeCombined(entries []keyed) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.WriteString("\n  ")
		buf.Write(key)
		buf.WriteString(": ")
		data, err := schema.MarshalIndent(e.schema, "  ", "  ")
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	if len(entries) > 0 {
		buf.WriteByte('\n')
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}
