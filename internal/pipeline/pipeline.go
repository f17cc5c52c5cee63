// Package pipeline runs one generation pass over a set of OpenAPI documents:
// each document is loaded and its schemas resolved in isolation, then
// entities are inferred across all of them and paired with mapping hints.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mark3labs/oasgen/internal/composite"
	"github.com/mark3labs/oasgen/internal/entity"
	"github.com/mark3labs/oasgen/internal/mapping"
	"github.com/mark3labs/oasgen/internal/schema"
	"github.com/mark3labs/oasgen/internal/spec"
	"github.com/mark3labs/oasgen/internal/sqlmeta"
)

// Generator is stamped into provenance as generatedBy.
const Generator = "oasgen"

// KindCompositeOverride marks a composite request schema that replaced a
// component schema of the same name.
const KindCompositeOverride = "composite-override"

// Input names one document. An empty Service is derived from the path.
type Input struct {
	Service string
	Path    string
}

type Options struct {
	Inputs []Input
	// Rules is the complex-operation rule table; nil disables rule matching.
	Rules           []entity.ComplexRule
	DuplicatePolicy entity.DuplicatePolicy
	// ExcludedFields replaces mapping.DefaultExcludedFields when non-nil.
	ExcludedFields   []string
	StrictValidation bool
	User             string
	GeneratorVersion string
	// RunID defaults to a random UUID.
	RunID string
	Now   func() time.Time
	// LoadOptions are passed to spec.Load after the pipeline's own.
	LoadOptions []spec.Option
	Logger      *slog.Logger
}

// Service is the per-document outcome of a run.
type Service struct {
	Name     string
	Location string
	Document *spec.Document
	// Schemas are the resolved, normalized component schemas followed by the
	// composite request schemas, all stamped with provenance.
	Schemas    []schema.Named
	Composites []composite.Composite
	Tables     []sqlmeta.Table
	// Entities lists the names of inferred entities owned by this service.
	Entities []string
}

// Failure records a document that could not be processed.
type Failure struct {
	Service  string         `json:"service" yaml:"service"`
	Location string         `json:"location" yaml:"location"`
	Code     spec.ErrorCode `json:"code,omitempty" yaml:"code,omitempty"`
	Message  string         `json:"message" yaml:"message"`
	Err      error          `json:"-" yaml:"-"`
}

// Skipped records a schema left out of the output.
type Skipped struct {
	Service string `json:"service" yaml:"service"`
	Schema  string `json:"schema" yaml:"schema"`
	Reason  string `json:"reason" yaml:"reason"`
}

type Result struct {
	RunID            string
	GeneratedAt      time.Time
	User             string
	GeneratorVersion string
	Services         []Service
	Entities         []EntityContext
	Failed           []Failure
	Skipped          []Skipped
	Diagnostics      []entity.Diagnostic
}

// Service returns the named service.
func (r *Result) Service(name string) (*Service, bool) {
	for i := range r.Services {
		if r.Services[i].Name == name {
			return &r.Services[i], true
		}
	}
	return nil, false
}

// Run processes every input. A document that cannot be read at all aborts
// the run, as does a duplicate operationId under the reject policy. Any other
// document or schema failure is recorded in the result and the run continues.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if len(opts.Inputs) == 0 {
		return nil, errors.New("pipeline: no input documents")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	res := &Result{
		RunID:            runID,
		GeneratedAt:      now().UTC(),
		User:             opts.User,
		GeneratorVersion: opts.GeneratorVersion,
	}
	stamp := schema.Provenance{
		GeneratedBy:      Generator,
		GeneratedAt:      res.GeneratedAt.Format(time.RFC3339),
		GeneratedByUser:  opts.User,
		GeneratorVersion: opts.GeneratorVersion,
		RunID:            runID,
	}

	for _, in := range opts.Inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loadOpts := []spec.Option{
			spec.WithService(in.Service),
			spec.WithStrictValidation(opts.StrictValidation),
			spec.WithLogger(logger),
		}
		doc, err := spec.Load(ctx, in.Path, append(loadOpts, opts.LoadOptions...)...)
		if err != nil {
			code := spec.CodeOf(err)
			if code == spec.InputError {
				return nil, err
			}
			name := in.Service
			if name == "" {
				name = spec.ServiceNameFromPath(in.Path)
			}
			logger.Warn("document skipped", "service", name, "location", in.Path, "code", code, "error", err)
			res.Failed = append(res.Failed, Failure{Service: name, Location: in.Path, Code: code, Message: err.Error(), Err: err})
			continue
		}
		svc, skipped, diags := buildService(doc, stamp, now, logger.With("service", doc.Service))
		res.Services = append(res.Services, svc)
		res.Skipped = append(res.Skipped, skipped...)
		res.Diagnostics = append(res.Diagnostics, diags...)
	}

	if err := inferEntities(res, opts, logger); err != nil {
		return nil, err
	}
	return res, nil
}

func buildService(doc *spec.Document, stamp schema.Provenance, now func() time.Time, logger *slog.Logger) (Service, []Skipped, []entity.Diagnostic) {
	svc := Service{Name: doc.Service, Location: doc.Location, Document: doc}
	set := doc.SchemaSet()
	stamp = composite.StampFor(stamp, doc.Location)
	normalizer := schema.NewNormalizer()
	resolver := schema.NewResolver(set,
		schema.WithPolicy(schema.Strict),
		schema.WithNormalizer(normalizer),
		schema.WithLogger(logger),
	)

	var (
		skipped []Skipped
		diags   []entity.Diagnostic
	)
	for _, bad := range doc.Skipped {
		logger.Warn("schema skipped", "schema", bad.Name, "error", bad.Err)
		skipped = append(skipped, Skipped{Service: doc.Service, Schema: bad.Name, Reason: bad.Err.Error()})
	}
	for _, n := range doc.Schemas {
		out, err := resolver.Resolve(n.Schema)
		if err != nil {
			logger.Warn("schema skipped", "schema", n.Name, "error", err)
			skipped = append(skipped, Skipped{Service: doc.Service, Schema: n.Name, Reason: err.Error()})
			continue
		}
		p := stamp
		p.SchemaName = n.Name
		p.OriginalFile = doc.Location
		svc.Schemas = append(svc.Schemas, schema.Named{
			Name:   n.Name,
			Schema: schema.WithProvenance(normalizer.Normalize(out, n.Name), p),
		})
	}

	builder := composite.NewBuilder(set,
		composite.WithPolicy(schema.Strict),
		composite.WithNormalizer(normalizer),
		composite.WithProvenance(stamp),
		composite.WithClock(now),
		composite.WithLogger(logger),
	)
	composites, failures := builder.BuildAll(doc.Operations)
	for _, f := range failures {
		skipped = append(skipped, Skipped{Service: doc.Service, Schema: f.OperationID + "Request", Reason: f.Err.Error()})
	}
	svc.Composites = composites
	for _, c := range composites {
		named := schema.Named{Name: c.Name, Schema: c.Schema}
		if i := indexOf(svc.Schemas, c.Name); i >= 0 {
			svc.Schemas[i] = named
			diags = append(diags, entity.Diagnostic{
				Severity:    entity.SeverityWarning,
				Kind:        KindCompositeOverride,
				OperationID: c.OperationID,
				Message:     fmt.Sprintf("composite request schema %s replaces the component schema of the same name in service %q", c.Name, doc.Service),
			})
			continue
		}
		svc.Schemas = append(svc.Schemas, named)
	}

	svc.Tables = sqlmeta.ExtractTables(doc.Schemas)
	return svc, skipped, diags
}

func inferEntities(res *Result, opts Options, logger *slog.Logger) error {
	var (
		ops   []spec.Operation
		names []string
	)
	sets := map[string]map[string]schema.Schema{}
	for _, svc := range res.Services {
		ops = append(ops, svc.Document.Operations...)
		for _, n := range svc.Document.Schemas {
			names = append(names, n.Name)
		}
		for _, op := range svc.Document.Operations {
			names = append(names, op.ID)
		}
		set, ok := sets[svc.Name]
		if !ok {
			set = map[string]schema.Schema{}
			sets[svc.Name] = set
		}
		for _, n := range svc.Document.Schemas {
			if _, dup := set[n.Name]; !dup {
				set[n.Name] = n.Schema
			}
		}
	}

	engine := entity.NewEngine(opts.Rules,
		entity.WithDuplicatePolicy(opts.DuplicatePolicy),
		entity.WithLogger(logger),
	)
	inference, err := engine.Infer(ops, engine.Universe(names))
	if err != nil {
		return err
	}
	res.Diagnostics = append(res.Diagnostics, inference.Diagnostics...)

	var analyzerOpts []mapping.Option
	if opts.ExcludedFields != nil {
		analyzerOpts = append(analyzerOpts, mapping.WithExcludedFields(opts.ExcludedFields...))
	}
	analyzers := map[string]*mapping.Analyzer{}
	for _, ent := range inference.Entities {
		a, ok := analyzers[ent.Service]
		if !ok {
			a = mapping.NewAnalyzer(sets[ent.Service], analyzerOpts...)
			analyzers[ent.Service] = a
		}
		res.Entities = append(res.Entities, NewEntityContext(ent, a.Analyze(ent.Name)))
		for i := range res.Services {
			if res.Services[i].Name == ent.Service {
				res.Services[i].Entities = append(res.Services[i].Entities, ent.Name)
				break
			}
		}
	}
	logger.Debug("entities inferred", "count", len(res.Entities))
	return nil
}

func indexOf(named []schema.Named, name string) int {
	for i, n := range named {
		if n.Name == name {
			return i
		}
	}
	return -1
}
