// Package composite synthesizes request schemas for write operations by
// combining required path parameters with the JSON request body.
package composite

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/oasgen/internal/schema"
	"github.com/mark3labs/oasgen/internal/spec"
)

// ErrSkipped is returned by Build when the resolver's Skip policy abandoned
// the schema because a reference could not be resolved.
var ErrSkipped = errors.New("composite: schema skipped due to unresolved reference")

// BodyProperty names the wrapped request body in a composite schema.
const BodyProperty = "body"

// Composite is one synthesized request schema.
type Composite struct {
	// Name is "{operationId}Request".
	Name        string
	OperationID string
	Schema      schema.Schema
}

// Failure records an operation whose composite schema could not be built.
type Failure struct {
	OperationID string
	Err         error
}

type Builder struct {
	schemas    map[string]schema.Schema
	normalizer *schema.Normalizer
	policy     schema.Policy
	stamp      schema.Provenance
	now        func() time.Time
	logger     *slog.Logger
}

type Option func(*Builder)

// WithPolicy sets how unresolved body references are treated.
func WithPolicy(p schema.Policy) Option { return func(b *Builder) { b.policy = p } }

// WithNormalizer replaces the default normalizer.
func WithNormalizer(n *schema.Normalizer) Option {
	return func(b *Builder) {
		if n != nil {
			b.normalizer = n
		}
	}
}

// WithProvenance sets the run-wide provenance fields stamped onto every
// composite (generator, user, version, run id, source file).
func WithProvenance(p schema.Provenance) Option { return func(b *Builder) { b.stamp = p } }

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) Option { return func(b *Builder) { b.now = now } }

func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder returns a Builder that expands body references against schemas.
func NewBuilder(schemas map[string]schema.Schema, opts ...Option) *Builder {
	b := &Builder{
		schemas:    schemas,
		normalizer: schema.NewNormalizer(),
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Applies reports whether op is a write operation with a request body, the
// only kind eligible for a composite schema.
func Applies(op spec.Operation) bool {
	if op.Method != spec.POST && op.Method != spec.PUT {
		return false
	}
	if op.RequestBody == nil {
		return false
	}
	return strings.HasPrefix(op.ID, "Create") || strings.HasPrefix(op.ID, "Update")
}

// Build returns the composite request schema for op, or nil when op is not a
// Create/Update POST or PUT with a request body, or when nothing is left to
// compose.
//
// With required path parameters the result is an object holding one property
// per parameter plus "body"; without them it is the body schema itself. Only
// a JSON body given as a reference is composed; inline bodies are ignored.
// Body references are expanded and the result is normalized and stamped with
// provenance.
func (b *Builder) Build(op spec.Operation) (*Composite, error) {
	if !Applies(op) {
		return nil, nil
	}
	name := op.ID + "Request"

	raw := b.assemble(op, name)
	if raw == nil {
		return nil, nil
	}

	resolver := schema.NewResolver(b.schemas,
		schema.WithPolicy(b.policy),
		schema.WithNormalizer(b.normalizer),
		schema.WithLogger(b.logger.With("operation", op.ID)),
	)
	expanded, err := resolver.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if expanded == nil {
		return nil, ErrSkipped
	}

	out := b.normalizer.Normalize(expanded, name)
	p := b.stamp
	p.SchemaName = name
	p.OperationID = op.ID
	p.Composite = true
	p.OriginalFile = ""
	if p.GeneratedAt == "" {
		p.GeneratedAt = b.now().Format(time.RFC3339)
	}
	return &Composite{Name: name, OperationID: op.ID, Schema: schema.WithProvenance(out, p)}, nil
}

func (b *Builder) assemble(op spec.Operation, name string) schema.Schema {
	params := op.PathParameters()
	ref, _ := op.JSONBody().(*schema.Ref)

	if len(params) == 0 {
		if ref == nil {
			return nil
		}
		return &schema.Ref{Pointer: ref.Pointer, Title: name}
	}

	obj := &schema.Object{Meta: schema.Meta{Types: []string{"object"}}}
	for _, p := range params {
		ps := p.Schema
		if ps == nil {
			ps = &schema.Scalar{Meta: schema.Meta{Types: []string{"string"}}}
		}
		obj.Properties = append(obj.Properties, schema.Property{Name: p.Name, Schema: schema.Clone(ps)})
		obj.Required = append(obj.Required, p.Name)
	}
	if ref != nil {
		obj.Properties = append(obj.Properties, schema.Property{
			Name:   BodyProperty,
			Schema: &schema.Ref{Pointer: ref.Pointer, Title: BodyProperty},
		})
		obj.Required = append(obj.Required, BodyProperty)
	}
	return obj
}

// BuildAll builds composites for every eligible operation, in order. Per
// operation failures are collected rather than aborting the batch.
func (b *Builder) BuildAll(ops []spec.Operation) ([]Composite, []Failure) {
	var (
		out      []Composite
		failures []Failure
	)
	for _, op := range ops {
		c, err := b.Build(op)
		if err != nil {
			b.logger.Warn("composite request schema not built", "operation", op.ID, "error", err)
			failures = append(failures, Failure{OperationID: op.ID, Err: err})
			continue
		}
		if c == nil {
			continue
		}
		if _, clash := b.schemas[c.Name]; clash {
			b.logger.Warn("composite request schema replaces component schema", "schema", c.Name)
		}
		out = append(out, *c)
	}
	return out, failures
}

// StampFor returns the provenance fields shared by every schema generated from
// the document at location.
func StampFor(base schema.Provenance, location string) schema.Provenance {
	base.GeneratedFrom = filepath.Base(location)
	if base.SourceType == "" {
		base.SourceType = "openapi_specification"
	}
	return base
}
