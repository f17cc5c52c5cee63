package schema

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// UnresolvedReferenceError reports a $ref whose target is missing from the schema set.
type UnresolvedReferenceError struct {
	Pointer string
	Name    string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("unresolved reference %s: schema %q not found", e.Pointer, e.Name)
}

// CyclicReferenceError reports a reference chain that leads back to itself.
type CyclicReferenceError struct {
	Chain []string
}

func (e *CyclicReferenceError) Error() string {
	return "cyclic reference: " + strings.Join(e.Chain, " -> ")
}

// Policy decides what happens to a reference whose target is missing.
type Policy int

const (
	// Lenient leaves the reference in place and logs a warning.
	Lenient Policy = iota
	// Strict fails with *UnresolvedReferenceError.
	Strict
	// Skip abandons the whole schema: Resolve returns a nil schema and no error.
	Skip
)

func (p Policy) String() string {
	switch p {
	case Strict:
		return "strict"
	case Skip:
		return "skip"
	default:
		return "lenient"
	}
}

var errSkipped = errors.New("schema skipped")

// Resolver expands #/components/schemas/{Name} references against a fixed schema set.
// It never mutates the set or its inputs.
type Resolver struct {
	schemas    map[string]Schema
	policy     Policy
	normalizer *Normalizer
	logger     *slog.Logger
}

// ResolveOption configures a Resolver.
type ResolveOption func(*Resolver)

func WithPolicy(p Policy) ResolveOption {
	return func(r *Resolver) { r.policy = p }
}

// WithNormalizer normalizes every expanded target, titled after the reference
// (or the target name when the reference has no title).
func WithNormalizer(n *Normalizer) ResolveOption {
	return func(r *Resolver) { r.normalizer = n }
}

func WithLogger(l *slog.Logger) ResolveOption {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewResolver(schemas map[string]Schema, opts ...ResolveOption) *Resolver {
	r := &Resolver{
		schemas: schemas,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a copy of s with every component reference replaced by a copy
// of its target. Targets are walked too, so chains are flattened; a chain that
// revisits a name on the current path fails with *CyclicReferenceError. Under
// the Skip policy a missing target yields (nil, nil).
func (r *Resolver) Resolve(s Schema) (Schema, error) {
	out, err := r.walk(s, nil, true)
	if errors.Is(err, errSkipped) {
		return nil, nil
	}
	return out, err
}

// walk copies s, expanding references. root is true only for the schema handed
// to Resolve, or the expansion of a reference that was itself the root.
func (r *Resolver) walk(s Schema, stack []string, root bool) (Schema, error) {
	switch v := s.(type) {
	case nil:
		return nil, nil
	case *Ref:
		return r.expand(v, stack, root)
	case *Object:
		out := &Object{Meta: cloneMeta(v.Meta), Additional: cloneAdditional(v.Additional)}
		if v.Required != nil {
			out.Required = append([]string(nil), v.Required...)
		}
		if v.Properties != nil {
			out.Properties = make([]Property, len(v.Properties))
		}
		for i, p := range v.Properties {
			child, err := r.walk(p.Schema, stack, false)
			if err != nil {
				return nil, err
			}
			out.Properties[i] = Property{Name: p.Name, Schema: child}
		}
		if v.Additional != nil && v.Additional.Schema != nil {
			child, err := r.walk(v.Additional.Schema, stack, false)
			if err != nil {
				return nil, err
			}
			out.Additional.Schema = child
		}
		return out, nil
	case *Array:
		items, err := r.walk(v.Items, stack, false)
		if err != nil {
			return nil, err
		}
		return &Array{Meta: cloneMeta(v.Meta), Items: items}, nil
	case *Union:
		out := &Union{Meta: cloneMeta(v.Meta), Keyword: v.Keyword, Members: make([]Schema, len(v.Members))}
		for i, m := range v.Members {
			child, err := r.walk(m, stack, false)
			if err != nil {
				return nil, err
			}
			out.Members[i] = child
		}
		return out, nil
	default:
		return Clone(s), nil
	}
}

func (r *Resolver) expand(ref *Ref, stack []string, root bool) (Schema, error) {
	name := RefName(ref.Pointer)
	if name == "" {
		return Clone(ref), nil
	}
	for _, seen := range stack {
		if seen == name {
			chain := append(append([]string(nil), stack...), name)
			return nil, &CyclicReferenceError{Chain: chain}
		}
	}
	target, ok := r.schemas[name]
	if !ok {
		switch r.policy {
		case Strict:
			return nil, &UnresolvedReferenceError{Pointer: ref.Pointer, Name: name}
		case Skip:
			r.logger.Debug("skipping schema with unresolved reference", "ref", ref.Pointer)
			return nil, errSkipped
		default:
			r.logger.Warn("referenced schema not found", "ref", ref.Pointer)
			return Clone(ref), nil
		}
	}

	title := ref.Title
	if title == "" && r.normalizer != nil {
		title = name
	}
	copied := Clone(target)
	if m := MetaOf(copied); m != nil {
		m.Provenance = nil
		if !root || r.normalizer == nil {
			m.Dialect = ""
		}
	}
	switch {
	case r.normalizer != nil && root:
		copied = r.normalizer.Normalize(copied, title)
	case r.normalizer != nil:
		copied = r.normalizer.normalizeNested(copied, title)
	case title != "":
		if m := MetaOf(copied); m != nil {
			m.Title = title
		} else if tr, ok := copied.(*Ref); ok {
			tr.Title = title
		}
	}
	return r.walk(copied, append(stack, name), root)
}
