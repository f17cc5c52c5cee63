package schema

import "strings"

// Draft202012 is the dialect stamped onto normalized schemas by default.
const Draft202012 = "https://json-schema.org/draft/2020-12/schema"

// DefaultStrippedKeywords are OpenAPI-only keywords with no JSON Schema meaning.
var DefaultStrippedKeywords = []string{"discriminator", "xml", "externalDocs", "example"}

// Normalizer converts OpenAPI-flavoured schemas into canonical JSON Schema.
// It is safe for concurrent use.
type Normalizer struct {
	dialect string
	strip   map[string]struct{}
}

// NormalizeOption configures a Normalizer.
type NormalizeOption func(*Normalizer)

// WithDialect overrides the "$schema" identifier stamped on top-level results.
func WithDialect(dialect string) NormalizeOption {
	return func(n *Normalizer) { n.dialect = strings.TrimSpace(dialect) }
}

// WithStrippedKeywords replaces the set of keywords removed during normalization.
func WithStrippedKeywords(names ...string) NormalizeOption {
	return func(n *Normalizer) {
		n.strip = make(map[string]struct{}, len(names))
		for _, name := range names {
			n.strip[name] = struct{}{}
		}
	}
}

func NewNormalizer(opts ...NormalizeOption) *Normalizer {
	n := &Normalizer{dialect: Draft202012}
	WithStrippedKeywords(DefaultStrippedKeywords...)(n)
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns the canonical form of s. The input is not modified.
// A non-empty titleHint becomes the title of the result.
func (n *Normalizer) Normalize(s Schema, titleHint string) Schema {
	out := Clone(s)
	n.apply(out, titleHint, true)
	return out
}

// normalizeNested is Normalize without the dialect stamp, for schemas spliced
// into another document.
func (n *Normalizer) normalizeNested(s Schema, titleHint string) Schema {
	out := Clone(s)
	n.apply(out, titleHint, false)
	return out
}

// apply rewrites s in place; callers hand it a private copy.
func (n *Normalizer) apply(s Schema, hint string, top bool) {
	if r, ok := s.(*Ref); ok {
		if hint != "" {
			r.Title = hint
		}
		return
	}
	if sc, ok := s.(*Scalar); ok && sc.Boolean != nil {
		return
	}
	m := MetaOf(s)
	if m == nil {
		return
	}
	if top && n.dialect != "" {
		m.Dialect = n.dialect
	}
	if hint != "" {
		m.Title = hint
	}
	if len(m.Keywords) > 0 && len(n.strip) > 0 {
		kept := m.Keywords[:0]
		for _, k := range m.Keywords {
			if _, drop := n.strip[k.Name]; !drop {
				kept = append(kept, k)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		m.Keywords = kept
	}
	if m.Nullable != nil {
		if *m.Nullable && len(m.Types) > 0 && !m.HasType("null") {
			m.Types = append(m.Types, "null")
		}
		m.Nullable = nil
	}

	switch v := s.(type) {
	case *Object:
		for i := range v.Properties {
			v.Properties[i].Schema = n.child(v.Properties[i].Schema, propertyTitle(v.Properties[i].Name))
		}
		if v.Additional != nil && v.Additional.Schema != nil {
			v.Additional.Schema = n.child(v.Additional.Schema, "additional")
		}
	case *Array:
		if v.Items != nil {
			v.Items = n.child(v.Items, "item")
		}
	case *Union:
		for i := range v.Members {
			v.Members[i] = n.child(v.Members[i], "")
		}
	}
}

func (n *Normalizer) child(s Schema, hint string) Schema {
	if s == nil {
		return nil
	}
	n.apply(s, hint, false)
	return s
}

func propertyTitle(name string) string {
	if strings.HasSuffix(name, "Id") {
		return "id"
	}
	return name
}
