// Package mapping compares an entity's domain schema with its create and
// update request schemas to find fields that need manual mapping and
// foreign-key style relations.
package mapping

import (
	"sort"
	"strings"

	"github.com/mark3labs/oasgen/internal/schema"
)

// DefaultExcludedFields are never reported as unmapped. The entity's own
// "{entity}Id" key is always excluded as well.
var DefaultExcludedFields = []string{"status", "createdAt", "updatedAt"}

// Relation maps a request field such as "regionId" onto the domain property
// it identifies ("region").
type Relation struct {
	SourceField string `json:"sourceField" yaml:"sourceField"`
	TargetField string `json:"targetField" yaml:"targetField"`
}

// Hint is the mapping metadata for one entity.
type Hint struct {
	Entity               string
	UnmappedCreateFields []string
	UnmappedUpdateFields []string
	HasUnmappedFields    bool
	Relations            []Relation
}

type Analyzer struct {
	schemas  map[string]schema.Schema
	resolver *schema.Resolver
	exclude  []string
}

type Option func(*Analyzer)

// WithExcludedFields replaces DefaultExcludedFields.
func WithExcludedFields(names ...string) Option {
	return func(a *Analyzer) { a.exclude = append([]string(nil), names...) }
}

func NewAnalyzer(schemas map[string]schema.Schema, opts ...Option) *Analyzer {
	a := &Analyzer{
		schemas:  schemas,
		resolver: schema.NewResolver(schemas),
		exclude:  DefaultExcludedFields,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CreateSchemaName and UpdateSchemaName name the request bodies compared
// against the domain schema.
func CreateSchemaName(entity string) string { return "Create" + entity + "RequestContent" }
func UpdateSchemaName(entity string) string { return "Update" + entity + "RequestContent" }

// Analyze computes unmapped create/update fields (sorted) and relations.
// Missing schemas count as having no properties.
func (a *Analyzer) Analyze(entity string) Hint {
	domain := a.fields(entity)
	create := a.fields(CreateSchemaName(entity))
	update := a.fields(UpdateSchemaName(entity))

	skip := map[string]bool{strings.ToLower(entity) + "Id": true}
	for _, f := range a.exclude {
		skip[f] = true
	}

	h := Hint{
		Entity:               entity,
		UnmappedCreateFields: unmapped(domain, create, skip),
		UnmappedUpdateFields: unmapped(domain, update, skip),
		Relations:            a.relations(entity, domain, create, update),
	}
	h.HasUnmappedFields = len(h.UnmappedCreateFields) > 0 || len(h.UnmappedUpdateFields) > 0
	return h
}

// Relations returns the relation mappings for entity: request properties
// ending in "Id" (other than the entity's own key) whose stripped name is a
// domain property. Create fields come first; duplicates are dropped.
func (a *Analyzer) Relations(entity string) []Relation {
	return a.relations(entity, a.fields(entity), a.fields(CreateSchemaName(entity)), a.fields(UpdateSchemaName(entity)))
}

func (a *Analyzer) relations(entity string, domain, create, update []string) []Relation {
	inDomain := make(map[string]bool, len(domain))
	for _, f := range domain {
		inDomain[f] = true
	}
	own := strings.ToLower(entity) + "Id"
	seen := map[string]bool{}
	var out []Relation
	for _, list := range [][]string{create, update} {
		for _, f := range list {
			if f == own || !strings.HasSuffix(f, "Id") || seen[f] {
				continue
			}
			target := strings.TrimSuffix(f, "Id")
			if target == "" || !inDomain[target] {
				continue
			}
			seen[f] = true
			out = append(out, Relation{SourceField: f, TargetField: target})
		}
	}
	return out
}

func unmapped(domain, request []string, skip map[string]bool) []string {
	have := make(map[string]bool, len(request))
	for _, f := range request {
		have[f] = true
	}
	out := []string{}
	for _, f := range domain {
		if !have[f] && !skip[f] {
			out = append(out, f)
		}
	}
	sort.Strings(out)
	return out
}

// fields returns the property names of the named schema after following
// references. allOf members contribute their properties in order.
func (a *Analyzer) fields(name string) []string {
	s, ok := a.schemas[name]
	if !ok {
		return nil
	}
	resolved, err := a.resolver.Resolve(s)
	if err != nil || resolved == nil {
		resolved = s
	}
	return propertyNames(resolved)
}

func propertyNames(s schema.Schema) []string {
	switch v := s.(type) {
	case *schema.Object:
		return schema.PropertyNames(v)
	case *schema.Union:
		if v.Keyword != "allOf" {
			return nil
		}
		seen := map[string]bool{}
		var out []string
		for _, m := range v.Members {
			for _, n := range propertyNames(m) {
				if !seen[n] {
					seen[n] = true
					out = append(out, n)
				}
			}
		}
		return out
	}
	return nil
}
