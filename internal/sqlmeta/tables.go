// Package sqlmeta derives relational table metadata from response, status and
// enum schemas.
package sqlmeta

import (
	"html"
	"regexp"
	"strings"

	"github.com/mark3labs/oasgen/internal/schema"
)

// Table kinds.
const (
	KindTable = "table"
	KindEnum  = "enum"
)

type Table struct {
	Name        string   `json:"name" yaml:"name"`
	Kind        string   `json:"kind" yaml:"kind"`
	Source      string   `json:"source" yaml:"source"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Columns     []Column `json:"columns,omitempty" yaml:"columns,omitempty"`
	Values      []string `json:"values,omitempty" yaml:"values,omitempty"`
}

type Column struct {
	Name        string `json:"name" yaml:"name"`
	Property    string `json:"property" yaml:"property"`
	Type        string `json:"type" yaml:"type"`
	Nullable    bool   `json:"nullable" yaml:"nullable"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// References names the enum table a column draws its values from.
	References string `json:"references,omitempty" yaml:"references,omitempty"`
}

var (
	excludedPrefixes = []string{"Create", "Delete", "List", "Update", "Get"}
	excludedKeywords = []string{"Error", "Validation", "Conflict", "NotFound"}
)

// ExtractTables returns one table per string enum and per non-CRUD schema
// ending in "Response", "ResponseContent" or "Status", in input order.
func ExtractTables(schemas []schema.Named) []Table {
	set := make(map[string]schema.Schema, len(schemas))
	for _, n := range schemas {
		set[n.Name] = n.Schema
	}

	var out []Table
	for _, n := range schemas {
		if e, ok := n.Schema.(*schema.Enum); ok && e.HasType("string") {
			out = append(out, enumTable(n.Name, e))
			continue
		}
		if !tableCandidate(n.Name) {
			continue
		}
		t := Table{
			Name:        TableName(n.Name),
			Kind:        KindTable,
			Source:      n.Name,
			Description: description(schema.MetaOf(n.Schema)),
		}
		if obj, ok := n.Schema.(*schema.Object); ok {
			t.Columns = columns(obj, set)
		}
		out = append(out, t)
	}
	return out
}

func tableCandidate(name string) bool {
	if !strings.HasSuffix(name, "Response") && !strings.HasSuffix(name, "ResponseContent") && !strings.HasSuffix(name, "Status") {
		return false
	}
	for _, p := range excludedPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	for _, k := range excludedKeywords {
		if strings.Contains(name, k) {
			return false
		}
	}
	return true
}

func enumTable(name string, e *schema.Enum) Table {
	t := Table{
		Name:        EnumTableName(name),
		Kind:        KindEnum,
		Source:      name,
		Description: description(&e.Meta),
	}
	for _, v := range e.Values {
		if s, ok := v.(string); ok {
			t.Values = append(t.Values, s)
		}
	}
	return t
}

// EnumTableName is the lower-cased schema name with an "s" appended.
func EnumTableName(name string) string { return strings.ToLower(name) + "s" }

func columns(obj *schema.Object, set map[string]schema.Schema) []Column {
	required := make(map[string]bool, len(obj.Required))
	for _, r := range obj.Required {
		required[r] = true
	}
	cols := make([]Column, 0, len(obj.Properties))
	for _, p := range obj.Properties {
		c := Column{Name: SnakeCase(p.Name), Property: p.Name, Nullable: !required[p.Name]}
		target := p.Schema
		if ref, ok := target.(*schema.Ref); ok {
			name := schema.RefName(ref.Pointer)
			if resolved, ok := set[name]; ok {
				target = resolved
				if e, ok := resolved.(*schema.Enum); ok && e.HasType("string") {
					c.References = EnumTableName(name)
				}
			}
		}
		m := schema.MetaOf(target)
		if m != nil {
			if m.Nullable != nil && *m.Nullable || m.HasType("null") {
				c.Nullable = true
			}
			c.Description = description(m)
		}
		c.Type = columnType(target)
		cols = append(cols, c)
	}
	return cols
}

func columnType(s schema.Schema) string {
	m := schema.MetaOf(s)
	if m == nil {
		return "jsonb"
	}
	format, _ := m.Keyword("format")
	switch s.(type) {
	case *schema.Enum:
		return "text"
	case *schema.Object, *schema.Array, *schema.Union:
		return "jsonb"
	}
	switch {
	case m.HasType("integer"):
		if format == "int64" {
			return "bigint"
		}
		return "integer"
	case m.HasType("number"):
		return "numeric"
	case m.HasType("boolean"):
		return "boolean"
	case m.HasType("string"):
		switch format {
		case "date-time":
			return "timestamptz"
		case "date":
			return "date"
		case "uuid":
			return "uuid"
		}
		return "text"
	}
	return "jsonb"
}

func description(m *schema.Meta) string {
	if m == nil {
		return ""
	}
	v, _ := m.Keyword("description")
	s, _ := v.(string)
	return CleanText(s)
}

// CleanText unescapes HTML entities and trims trailing ".,;".
func CleanText(s string) string {
	return strings.TrimRight(html.UnescapeString(s), ".,;")
}

var (
	camelBoundary = regexp.MustCompile(`(.)([A-Z][a-z]+)`)
	lowerUpper    = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// SnakeCase converts CamelCase to snake_case.
func SnakeCase(s string) string {
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	return strings.ToLower(lowerUpper.ReplaceAllString(s, "${1}_${2}"))
}

// TableName strips the Response/Status/Content markers and a leading "Get",
// then snake-cases and pluralizes: "CityStatus" becomes "cities".
func TableName(schemaName string) string {
	name := strings.NewReplacer("Response", "", "Status", "", "Content", "").Replace(schemaName)
	name = strings.TrimPrefix(name, "Get")
	return Pluralize(SnakeCase(name))
}

// Pluralize applies the y→ies, sibilant→es, otherwise +s rules.
func Pluralize(name string) string {
	switch {
	case strings.HasSuffix(name, "y"):
		return strings.TrimSuffix(name, "y") + "ies"
	case strings.HasSuffix(name, "s"), strings.HasSuffix(name, "sh"), strings.HasSuffix(name, "ch"),
		strings.HasSuffix(name, "x"), strings.HasSuffix(name, "z"):
		return name + "es"
	}
	return name + "s"
}
