package fakeemitter

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/mark3labs/oasgen/internal/schema"
)

const maxDepth = 8

// generator produces example values for a resolved schema. A generator with
// a non-zero seed is deterministic.
type generator struct {
	fake *gofakeit.Faker
	now  time.Time
}

func newGenerator(seed uint64, now time.Time) *generator {
	return &generator{fake: gofakeit.New(seed), now: now}
}

func (g *generator) value(s schema.Schema, field string, depth int) (any, error) {
	if depth > maxDepth {
		return nil, nil
	}
	switch v := s.(type) {
	case nil:
		return nil, nil
	case *schema.Ref:
		return nil, fmt.Errorf("unresolved reference %s", v.Pointer)
	case *schema.Enum:
		if len(v.Values) == 0 {
			return nil, nil
		}
		return v.Values[g.fake.IntRange(0, len(v.Values)-1)], nil
	case *schema.Object:
		out := make(map[string]any, len(v.Properties))
		for _, p := range v.Properties {
			val, err := g.value(p.Schema, p.Name, depth+1)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", p.Name, err)
			}
			out[p.Name] = val
		}
		return out, nil
	case *schema.Array:
		n := 1
		if least, ok := intKeyword(&v.Meta, "minItems"); ok && least > n {
			n = least
		}
		items := make([]any, 0, n)
		for i := 0; i < n; i++ {
			val, err := g.value(v.Items, singular(field), depth+1)
			if err != nil {
				return nil, err
			}
			items = append(items, val)
		}
		return items, nil
	case *schema.Union:
		return g.union(v, field, depth)
	case *schema.Scalar:
		if v.Boolean != nil {
			if !*v.Boolean {
				return nil, fmt.Errorf("schema false admits no value")
			}
			return g.fake.Word(), nil
		}
		return g.scalar(&v.Meta, field), nil
	}
	return nil, fmt.Errorf("unsupported schema %T", s)
}

func (g *generator) union(u *schema.Union, field string, depth int) (any, error) {
	if len(u.Members) == 0 {
		return nil, nil
	}
	if u.Keyword != "allOf" {
		return g.value(u.Members[0], field, depth+1)
	}
	merged := map[string]any{}
	for _, m := range u.Members {
		val, err := g.value(m, field, depth+1)
		if err != nil {
			return nil, err
		}
		obj, ok := val.(map[string]any)
		if !ok {
			return val, nil
		}
		for k, v := range obj {
			merged[k] = v
		}
	}
	return merged, nil
}

func (g *generator) scalar(m *schema.Meta, field string) any {
	switch primaryType(m) {
	case "null":
		return nil
	case "boolean":
		return g.fake.Bool()
	case "integer":
		lo, hi := bounds(m, 1, 100)
		ilo, ihi := int64(math.Ceil(lo)), int64(math.Floor(hi))
		if ihi < ilo {
			return ilo
		}
		return int64(g.fake.IntRange(int(ilo), int(ihi)))
	case "number":
		lo, hi := bounds(m, 1, 1000)
		v := math.Round(g.fake.Float64Range(lo, hi)*100) / 100
		return math.Min(math.Max(v, lo), hi)
	}
	return g.text(m, field)
}

func (g *generator) text(m *schema.Meta, field string) string {
	format, _ := m.Keyword("format")
	lower := strings.ToLower(field)
	var s string
	switch {
	case strings.HasSuffix(lower, "id") || format == "uuid":
		s = g.fake.UUID()
	case strings.Contains(lower, "firstname"):
		s = g.fake.FirstName()
	case strings.Contains(lower, "lastname"):
		s = g.fake.LastName()
	case strings.Contains(lower, "name"):
		s = g.fake.Name()
	case format == "date-time":
		s = g.date().Format(time.RFC3339)
	case strings.Contains(lower, "date") || format == "date":
		s = g.date().Format(time.DateOnly)
	case lower == "email" || format == "email":
		s = g.fake.Email()
	case format == "uri" || format == "url":
		s = g.fake.URL()
	case format == "hostname":
		s = g.fake.DomainName()
	case format == "ipv4":
		s = g.fake.IPv4Address()
	default:
		s = g.fake.Word()
	}
	if least, ok := intKeyword(m, "minLength"); ok {
		for len(s) < least {
			s += g.fake.Word()
		}
	}
	if most, ok := intKeyword(m, "maxLength"); ok && most >= 0 && len(s) > most {
		s = s[:most]
	}
	return s
}

// date is within the 30 days before the generator's reference time.
func (g *generator) date() time.Time {
	return g.fake.DateRange(g.now.Add(-30*24*time.Hour), g.now).UTC().Truncate(time.Second)
}

func primaryType(m *schema.Meta) string {
	for _, t := range m.Types {
		if t != "null" {
			return t
		}
	}
	if len(m.Types) > 0 {
		return "null"
	}
	return "string"
}

func bounds(m *schema.Meta, lo, hi float64) (float64, float64) {
	if v, ok := numKeyword(m, "minimum"); ok {
		lo = v
		if hi < lo {
			hi = lo + 100
		}
	}
	if v, ok := numKeyword(m, "maximum"); ok {
		hi = v
		if lo > hi {
			lo = hi
		}
	}
	return lo, hi
}

func numKeyword(m *schema.Meta, name string) (float64, bool) {
	v, ok := m.Keyword(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func intKeyword(m *schema.Meta, name string) (int, bool) {
	v, ok := numKeyword(m, name)
	return int(v), ok
}

func singular(field string) string {
	if strings.HasSuffix(field, "ies") {
		return strings.TrimSuffix(field, "ies") + "y"
	}
	return strings.TrimSuffix(field, "s")
}
