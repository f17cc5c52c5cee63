package schema

// Clone returns a deep copy of s. Keyword values are copied structurally when
// they are maps or slices produced by decoding.
func Clone(s Schema) Schema {
	switch v := s.(type) {
	case nil:
		return nil
	case *Ref:
		out := *v
		return &out
	case *Object:
		out := &Object{Meta: cloneMeta(v.Meta)}
		if v.Properties != nil {
			out.Properties = make([]Property, len(v.Properties))
			for i, p := range v.Properties {
				out.Properties[i] = Property{Name: p.Name, Schema: Clone(p.Schema)}
			}
		}
		if v.Required != nil {
			out.Required = append([]string(nil), v.Required...)
		}
		out.Additional = cloneAdditional(v.Additional)
		return out
	case *Array:
		return &Array{Meta: cloneMeta(v.Meta), Items: Clone(v.Items)}
	case *Scalar:
		out := &Scalar{Meta: cloneMeta(v.Meta)}
		if v.Boolean != nil {
			b := *v.Boolean
			out.Boolean = &b
		}
		return out
	case *Enum:
		vals := make([]any, len(v.Values))
		for i, val := range v.Values {
			vals[i] = cloneValue(val)
		}
		return &Enum{Meta: cloneMeta(v.Meta), Values: vals}
	case *Union:
		members := make([]Schema, len(v.Members))
		for i, m := range v.Members {
			members[i] = Clone(m)
		}
		return &Union{Meta: cloneMeta(v.Meta), Keyword: v.Keyword, Members: members}
	default:
		return s
	}
}

func cloneMeta(m Meta) Meta {
	out := m
	if m.Types != nil {
		out.Types = append([]string(nil), m.Types...)
	}
	if m.Nullable != nil {
		b := *m.Nullable
		out.Nullable = &b
	}
	if m.Keywords != nil {
		out.Keywords = make([]Keyword, len(m.Keywords))
		for i, k := range m.Keywords {
			out.Keywords[i] = Keyword{Name: k.Name, Value: cloneValue(k.Value)}
		}
	}
	if m.Provenance != nil {
		p := *m.Provenance
		out.Provenance = &p
	}
	return out
}

func cloneAdditional(a *Additional) *Additional {
	if a == nil {
		return nil
	}
	out := &Additional{Schema: Clone(a.Schema)}
	if a.Allowed != nil {
		b := *a.Allowed
		out.Allowed = &b
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
