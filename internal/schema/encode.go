package schema

import (
	"bytes"
	"encoding/json"
)

// Marshal encodes s as JSON with a stable keyword order: $schema, $ref, title,
// type, uninterpreted keywords in document order, then the structural keywords
// and x-metadata last.
func Marshal(s Schema) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalIndent is Marshal followed by json.Indent.
func MarshalIndent(s Schema, prefix, indent string) ([]byte, error) {
	raw, err := Marshal(s)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, prefix, indent); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (r *Ref) MarshalJSON() ([]byte, error)    { return Marshal(r) }
func (o *Object) MarshalJSON() ([]byte, error) { return Marshal(o) }
func (a *Array) MarshalJSON() ([]byte, error)  { return Marshal(a) }
func (s *Scalar) MarshalJSON() ([]byte, error) { return Marshal(s) }
func (e *Enum) MarshalJSON() ([]byte, error)   { return Marshal(e) }
func (u *Union) MarshalJSON() ([]byte, error)  { return Marshal(u) }

type objectWriter struct {
	buf *bytes.Buffer
	n   int
	err error
}

func (w *objectWriter) field(name string, value any) {
	if w.err != nil {
		return
	}
	if w.n > 0 {
		w.buf.WriteByte(',')
	}
	w.n++
	if w.err = writeValue(w.buf, name); w.err != nil {
		return
	}
	w.buf.WriteByte(':')
	switch v := value.(type) {
	case Schema:
		w.err = encode(w.buf, v)
	case []Schema:
		w.buf.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if w.err = encode(w.buf, item); w.err != nil {
				return
			}
		}
		w.buf.WriteByte(']')
	case []Property:
		inner := &objectWriter{buf: w.buf}
		w.buf.WriteByte('{')
		for _, p := range v {
			inner.field(p.Name, p.Schema)
		}
		w.buf.WriteByte('}')
		w.err = inner.err
	default:
		w.err = writeValue(w.buf, v)
	}
}

func writeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

func encode(buf *bytes.Buffer, s Schema) error {
	if sc, ok := s.(*Scalar); ok && sc.Boolean != nil {
		return writeValue(buf, *sc.Boolean)
	}
	buf.WriteByte('{')
	w := &objectWriter{buf: buf}
	switch v := s.(type) {
	case nil:
	case *Ref:
		w.field("$ref", v.Pointer)
		if v.Title != "" {
			w.field("title", v.Title)
		}
	default:
		m := MetaOf(s)
		if m.Dialect != "" {
			w.field("$schema", m.Dialect)
		}
		if m.Title != "" {
			w.field("title", m.Title)
		}
		switch len(m.Types) {
		case 0:
		case 1:
			w.field("type", m.Types[0])
		default:
			w.field("type", m.Types)
		}
		for _, k := range m.Keywords {
			w.field(k.Name, k.Value)
		}
		switch v := s.(type) {
		case *Object:
			if v.Properties != nil {
				w.field("properties", v.Properties)
			}
			if len(v.Required) > 0 {
				w.field("required", v.Required)
			}
			if v.Additional != nil {
				if v.Additional.Schema != nil {
					w.field("additionalProperties", v.Additional.Schema)
				} else if v.Additional.Allowed != nil {
					w.field("additionalProperties", *v.Additional.Allowed)
				}
			}
		case *Array:
			if v.Items != nil {
				w.field("items", v.Items)
			}
		case *Enum:
			w.field("enum", v.Values)
		case *Union:
			w.field(v.Keyword, v.Members)
		}
		if m.Nullable != nil {
			w.field("nullable", *m.Nullable)
		}
		if m.Provenance != nil {
			w.field("x-metadata", m.Provenance)
		}
	}
	buf.WriteByte('}')
	return w.err
}
