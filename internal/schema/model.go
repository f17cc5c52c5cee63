package schema

// Kind identifies the variant of a Schema.
type Kind int

const (
	KindRef Kind = iota
	KindObject
	KindArray
	KindScalar
	KindEnum
	KindUnion
)

func (k Kind) String() string {
	switch k {
	case KindRef:
		return "ref"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindScalar:
		return "scalar"
	case KindEnum:
		return "enum"
	case KindUnion:
		return "union"
	default:
		return "unknown"
	}
}

// ComponentPrefix is the only pointer form resolved against a document's schema set.
const ComponentPrefix = "#/components/schemas/"

// Schema is a recursive type descriptor. It is implemented by *Ref, *Object,
// *Array, *Scalar, *Enum and *Union only.
type Schema interface {
	Kind() Kind
	isSchema()
}

// Meta carries the keywords shared by every structural variant.
type Meta struct {
	Title string
	// Types is the "type" keyword. A single element is encoded as a string.
	Types []string
	// Nullable is the source-dialect "nullable" flag; nil once normalized.
	Nullable *bool
	// Dialect is the "$schema" identifier.
	Dialect    string
	Keywords   []Keyword
	Provenance *Provenance
}

// Keyword is any keyword the model does not interpret, kept in document order.
type Keyword struct {
	Name  string
	Value any
}

// Property is one entry of an object's ordered property list.
type Property struct {
	Name   string
	Schema Schema
}

// Additional models "additionalProperties": exactly one of Allowed and Schema is set.
type Additional struct {
	Allowed *bool
	Schema  Schema
}

// Ref is an unresolved pointer. It never carries structural keywords.
type Ref struct {
	Pointer string
	Title   string
}

type Object struct {
	Meta
	Properties []Property
	Required   []string
	Additional *Additional
}

type Array struct {
	Meta
	Items Schema
}

// Scalar is a leaf schema. Boolean is set for the schemas written as a bare
// true or false, which carry no other keywords.
type Scalar struct {
	Meta
	Boolean *bool
}

type Enum struct {
	Meta
	Values []any
}

// Union is an allOf/anyOf/oneOf composition.
type Union struct {
	Meta
	Keyword string
	Members []Schema
}

func (*Ref) Kind() Kind    { return KindRef }
func (*Object) Kind() Kind { return KindObject }
func (*Array) Kind() Kind  { return KindArray }
func (*Scalar) Kind() Kind { return KindScalar }
func (*Enum) Kind() Kind   { return KindEnum }
func (*Union) Kind() Kind  { return KindUnion }

func (*Ref) isSchema()    {}
func (*Object) isSchema() {}
func (*Array) isSchema()  {}
func (*Scalar) isSchema() {}
func (*Enum) isSchema()   {}
func (*Union) isSchema()  {}

// Named pairs a schema with the name it is published under.
type Named struct {
	Name   string
	Schema Schema
}

// MetaOf returns the shared keywords of a structural schema, or nil for a Ref.
func MetaOf(s Schema) *Meta {
	switch v := s.(type) {
	case *Object:
		return &v.Meta
	case *Array:
		return &v.Meta
	case *Scalar:
		return &v.Meta
	case *Enum:
		return &v.Meta
	case *Union:
		return &v.Meta
	default:
		return nil
	}
}

// TitleOf returns the title of any variant.
func TitleOf(s Schema) string {
	if r, ok := s.(*Ref); ok {
		return r.Title
	}
	if m := MetaOf(s); m != nil {
		return m.Title
	}
	return ""
}

// RefName returns the component name a pointer targets, or "" when the pointer
// is not of the #/components/schemas/{Name} form.
func RefName(pointer string) string {
	if len(pointer) <= len(ComponentPrefix) || pointer[:len(ComponentPrefix)] != ComponentPrefix {
		return ""
	}
	return pointer[len(ComponentPrefix):]
}

// NewRef builds a reference to a component schema.
func NewRef(name string) *Ref {
	return &Ref{Pointer: ComponentPrefix + name}
}

// PropertyNames returns the property names of an object schema in declaration order.
// Non-object schemas have no properties.
func PropertyNames(s Schema) []string {
	o, ok := s.(*Object)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(o.Properties))
	for _, p := range o.Properties {
		names = append(names, p.Name)
	}
	return names
}

// Lookup returns the schema of a named property.
func (o *Object) Lookup(name string) (Schema, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}

// Keyword returns the value of an uninterpreted keyword.
func (m *Meta) Keyword(name string) (any, bool) {
	for _, k := range m.Keywords {
		if k.Name == name {
			return k.Value, true
		}
	}
	return nil, false
}

// HasType reports whether t appears in the "type" keyword.
func (m *Meta) HasType(t string) bool {
	for _, have := range m.Types {
		if have == t {
			return true
		}
	}
	return false
}
