package schema

import "fmt"

// Provenance is the generation metadata stamped onto emitted schemas as "x-metadata".
type Provenance struct {
	GeneratedBy      string `json:"generatedBy,omitempty" yaml:"generatedBy,omitempty"`
	GeneratedFrom    string `json:"generatedFrom,omitempty" yaml:"generatedFrom,omitempty"`
	GeneratedAt      string `json:"generatedAt,omitempty" yaml:"generatedAt,omitempty"`
	GeneratedByUser  string `json:"generatedByUser,omitempty" yaml:"generatedByUser,omitempty"`
	GeneratorVersion string `json:"generatorVersion,omitempty" yaml:"generatorVersion,omitempty"`
	SourceType       string `json:"sourceType,omitempty" yaml:"sourceType,omitempty"`
	SchemaName       string `json:"schemaName,omitempty" yaml:"schemaName,omitempty"`
	OriginalFile     string `json:"originalFile,omitempty" yaml:"originalFile,omitempty"`
	OperationID      string `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Composite        bool   `json:"composite,omitempty" yaml:"composite,omitempty"`
	RunID            string `json:"runId,omitempty" yaml:"runId,omitempty"`
}

// WithProvenance returns a copy of s carrying p. A Ref has nowhere to carry
// provenance and is returned unchanged.
func WithProvenance(s Schema, p Provenance) Schema {
	out := Clone(s)
	if m := MetaOf(out); m != nil {
		m.Provenance = &p
	}
	return out
}

func decodeProvenance(v any) (*Provenance, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("x-metadata: expected mapping, got %T", v)
	}
	p := &Provenance{}
	str := func(key string) string {
		s, _ := m[key].(string)
		return s
	}
	p.GeneratedBy = str("generatedBy")
	p.GeneratedFrom = str("generatedFrom")
	p.GeneratedAt = str("generatedAt")
	p.GeneratedByUser = str("generatedByUser")
	p.GeneratorVersion = str("generatorVersion")
	p.SourceType = str("sourceType")
	p.SchemaName = str("schemaName")
	p.OriginalFile = str("originalFile")
	p.OperationID = str("operationId")
	p.RunID = str("runId")
	p.Composite, _ = m["composite"].(bool)
	return p, nil
}
