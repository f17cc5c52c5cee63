package entity

import "strings"

// ComplexRule ties operations that mention any of Keywords to the Anchor
// entity, for hierarchies where the operationId names a related entity in
// plural form (GetCitiesByRegion belongs to Location).
type ComplexRule struct {
	Anchor   string   `json:"anchor" yaml:"anchor"`
	Keywords []string `json:"keywords" yaml:"keywords"`
}

// DefaultRules returns the built-in rule table.
func DefaultRules() []ComplexRule {
	return []ComplexRule{
		{Anchor: "Location", Keywords: []string{"Cities", "Countries", "Regions", "Neighborhoods"}},
	}
}

// ParseRule parses "Anchor=Keyword1,Keyword2".
func ParseRule(s string) (ComplexRule, bool) {
	anchor, list, ok := strings.Cut(s, "=")
	anchor = strings.TrimSpace(anchor)
	if !ok || anchor == "" {
		return ComplexRule{}, false
	}
	var kws []string
	for _, k := range strings.Split(list, ",") {
		if k = strings.TrimSpace(k); k != "" {
			kws = append(kws, k)
		}
	}
	if len(kws) == 0 {
		return ComplexRule{}, false
	}
	return ComplexRule{Anchor: anchor, Keywords: kws}, true
}

func (r ComplexRule) matches(entity, operationID string) bool {
	if r.Anchor != entity {
		return false
	}
	for _, k := range r.Keywords {
		if strings.Contains(operationID, k) {
			return true
		}
	}
	return false
}
