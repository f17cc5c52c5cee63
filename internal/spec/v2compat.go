package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var v2Methods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"options": true, "head": true, "patch": true,
}

// fixV2Operations rewrites Swagger 2 operations that openapi2conv rejects:
// several "in: body" parameters are merged into one object-typed body, and
// body parameters mixed with formData are demoted to formData fields.
// The input is returned untouched when nothing needed fixing or on error.
func fixV2Operations(data []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths, _ := doc["paths"].(map[string]any)
	changed := false
	for _, raw := range paths {
		item, _ := raw.(map[string]any)
		for method, rawOp := range item {
			if !v2Methods[strings.ToLower(method)] {
				continue
			}
			op, _ := rawOp.(map[string]any)
			if op == nil {
				continue
			}
			if fixV2Operation(op) {
				changed = true
			}
		}
	}
	if !changed {
		return data, false, nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func fixV2Operation(op map[string]any) bool {
	params, _ := op["parameters"].([]any)
	var bodies, others []map[string]any
	formData := false
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		switch in, _ := pm["in"].(string); strings.ToLower(in) {
		case "body":
			bodies = append(bodies, pm)
			continue
		case "formdata":
			formData = true
		}
		others = append(others, pm)
	}

	switch {
	case len(bodies) > 0 && formData:
		rewritten := make([]any, 0, len(params))
		for _, p := range params {
			pm, _ := p.(map[string]any)
			if pm == nil {
				continue
			}
			if in, _ := pm["in"].(string); strings.EqualFold(in, "body") {
				pm = bodyAsFormField(pm)
			}
			rewritten = append(rewritten, pm)
		}
		op["parameters"] = rewritten
		consumes, _ := op["consumes"].([]any)
		for _, c := range consumes {
			if c == "multipart/form-data" {
				return true
			}
		}
		op["consumes"] = append(consumes, "multipart/form-data")
		return true

	case len(bodies) > 1:
		props := map[string]any{}
		var required []any
		for _, b := range bodies {
			name := paramName(b)
			props[name] = paramSchema(b)
			if req, _ := b["required"].(bool); req {
				required = append(required, name)
			}
		}
		merged := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			merged["required"] = required
		}
		rewritten := []any{map[string]any{"in": "body", "name": "body", "schema": merged}}
		for _, o := range others {
			rewritten = append(rewritten, o)
		}
		op["parameters"] = rewritten
		return true
	}
	return false
}

func paramName(pm map[string]any) string {
	if name, _ := pm["name"].(string); name != "" {
		return name
	}
	return "field"
}

// paramSchema returns the body schema of a parameter, synthesizing one from
// the v2 type/format/items fields when needed.
func paramSchema(pm map[string]any) map[string]any {
	if s, ok := pm["schema"].(map[string]any); ok {
		return s
	}
	t, _ := pm["type"].(string)
	if t == "" {
		return map[string]any{"type": "string"}
	}
	s := map[string]any{"type": t}
	if items, ok := pm["items"].(map[string]any); ok {
		s["items"] = items
	}
	if f, _ := pm["format"].(string); f != "" {
		s["format"] = f
	}
	return s
}

func bodyAsFormField(pm map[string]any) map[string]any {
	field := map[string]any{"in": "formData", "name": paramName(pm)}
	if desc, _ := pm["description"].(string); desc != "" {
		field["description"] = desc
	}
	if req, ok := pm["required"].(bool); ok {
		field["required"] = req
	}
	src := pm
	if s, ok := pm["schema"].(map[string]any); ok {
		src = s
	}
	t, _ := src["type"].(string)
	if t == "" || t == "object" {
		// formData cannot carry objects or references.
		t = "string"
	}
	field["type"] = t
	if items, ok := src["items"].(map[string]any); ok {
		field["items"] = items
	}
	if f, _ := src["format"].(string); f != "" {
		field["format"] = f
	}
	return field
}
