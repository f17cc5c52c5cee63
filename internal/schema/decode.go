package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse decodes a single schema from JSON or YAML bytes, keeping keyword and
// property order as written.
func Parse(data []byte) (Schema, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	return Decode(&root)
}

// Decode converts a YAML node (JSON documents parse as YAML) into a Schema.
// Keywords whose value the model cannot interpret are kept as written in
// Meta.Keywords. Only a node that is neither a mapping nor a boolean schema
// fails.
func Decode(node *yaml.Node) (Schema, error) {
	node = Unwrap(node)
	if node != nil && node.Kind == yaml.ScalarNode && node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", node.Line, err)
		}
		return &Scalar{Boolean: &b}, nil
	}
	if node == nil || node.Kind != yaml.MappingNode {
		line := 0
		if node != nil {
			line = node.Line
		}
		return nil, fmt.Errorf("line %d: schema must be a mapping", line)
	}

	var (
		meta         Meta
		pointer      string
		hasRef       bool
		props        []Property
		hasProps     bool
		required     []string
		items        Schema
		additional   *Additional
		enum         []any
		hasEnum      bool
		unionKeyword string
		members      []Schema
	)

	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		val := Unwrap(node.Content[i+1])
		switch key {
		case "$ref":
			pointer = val.Value
			hasRef = true
		case "title":
			meta.Title = val.Value
		case "type":
			types, ok := decodeTypes(val)
			if !ok {
				if err := keep(&meta, key, val); err != nil {
					return nil, err
				}
				continue
			}
			meta.Types = types
		case "nullable":
			var b bool
			if err := val.Decode(&b); err != nil {
				if err := keep(&meta, key, val); err != nil {
					return nil, err
				}
				continue
			}
			meta.Nullable = &b
		case "$schema":
			meta.Dialect = val.Value
		case "x-metadata":
			var raw any
			if err := val.Decode(&raw); err != nil {
				return nil, fmt.Errorf("line %d: x-metadata: %w", val.Line, err)
			}
			p, err := decodeProvenance(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", val.Line, err)
			}
			meta.Provenance = p
		case "properties":
			if val.Kind != yaml.MappingNode {
				if err := keep(&meta, key, val); err != nil {
					return nil, err
				}
				continue
			}
			hasProps = true
			for j := 0; j+1 < len(val.Content); j += 2 {
				name := val.Content[j].Value
				child, err := Decode(val.Content[j+1])
				if err != nil {
					return nil, fmt.Errorf("property %q: %w", name, err)
				}
				props = append(props, Property{Name: name, Schema: child})
			}
		case "required":
			var names []string
			if err := val.Decode(&names); err != nil {
				if err := keep(&meta, key, val); err != nil {
					return nil, err
				}
				continue
			}
			required = names
		case "items":
			if val.Kind == yaml.SequenceNode {
				if err := keep(&meta, key, val); err != nil {
					return nil, err
				}
				continue
			}
			child, err := Decode(val)
			if err != nil {
				return nil, fmt.Errorf("items: %w", err)
			}
			items = child
		case "additionalProperties":
			if val.Kind == yaml.ScalarNode {
				var b bool
				if err := val.Decode(&b); err != nil {
					if err := keep(&meta, key, val); err != nil {
						return nil, err
					}
					continue
				}
				additional = &Additional{Allowed: &b}
				continue
			}
			child, err := Decode(val)
			if err != nil {
				return nil, fmt.Errorf("additionalProperties: %w", err)
			}
			additional = &Additional{Schema: child}
		case "enum":
			if val.Kind != yaml.SequenceNode {
				if err := keep(&meta, key, val); err != nil {
					return nil, err
				}
				continue
			}
			if err := val.Decode(&enum); err != nil {
				return nil, fmt.Errorf("line %d: enum: %w", val.Line, err)
			}
			hasEnum = true
		case "allOf", "anyOf", "oneOf":
			if unionKeyword == "" && val.Kind == yaml.SequenceNode {
				unionKeyword = key
				for _, item := range val.Content {
					child, err := Decode(item)
					if err != nil {
						return nil, fmt.Errorf("%s: %w", key, err)
					}
					members = append(members, child)
				}
				continue
			}
			fallthrough
		default:
			if err := keep(&meta, key, val); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case hasRef:
		return &Ref{Pointer: pointer, Title: meta.Title}, nil
	case hasEnum:
		return &Enum{Meta: meta, Values: enum}, nil
	case unionKeyword != "":
		return &Union{Meta: meta, Keyword: unionKeyword, Members: members}, nil
	case meta.HasType("object") || hasProps || additional != nil:
		return &Object{Meta: meta, Properties: props, Required: required, Additional: additional}, nil
	case meta.HasType("array") || items != nil:
		return &Array{Meta: meta, Items: items}, nil
	default:
		if len(required) > 0 {
			meta.Keywords = append(meta.Keywords, Keyword{Name: "required", Value: toAnySlice(required)})
		}
		return &Scalar{Meta: meta}, nil
	}
}

// Unwrap follows document and alias nodes to the value they stand for.
func Unwrap(node *yaml.Node) *yaml.Node {
	for node != nil {
		switch node.Kind {
		case yaml.DocumentNode:
			if len(node.Content) == 0 {
				return nil
			}
			node = node.Content[0]
		case yaml.AliasNode:
			node = node.Alias
		default:
			return node
		}
	}
	return nil
}

// keep records key as an uninterpreted keyword.
func keep(meta *Meta, key string, val *yaml.Node) error {
	var v any
	if err := val.Decode(&v); err != nil {
		return fmt.Errorf("line %d: %s: %w", val.Line, key, err)
	}
	meta.Keywords = append(meta.Keywords, Keyword{Name: key, Value: v})
	return nil
}

func decodeTypes(val *yaml.Node) ([]string, bool) {
	switch val.Kind {
	case yaml.ScalarNode:
		return []string{val.Value}, true
	case yaml.SequenceNode:
		var types []string
		if err := val.Decode(&types); err != nil {
			return nil, false
		}
		return types, true
	default:
		return nil, false
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
