package spec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/oasgen/internal/schema"
)

// Decode builds a Document from OpenAPI 3 JSON or YAML. Paths, methods,
// parameters and component schemas keep their declaration order.
//
// A document without a components or paths section fails with a
// MalformedDocument error. A component schema that cannot be decoded is left
// out and listed in Document.Skipped.
func Decode(raw []byte, service, location string) (*Document, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, &SpecError{Code: ParseError, Message: fmt.Sprintf("parse %s: %v", location, err), Location: location, Cause: err}
	}
	top := schema.Unwrap(&root)
	if top == nil || top.Kind != yaml.MappingNode {
		return nil, malformed(location, "", "spec: document root must be a mapping")
	}

	components := lookup(top, "components")
	if components == nil {
		return nil, malformed(location, "#/components", "spec: document has no components section")
	}
	paths := lookup(top, "paths")
	if paths == nil {
		return nil, malformed(location, "#/paths", "spec: document has no paths section")
	}
	if components.Kind != yaml.MappingNode {
		return nil, malformed(location, "#/components", "spec: components must be a mapping")
	}
	if paths.Kind != yaml.MappingNode {
		return nil, malformed(location, "#/paths", "spec: paths must be a mapping")
	}

	d := &decoder{
		location:   location,
		parameters: lookup(components, "parameters"),
		bodies:     lookup(components, "requestBodies"),
	}
	doc := &Document{
		Service:  service,
		Location: location,
		OpenAPI:  scalar(lookup(top, "openapi")),
	}
	if info := lookup(top, "info"); info != nil {
		doc.Title = scalar(lookup(info, "title"))
		doc.Version = scalar(lookup(info, "version"))
	}

	if schemas := lookup(components, "schemas"); schemas != nil && schemas.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(schemas.Content); i += 2 {
			name := schemas.Content[i].Value
			s, err := schema.Decode(schemas.Content[i+1])
			if err != nil {
				doc.Skipped = append(doc.Skipped, SkippedSchema{Name: name, Err: &SpecError{
					Code:        ParseError,
					Message:     fmt.Sprintf("schema %s: %v", name, err),
					Location:    location,
					JSONPointer: "#/components/schemas/" + escapePointer(name),
					Cause:       err,
				}})
				continue
			}
			doc.Schemas = append(doc.Schemas, schema.Named{Name: name, Schema: s})
		}
	}

	for i := 0; i+1 < len(paths.Content); i += 2 {
		path := paths.Content[i].Value
		item := schema.Unwrap(paths.Content[i+1])
		if item == nil || item.Kind != yaml.MappingNode {
			continue
		}
		ops, err := d.pathItem(path, item, service)
		if err != nil {
			return nil, err
		}
		doc.Operations = append(doc.Operations, ops...)
	}
	return doc, nil
}

type decoder struct {
	location   string
	parameters *yaml.Node
	bodies     *yaml.Node
}

func (d *decoder) pathItem(path string, item *yaml.Node, service string) ([]Operation, error) {
	base, err := d.parameterList(lookup(item, "parameters"), pointer("paths", path, "parameters"))
	if err != nil {
		return nil, err
	}

	var ops []Operation
	for i := 0; i+1 < len(item.Content); i += 2 {
		method, ok := parseMethod(item.Content[i].Value)
		if !ok {
			continue
		}
		node := schema.Unwrap(item.Content[i+1])
		if node == nil || node.Kind != yaml.MappingNode {
			continue
		}
		ptr := pointer("paths", path, string(method))
		op := Operation{
			ID:      scalar(lookup(node, "operationId")),
			Method:  method,
			Path:    path,
			Summary: scalar(lookup(node, "summary")),
			Service: service,
		}
		if tags := lookup(node, "tags"); tags != nil {
			_ = tags.Decode(&op.Tags)
		}

		own, err := d.parameterList(lookup(node, "parameters"), ptr+"/parameters")
		if err != nil {
			return nil, err
		}
		op.Parameters = mergeParameters(base, own)

		if rb := lookup(node, "requestBody"); rb != nil {
			body, err := d.requestBody(rb, ptr+"/requestBody")
			if err != nil {
				return nil, err
			}
			op.RequestBody = body
		}
		ops = append(ops, op)
	}
	return ops, nil
}

// mergeParameters overlays operation-level parameters onto path-level ones.
// An override keeps the position of the parameter it replaces.
func mergeParameters(base, own []Parameter) []Parameter {
	if len(base) == 0 && len(own) == 0 {
		return nil
	}
	out := append([]Parameter(nil), base...)
	index := make(map[string]int, len(out))
	for i, p := range out {
		index[paramKey(p.In, p.Name)] = i
	}
	for _, p := range own {
		if i, ok := index[paramKey(p.In, p.Name)]; ok {
			out[i] = p
			continue
		}
		index[paramKey(p.In, p.Name)] = len(out)
		out = append(out, p)
	}
	return out
}

func paramKey(in, name string) string { return in + ":" + name }

func (d *decoder) parameterList(node *yaml.Node, ptr string) ([]Parameter, error) {
	if node == nil {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, d.parseErr(ptr, "parameters must be a list", node)
	}
	var out []Parameter
	for i, item := range node.Content {
		item, err := d.follow(schema.Unwrap(item), "#/components/parameters/", d.parameters)
		if err != nil {
			return nil, d.parseErr(fmt.Sprintf("%s/%d", ptr, i), err.Error(), node)
		}
		if item == nil {
			continue
		}
		p := Parameter{
			Name: scalar(lookup(item, "name")),
			In:   scalar(lookup(item, "in")),
		}
		if req := lookup(item, "required"); req != nil {
			if err := req.Decode(&p.Required); err != nil {
				return nil, d.parseErr(fmt.Sprintf("%s/%d/required", ptr, i), "required must be a boolean", req)
			}
		}
		if sn := lookup(item, "schema"); sn != nil {
			s, err := schema.Decode(sn)
			if err != nil {
				return nil, d.parseErr(fmt.Sprintf("%s/%d/schema", ptr, i), err.Error(), sn)
			}
			p.Schema = s
		} else if t := scalar(lookup(item, "type")); t != "" {
			p.Schema = &schema.Scalar{Meta: schema.Meta{Types: []string{t}}}
		}
		out = append(out, p)
	}
	return out, nil
}

func (d *decoder) requestBody(node *yaml.Node, ptr string) (*RequestBody, error) {
	node, err := d.follow(schema.Unwrap(node), "#/components/requestBodies/", d.bodies)
	if err != nil {
		return nil, d.parseErr(ptr, err.Error(), node)
	}
	if node == nil {
		return nil, nil
	}
	rb := &RequestBody{}
	if req := lookup(node, "required"); req != nil {
		if err := req.Decode(&rb.Required); err != nil {
			return nil, d.parseErr(ptr+"/required", "required must be a boolean", req)
		}
	}
	content := lookup(node, "content")
	if content == nil || content.Kind != yaml.MappingNode {
		return rb, nil
	}
	for i := 0; i+1 < len(content.Content); i += 2 {
		mt := content.Content[i].Value
		media := Media{MediaType: mt}
		if sn := lookup(schema.Unwrap(content.Content[i+1]), "schema"); sn != nil {
			s, err := schema.Decode(sn)
			if err != nil {
				return nil, d.parseErr(ptr+"/content/"+escapePointer(mt)+"/schema", err.Error(), sn)
			}
			media.Schema = s
		}
		rb.Content = append(rb.Content, media)
	}
	return rb, nil
}

// follow resolves a local $ref into the given components section. Chains are
// followed up to a fixed depth. Nodes without $ref are returned unchanged.
func (d *decoder) follow(node *yaml.Node, prefix string, section *yaml.Node) (*yaml.Node, error) {
	for hops := 0; node != nil; hops++ {
		ref := scalar(lookup(node, "$ref"))
		if ref == "" {
			return node, nil
		}
		if hops > 16 {
			return nil, fmt.Errorf("reference chain too deep at %s", ref)
		}
		if !strings.HasPrefix(ref, prefix) {
			return nil, fmt.Errorf("unsupported reference %s", ref)
		}
		target := lookup(section, strings.TrimPrefix(ref, prefix))
		if target == nil {
			return nil, fmt.Errorf("unresolved reference %s", ref)
		}
		node = target
	}
	return nil, nil
}

func (d *decoder) parseErr(ptr, msg string, node *yaml.Node) error {
	line := 0
	if node != nil {
		line = node.Line
	}
	return &SpecError{
		Code:        ParseError,
		Message:     fmt.Sprintf("%s (line %d): %s", ptr, line, msg),
		Location:    d.location,
		JSONPointer: ptr,
	}
}

func malformed(location, ptr, msg string) error {
	return &SpecError{Code: MalformedDocument, Message: msg, Location: location, JSONPointer: ptr}
}

func lookup(node *yaml.Node, key string) *yaml.Node {
	node = schema.Unwrap(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return schema.Unwrap(node.Content[i+1])
		}
	}
	return nil
}

func scalar(node *yaml.Node) string {
	if node == nil || node.Kind != yaml.ScalarNode {
		return ""
	}
	return node.Value
}

func pointer(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = escapePointer(p)
	}
	return "#/" + strings.Join(escaped, "/")
}

func escapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}
