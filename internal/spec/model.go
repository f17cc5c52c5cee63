package spec

import (
	"mime"
	"strings"

	"github.com/mark3labs/oasgen/internal/schema"
)

// Document model shared by the inference and generation stages. Everything
// here is built once per load and treated as read-only afterwards.

type HttpMethod string

const (
	GET     HttpMethod = "get"
	POST    HttpMethod = "post"
	PUT     HttpMethod = "put"
	DELETE  HttpMethod = "delete"
	PATCH   HttpMethod = "patch"
	HEAD    HttpMethod = "head"
	OPTIONS HttpMethod = "options"
	TRACE   HttpMethod = "trace"
)

func parseMethod(s string) (HttpMethod, bool) {
	switch m := HttpMethod(strings.ToLower(s)); m {
	case GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS, TRACE:
		return m, true
	}
	return "", false
}

// Document is one decoded OpenAPI 3 document.
type Document struct {
	// Service is the logical service the document belongs to.
	Service  string
	Location string
	OpenAPI  string
	Title    string
	Version  string
	// Schemas holds components.schemas in declaration order.
	Schemas []schema.Named
	// Operations are listed path by path, methods in declaration order.
	Operations []Operation
	// Skipped lists component schemas that could not be decoded.
	Skipped []SkippedSchema
}

// SkippedSchema is a component schema left out of Schemas. Err is a
// *SpecError with code ParseError.
type SkippedSchema struct {
	Name string
	Err  error
}

// SchemaSet indexes the component schemas by name.
func (d *Document) SchemaSet() map[string]schema.Schema {
	set := make(map[string]schema.Schema, len(d.Schemas))
	for _, n := range d.Schemas {
		set[n.Name] = n.Schema
	}
	return set
}

// Schema returns a component schema by name.
func (d *Document) Schema(name string) (schema.Schema, bool) {
	for _, n := range d.Schemas {
		if n.Name == name {
			return n.Schema, true
		}
	}
	return nil, false
}

// Operation is a single method on a path template.
type Operation struct {
	ID          string
	Method      HttpMethod
	Path        string
	Summary     string
	Tags        []string
	Parameters  []Parameter
	RequestBody *RequestBody
	Service     string
}

// PathParameters returns the required path parameters in declaration order.
func (o *Operation) PathParameters() []Parameter {
	var out []Parameter
	for _, p := range o.Parameters {
		if p.In == "path" && p.Required {
			out = append(out, p)
		}
	}
	return out
}

// JSONBody returns the application/json request body schema, if any.
func (o *Operation) JSONBody() schema.Schema {
	if o.RequestBody == nil {
		return nil
	}
	return o.RequestBody.JSON()
}

type Parameter struct {
	Name     string
	In       string // path|query|header|cookie
	Required bool
	Schema   schema.Schema
}

type RequestBody struct {
	Required bool
	Content  []Media
}

// JSON returns the schema registered for application/json. Media type
// parameters such as charset are ignored.
func (b *RequestBody) JSON() schema.Schema {
	for _, m := range b.Content {
		mt, _, err := mime.ParseMediaType(m.MediaType)
		if err != nil {
			mt = strings.ToLower(strings.TrimSpace(m.MediaType))
		}
		if mt == "application/json" {
			return m.Schema
		}
	}
	return nil
}

type Media struct {
	MediaType string
	Schema    schema.Schema
}
