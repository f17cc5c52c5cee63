package pipeline

import (
	"strings"

	"github.com/mark3labs/oasgen/internal/entity"
	"github.com/mark3labs/oasgen/internal/mapping"
	"github.com/mark3labs/oasgen/internal/schema"
)

// EntityContext is everything the rendering stage knows about one entity.
type EntityContext struct {
	EntityName           string             `json:"entityName" yaml:"entityName"`
	EntityVarName        string             `json:"entityVarName" yaml:"entityVarName"`
	ServiceName          string             `json:"serviceName" yaml:"serviceName"`
	HasCreate            bool               `json:"hasCreate" yaml:"hasCreate"`
	HasGet               bool               `json:"hasGet" yaml:"hasGet"`
	HasUpdate            bool               `json:"hasUpdate" yaml:"hasUpdate"`
	HasDelete            bool               `json:"hasDelete" yaml:"hasDelete"`
	HasList              bool               `json:"hasList" yaml:"hasList"`
	Operations           []CRUDOperation    `json:"operations" yaml:"operations"`
	HasComplexOperations bool               `json:"hasComplexOperations" yaml:"hasComplexOperations"`
	ComplexOperations    []ComplexOperation `json:"complexOperations" yaml:"complexOperations"`
	UnmappedTargetFields []Field            `json:"unmappedTargetFields" yaml:"unmappedTargetFields"`
	UnmappedUpdateFields []Field            `json:"unmappedUpdateFields" yaml:"unmappedUpdateFields"`
	HasUnmappedFields    bool               `json:"hasUnmappedFields" yaml:"hasUnmappedFields"`
	RelationMappings     []mapping.Relation `json:"relationMappings" yaml:"relationMappings"`
	CreateDtoName        string             `json:"createDtoName" yaml:"createDtoName"`
	UpdateDtoName        string             `json:"updateDtoName" yaml:"updateDtoName"`
	ResponseDtoName      string             `json:"responseDtoName" yaml:"responseDtoName"`
	ListResponseDtoName  string             `json:"listResponseDtoName" yaml:"listResponseDtoName"`
}

// CRUDOperation is a filled CRUD slot.
type CRUDOperation struct {
	Slot        string `json:"slot" yaml:"slot"`
	OperationID string `json:"operationId" yaml:"operationId"`
	HTTPMethod  string `json:"httpMethod" yaml:"httpMethod"`
	Path        string `json:"path" yaml:"path"`
}

type ComplexOperation struct {
	OperationID      string         `json:"operationId" yaml:"operationId"`
	MethodName       string         `json:"methodName" yaml:"methodName"`
	ResponseType     string         `json:"responseType" yaml:"responseType"`
	RepositoryMethod string         `json:"repositoryMethod" yaml:"repositoryMethod"`
	HTTPMethod       string         `json:"httpMethod" yaml:"httpMethod"`
	Path             string         `json:"path" yaml:"path"`
	PathVariables    []PathVariable `json:"pathVariables" yaml:"pathVariables"`
	HasPathVariables bool           `json:"hasPathVariables" yaml:"hasPathVariables"`
}

// PathVariable is a required path parameter of a complex operation. HasMore
// is false only for the last one.
type PathVariable struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	HasMore bool   `json:"hasMore" yaml:"hasMore"`
}

type Field struct {
	FieldName string `json:"fieldName" yaml:"fieldName"`
}

// NewEntityContext flattens an inferred entity and its mapping hint.
func NewEntityContext(ent entity.Entity, hint mapping.Hint) EntityContext {
	c := EntityContext{
		EntityName:           ent.Name,
		EntityVarName:        strings.ToLower(ent.Name),
		ServiceName:          ent.Service,
		HasCreate:            ent.CRUD.Create != nil,
		HasGet:               ent.CRUD.Get != nil,
		HasUpdate:            ent.CRUD.Update != nil,
		HasDelete:            ent.CRUD.Delete != nil,
		HasList:              ent.CRUD.List != nil,
		Operations:           []CRUDOperation{},
		ComplexOperations:    []ComplexOperation{},
		UnmappedTargetFields: fields(hint.UnmappedCreateFields),
		UnmappedUpdateFields: fields(hint.UnmappedUpdateFields),
		HasUnmappedFields:    hint.HasUnmappedFields,
		RelationMappings:     hint.Relations,
		CreateDtoName:        mapping.CreateSchemaName(ent.Name),
		UpdateDtoName:        mapping.UpdateSchemaName(ent.Name),
		ResponseDtoName:      ent.Name + "Response",
		ListResponseDtoName:  "List" + ent.Name + "sResponseContent",
	}
	if c.RelationMappings == nil {
		c.RelationMappings = []mapping.Relation{}
	}
	for _, s := range entity.Slots {
		if op := ent.CRUD.Lookup(s); op != nil {
			c.Operations = append(c.Operations, CRUDOperation{
				Slot:        string(s),
				OperationID: op.ID,
				HTTPMethod:  string(op.Method),
				Path:        op.Path,
			})
		}
	}
	for _, op := range ent.Complex {
		co := ComplexOperation{
			OperationID:      op.ID,
			MethodName:       lowerFirst(op.ID),
			ResponseType:     op.ID + "ResponseContent",
			RepositoryMethod: repositoryMethod(op.ID),
			HTTPMethod:       string(op.Method),
			Path:             op.Path,
			PathVariables:    []PathVariable{},
		}
		params := op.PathParameters()
		for i, p := range params {
			co.PathVariables = append(co.PathVariables, PathVariable{
				Name:    p.Name,
				Type:    paramType(p.Schema),
				HasMore: i < len(params)-1,
			})
		}
		co.HasPathVariables = len(co.PathVariables) > 0
		c.ComplexOperations = append(c.ComplexOperations, co)
	}
	c.HasComplexOperations = len(c.ComplexOperations) > 0
	return c
}

// Values returns the context as a flat map keyed by the JSON field names.
// Nested lists hold maps so templates can range over them uniformly.
func (c EntityContext) Values() map[string]any {
	ops := make([]map[string]any, 0, len(c.Operations))
	for _, o := range c.Operations {
		ops = append(ops, map[string]any{
			"slot":        o.Slot,
			"operationId": o.OperationID,
			"httpMethod":  o.HTTPMethod,
			"path":        o.Path,
		})
	}
	complexOps := make([]map[string]any, 0, len(c.ComplexOperations))
	for _, o := range c.ComplexOperations {
		vars := make([]map[string]any, 0, len(o.PathVariables))
		for _, v := range o.PathVariables {
			vars = append(vars, map[string]any{"name": v.Name, "type": v.Type, "hasMore": v.HasMore})
		}
		complexOps = append(complexOps, map[string]any{
			"operationId":      o.OperationID,
			"methodName":       o.MethodName,
			"responseType":     o.ResponseType,
			"repositoryMethod": o.RepositoryMethod,
			"httpMethod":       o.HTTPMethod,
			"path":             o.Path,
			"pathVariables":    vars,
			"hasPathVariables": o.HasPathVariables,
		})
	}
	relations := make([]map[string]any, 0, len(c.RelationMappings))
	for _, r := range c.RelationMappings {
		relations = append(relations, map[string]any{"sourceField": r.SourceField, "targetField": r.TargetField})
	}
	return map[string]any{
		"entityName":           c.EntityName,
		"entityVarName":        c.EntityVarName,
		"serviceName":          c.ServiceName,
		"hasCreate":            c.HasCreate,
		"hasGet":               c.HasGet,
		"hasUpdate":            c.HasUpdate,
		"hasDelete":            c.HasDelete,
		"hasList":              c.HasList,
		"operations":           ops,
		"hasComplexOperations": c.HasComplexOperations,
		"complexOperations":    complexOps,
		"unmappedTargetFields": fieldValues(c.UnmappedTargetFields),
		"unmappedUpdateFields": fieldValues(c.UnmappedUpdateFields),
		"hasUnmappedFields":    c.HasUnmappedFields,
		"relationMappings":     relations,
		"createDtoName":        c.CreateDtoName,
		"updateDtoName":        c.UpdateDtoName,
		"responseDtoName":      c.ResponseDtoName,
		"listResponseDtoName":  c.ListResponseDtoName,
	}
}

func fields(names []string) []Field {
	out := make([]Field, 0, len(names))
	for _, n := range names {
		out = append(out, Field{FieldName: n})
	}
	return out
}

func fieldValues(in []Field) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, f := range in {
		out = append(out, map[string]any{"fieldName": f.FieldName})
	}
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// repositoryMethod turns GetNeighborhoodsByCity into findNeighborhoodsByCity.
func repositoryMethod(operationID string) string {
	if rest, ok := strings.CutPrefix(operationID, "Get"); ok {
		return "find" + rest
	}
	return "findAll"
}

// paramType is the first non-null JSON type of a parameter schema, or "string".
func paramType(s schema.Schema) string {
	if m := schema.MetaOf(s); m != nil {
		for _, t := range m.Types {
			if t != "null" {
				return t
			}
		}
	}
	return "string"
}
