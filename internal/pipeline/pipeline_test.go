package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/mark3labs/oasgen/internal/entity"
	"github.com/mark3labs/oasgen/internal/mapping"
	"github.com/mark3labs/oasgen/internal/schema"
	"github.com/mark3labs/oasgen/internal/spec"
)

var fixedNow = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

// extract writes every file of a txtar archive under testdata into a temp
// directory and returns their paths by archive name.
func extract(t *testing.T, archive string) map[string]string {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", archive))
	require.NoError(t, err)
	dir := t.TempDir()
	paths := make(map[string]string, len(ar.Files))
	for _, f := range ar.Files {
		p := filepath.Join(dir, f.Name)
		require.NoError(t, os.WriteFile(p, f.Data, 0o644))
		paths[f.Name] = p
	}
	return paths
}

func TestRun_IsolatesDocumentsAndSchemas(t *testing.T) {
	files := extract(t, "location.txtar")
	res, err := Run(context.Background(), Options{
		Inputs: []Input{
			{Path: files["location.openapi.json"]},
			{Path: files["broken.json"]},
		},
		Rules:            entity.DefaultRules(),
		User:             "tester",
		GeneratorVersion: "1.2.3",
		RunID:            "run-1",
		Now:              fixedNow,
	})
	require.NoError(t, err)

	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken", res.Failed[0].Service)
	assert.Equal(t, spec.MalformedDocument, res.Failed[0].Code)

	require.Len(t, res.Services, 1)
	svc := res.Services[0]
	assert.Equal(t, "location", svc.Name)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "Orphan", res.Skipped[0].Schema)
	assert.Contains(t, res.Skipped[0].Reason, "Missing")

	var names []string
	for _, n := range svc.Schemas {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{
		"Location",
		"Region",
		"CreateLocationRequestContent",
		"UpdateLocationRequestContent",
		"GetLocationResponseContent",
		"CreateLocationRequest",
		"UpdateLocationRequest",
	}, names)
	assert.Equal(t, []string{"Location"}, svc.Entities)
	assert.Empty(t, svc.Tables)
}

func TestRun_UndecodableSchemaIsSkipped(t *testing.T) {
	files := extract(t, "partial.txtar")
	res, err := Run(context.Background(), Options{
		Inputs: []Input{{Path: files["tag.openapi.yaml"]}},
		Now:    fixedNow,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Failed)

	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "tag", res.Skipped[0].Service)
	assert.Equal(t, "Broken", res.Skipped[0].Schema)

	svc, ok := res.Service("tag")
	require.True(t, ok)
	var names []string
	for _, n := range svc.Schemas {
		names = append(names, n.Name)
	}
	assert.Equal(t, []string{"GetTagResponseContent", "CreateTagRequestContent", "CreateTagRequest"}, names)
	assert.Equal(t, []string{"Tag"}, svc.Entities)
}

func TestRun_SchemasAreExpandedAndStamped(t *testing.T) {
	files := extract(t, "location.txtar")
	res, err := Run(context.Background(), Options{
		Inputs:           []Input{{Service: "geo", Path: files["location.openapi.json"]}},
		User:             "tester",
		GeneratorVersion: "1.2.3",
		RunID:            "run-1",
		Now:              fixedNow,
	})
	require.NoError(t, err)
	svc, ok := res.Service("geo")
	require.True(t, ok)

	var loc, update schema.Schema
	for _, n := range svc.Schemas {
		switch n.Name {
		case "Location":
			loc = n.Schema
		case "UpdateLocationRequest":
			update = n.Schema
		}
	}
	require.NotNil(t, loc)
	meta := schema.MetaOf(loc)
	require.NotNil(t, meta)
	assert.Equal(t, schema.Draft202012, meta.Dialect)
	require.NotNil(t, meta.Provenance)
	assert.Equal(t, schema.Provenance{
		GeneratedBy:      Generator,
		GeneratedFrom:    "location.openapi.json",
		GeneratedAt:      "2025-01-02T03:04:05Z",
		GeneratedByUser:  "tester",
		GeneratorVersion: "1.2.3",
		SourceType:       "openapi_specification",
		SchemaName:       "Location",
		OriginalFile:     files["location.openapi.json"],
		RunID:            "run-1",
	}, *meta.Provenance)

	region, ok := loc.(*schema.Object).Lookup("region")
	require.True(t, ok)
	_, isRef := region.(*schema.Ref)
	assert.False(t, isRef, "component references are expanded")

	obj, ok := update.(*schema.Object)
	require.True(t, ok)
	assert.Equal(t, []string{"locationId", "body"}, schema.PropertyNames(obj))
	assert.Equal(t, []string{"locationId", "body"}, obj.Required)
	require.NotNil(t, obj.Provenance)
	assert.True(t, obj.Provenance.Composite)
	assert.Equal(t, "UpdateLocation", obj.Provenance.OperationID)
}

func TestRun_EntityContexts(t *testing.T) {
	files := extract(t, "location.txtar")
	res, err := Run(context.Background(), Options{
		Inputs: []Input{{Path: files["location.openapi.json"]}},
		Rules:  entity.DefaultRules(),
		Now:    fixedNow,
	})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)

	ctx := res.Entities[0]
	assert.Equal(t, "Location", ctx.EntityName)
	assert.Equal(t, "location", ctx.EntityVarName)
	assert.Equal(t, "location", ctx.ServiceName)
	assert.True(t, ctx.HasCreate)
	assert.True(t, ctx.HasGet)
	assert.True(t, ctx.HasUpdate)
	assert.False(t, ctx.HasDelete)
	assert.True(t, ctx.HasList)
	assert.Equal(t, []Field{{FieldName: "region"}}, ctx.UnmappedTargetFields)
	assert.Equal(t, []Field{{FieldName: "region"}, {FieldName: "regionId"}}, ctx.UnmappedUpdateFields)
	assert.True(t, ctx.HasUnmappedFields)
	assert.Equal(t, []mapping.Relation{{SourceField: "regionId", TargetField: "region"}}, ctx.RelationMappings)
	assert.Equal(t, "CreateLocationRequestContent", ctx.CreateDtoName)
	assert.Equal(t, "ListLocationsResponseContent", ctx.ListResponseDtoName)

	require.True(t, ctx.HasComplexOperations)
	require.Len(t, ctx.ComplexOperations, 1)
	op := ctx.ComplexOperations[0]
	assert.Equal(t, ComplexOperation{
		OperationID:      "GetRegionsByCountry",
		MethodName:       "getRegionsByCountry",
		ResponseType:     "GetRegionsByCountryResponseContent",
		RepositoryMethod: "findRegionsByCountry",
		HTTPMethod:       "GET",
		Path:             "/countries/{countryId}/regions",
		PathVariables:    []PathVariable{{Name: "countryId", Type: "string"}},
		HasPathVariables: true,
	}, op)

	v := ctx.Values()
	assert.Equal(t, "Location", v["entityName"])
	assert.Equal(t, false, v["hasDelete"])
	ops, ok := v["complexOperations"].([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, "findRegionsByCountry", ops[0]["repositoryMethod"])
	vars, ok := ops[0]["pathVariables"].([]map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"name": "countryId", "type": "string", "hasMore": false}, vars[0])
	assert.Equal(t, []map[string]any{{"fieldName": "region"}}, v["unmappedTargetFields"])
}

func TestRun_WithoutRulesNoComplexOperations(t *testing.T) {
	files := extract(t, "location.txtar")
	res, err := Run(context.Background(), Options{
		Inputs: []Input{{Path: files["location.openapi.json"]}},
		Now:    fixedNow,
	})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.False(t, res.Entities[0].HasComplexOperations)
	assert.Empty(t, res.Entities[0].ComplexOperations)
}

func TestRun_Duplicates(t *testing.T) {
	files := extract(t, "duplicates.txtar")
	inputs := []Input{{Path: files["city.json"]}, {Path: files["legacy.json"]}}

	res, err := Run(context.Background(), Options{Inputs: inputs, Now: fixedNow})
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "city", res.Entities[0].ServiceName)
	var kinds []string
	for _, d := range res.Diagnostics {
		kinds = append(kinds, d.Kind)
	}
	assert.Contains(t, kinds, entity.KindDuplicateOperation)

	_, err = Run(context.Background(), Options{Inputs: inputs, DuplicatePolicy: entity.Reject, Now: fixedNow})
	var dup *entity.DuplicateError
	require.True(t, errors.As(err, &dup), "got %v", err)
	assert.Equal(t, "GetCity", dup.OperationID)
}

func TestRun_MissingInputAborts(t *testing.T) {
	files := extract(t, "location.txtar")
	_, err := Run(context.Background(), Options{Inputs: []Input{
		{Path: files["location.openapi.json"]},
		{Path: filepath.Join(t.TempDir(), "nope.json")},
	}})
	require.Error(t, err)
	assert.Equal(t, spec.InputError, spec.CodeOf(err))
}

func TestRun_Defaults(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)

	files := extract(t, "duplicates.txtar")
	res, err := Run(context.Background(), Options{Inputs: []Input{{Path: files["city.json"]}}})
	require.NoError(t, err)
	assert.Len(t, res.RunID, 36)
	assert.False(t, res.GeneratedAt.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, Options{Inputs: []Input{{Path: files["city.json"]}}})
	require.ErrorIs(t, err, context.Canceled)
}
