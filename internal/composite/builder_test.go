package composite

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/oasgen/internal/schema"
	"github.com/mark3labs/oasgen/internal/spec"
)

func str() schema.Schema { return &schema.Scalar{Meta: schema.Meta{Types: []string{"string"}}} }

func components(t *testing.T) map[string]schema.Schema {
	t.Helper()
	set := map[string]schema.Schema{}
	for name, src := range map[string]string{
		"CreateCityRequestContent":    `{"type": "object", "properties": {"name": {"type": "string"}, "regionId": {"type": "string", "nullable": true}}}`,
		"CreateCountryRequestContent": `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`,
	} {
		s, err := schema.Parse([]byte(src))
		if err != nil {
			t.Fatalf("parse %s: %v", name, err)
		}
		set[name] = s
	}
	return set
}

func createCity() spec.Operation {
	return spec.Operation{
		ID:     "CreateCity",
		Method: spec.POST,
		Path:   "/countries/{countryId}/cities",
		Parameters: []spec.Parameter{
			{Name: "countryId", In: "path", Required: true, Schema: str()},
			{Name: "dryRun", In: "query"},
		},
		RequestBody: &spec.RequestBody{Content: []spec.Media{
			{MediaType: "application/json", Schema: schema.NewRef("CreateCityRequestContent")},
		}},
	}
}

func createCountry() spec.Operation {
	return spec.Operation{
		ID:     "CreateCountry",
		Method: spec.POST,
		Path:   "/countries",
		RequestBody: &spec.RequestBody{Content: []spec.Media{
			{MediaType: "application/json", Schema: schema.NewRef("CreateCountryRequestContent")},
		}},
	}
}

func fixedClock() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

func TestAssemble_WrapsBodyWhenPathParametersExist(t *testing.T) {
	t.Parallel()
	b := NewBuilder(components(t))

	got := b.assemble(createCity(), "CreateCityRequest")
	want := &schema.Object{
		Meta: schema.Meta{Types: []string{"object"}},
		Properties: []schema.Property{
			{Name: "countryId", Schema: str()},
			{Name: "body", Schema: &schema.Ref{Pointer: "#/components/schemas/CreateCityRequestContent", Title: "body"}},
		},
		Required: []string{"countryId", "body"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("composite (-want +got):\n%s", diff)
	}
}

func TestAssemble_BareReferenceWithoutPathParameters(t *testing.T) {
	t.Parallel()
	b := NewBuilder(components(t))

	got := b.assemble(createCountry(), "CreateCountryRequest")
	want := &schema.Ref{Pointer: "#/components/schemas/CreateCountryRequestContent", Title: "CreateCountryRequest"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("composite (-want +got):\n%s", diff)
	}
}

func TestBuild_ExpandsWrappedBody(t *testing.T) {
	t.Parallel()
	b := NewBuilder(components(t), WithClock(fixedClock), WithProvenance(schema.Provenance{GeneratedBy: "oasgen", RunID: "run-1"}))

	c, err := b.Build(createCity())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if c.Name != "CreateCityRequest" {
		t.Errorf("name: got %q", c.Name)
	}
	obj, ok := c.Schema.(*schema.Object)
	if !ok {
		t.Fatalf("expected *schema.Object, got %T", c.Schema)
	}
	if obj.Title != "CreateCityRequest" || obj.Dialect != schema.Draft202012 {
		t.Errorf("title/dialect: %q %q", obj.Title, obj.Dialect)
	}
	if diff := cmp.Diff([]string{"countryId", "body"}, schema.PropertyNames(obj)); diff != "" {
		t.Errorf("properties (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"countryId", "body"}, obj.Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
	body, _ := obj.Lookup("body")
	bodyObj, ok := body.(*schema.Object)
	if !ok {
		t.Fatalf("body should be expanded, got %T", body)
	}
	if bodyObj.Title != "body" || bodyObj.Dialect != "" {
		t.Errorf("body title/dialect: %q %q", bodyObj.Title, bodyObj.Dialect)
	}
	regionID, _ := bodyObj.Lookup("regionId")
	if diff := cmp.Diff([]string{"string", "null"}, schema.MetaOf(regionID).Types); diff != "" {
		t.Errorf("nested nullable not normalized (-want +got):\n%s", diff)
	}

	want := &schema.Provenance{
		GeneratedBy: "oasgen",
		GeneratedAt: "2024-05-01T12:00:00Z",
		SchemaName:  "CreateCityRequest",
		OperationID: "CreateCity",
		Composite:   true,
		RunID:       "run-1",
	}
	if diff := cmp.Diff(want, obj.Provenance); diff != "" {
		t.Errorf("provenance (-want +got):\n%s", diff)
	}
}

func TestBuild_BareReferenceIsExpandedUnderRequestTitle(t *testing.T) {
	t.Parallel()
	c, err := NewBuilder(components(t)).Build(createCountry())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	obj, ok := c.Schema.(*schema.Object)
	if !ok {
		t.Fatalf("expected expanded object, got %T", c.Schema)
	}
	if obj.Title != "CreateCountryRequest" {
		t.Errorf("title: got %q", obj.Title)
	}
	if diff := cmp.Diff([]string{"name"}, obj.Required); diff != "" {
		t.Errorf("target keywords should carry over (-want +got):\n%s", diff)
	}
}

func TestBuild_NotApplicable(t *testing.T) {
	t.Parallel()
	b := NewBuilder(components(t))
	cases := []spec.Operation{
		{ID: "GetCity", Method: spec.GET, Parameters: []spec.Parameter{{Name: "cityId", In: "path", Required: true}}},
		{ID: "DeleteCity", Method: spec.POST, Parameters: []spec.Parameter{{Name: "cityId", In: "path", Required: true}}},
		{ID: "CreateThing", Method: spec.PATCH, Parameters: []spec.Parameter{{Name: "id", In: "path", Required: true}}},
		{ID: "CreateNothing", Method: spec.POST},
	}
	for _, op := range cases {
		c, err := b.Build(op)
		if err != nil || c != nil {
			t.Errorf("%s: expected (nil, nil), got (%v, %v)", op.ID, c, err)
		}
	}
}

func TestBuild_PathParametersWithoutBody(t *testing.T) {
	t.Parallel()
	op := spec.Operation{
		ID:         "UpdateCityStatus",
		Method:     spec.PUT,
		Parameters: []spec.Parameter{{Name: "cityId", In: "path", Required: true}},
	}
	c, err := NewBuilder(nil).Build(op)
	if err != nil || c != nil {
		t.Fatalf("expected (nil, nil) without a request body, got (%v, %v)", c, err)
	}
}

func TestBuild_UntypedPathParameterDefaultsToString(t *testing.T) {
	t.Parallel()
	op := createCity()
	op.Parameters[0].Schema = nil
	c, err := NewBuilder(components(t)).Build(op)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	countryID, _ := c.Schema.(*schema.Object).Lookup("countryId")
	if !schema.MetaOf(countryID).HasType("string") || schema.TitleOf(countryID) != "id" {
		t.Errorf("untyped path parameter should default to a string titled id: %#v", countryID)
	}
}

func inlineTagBody() *spec.RequestBody {
	return &spec.RequestBody{Content: []spec.Media{{
		MediaType: "application/json",
		Schema: &schema.Object{
			Meta:       schema.Meta{Types: []string{"object"}},
			Properties: []schema.Property{{Name: "name", Schema: str()}},
		},
	}}}
}

func TestBuild_InlineBodyWithoutPathParameters(t *testing.T) {
	t.Parallel()
	op := spec.Operation{ID: "CreateTag", Method: spec.POST, Path: "/tags", RequestBody: inlineTagBody()}
	c, err := NewBuilder(nil).Build(op)
	if err != nil || c != nil {
		t.Fatalf("inline bodies are not composed, got (%v, %v)", c, err)
	}
}

func TestBuild_InlineBodyWithPathParameters(t *testing.T) {
	t.Parallel()
	op := spec.Operation{
		ID:          "UpdateTag",
		Method:      spec.PUT,
		Path:        "/tags/{tagId}",
		Parameters:  []spec.Parameter{{Name: "tagId", In: "path", Required: true, Schema: str()}},
		RequestBody: inlineTagBody(),
	}
	c, err := NewBuilder(nil).Build(op)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"tagId"}, schema.PropertyNames(c.Schema)); diff != "" {
		t.Errorf("properties (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"tagId"}, c.Schema.(*schema.Object).Required); diff != "" {
		t.Errorf("required (-want +got):\n%s", diff)
	}
}

func TestBuild_UnresolvedBodyPolicies(t *testing.T) {
	t.Parallel()
	op := createCountry()
	op.RequestBody.Content[0].Schema = schema.NewRef("Missing")

	c, err := NewBuilder(nil).Build(op)
	if err != nil {
		t.Fatalf("lenient build: %v", err)
	}
	if ref, ok := c.Schema.(*schema.Ref); !ok || ref.Title != "CreateCountryRequest" {
		t.Errorf("lenient policy should keep the titled reference, got %#v", c.Schema)
	}

	_, err = NewBuilder(nil, WithPolicy(schema.Skip)).Build(op)
	if !errors.Is(err, ErrSkipped) {
		t.Errorf("skip policy: expected ErrSkipped, got %v", err)
	}

	_, err = NewBuilder(nil, WithPolicy(schema.Strict)).Build(op)
	var unresolved *schema.UnresolvedReferenceError
	if !errors.As(err, &unresolved) {
		t.Errorf("strict policy: expected UnresolvedReferenceError, got %v", err)
	}
}

func TestBuildAll_CollectsFailures(t *testing.T) {
	t.Parallel()
	broken := createCountry()
	broken.ID = "UpdateCountry"
	broken.Method = spec.PUT
	broken.RequestBody = &spec.RequestBody{Content: []spec.Media{{MediaType: "application/json", Schema: schema.NewRef("Missing")}}}

	got, failures := NewBuilder(components(t), WithPolicy(schema.Strict)).BuildAll([]spec.Operation{
		createCity(), {ID: "ListCitys", Method: spec.GET}, broken, createCountry(),
	})
	var names []string
	for _, c := range got {
		names = append(names, c.Name)
	}
	if diff := cmp.Diff([]string{"CreateCityRequest", "CreateCountryRequest"}, names); diff != "" {
		t.Errorf("built (-want +got):\n%s", diff)
	}
	if len(failures) != 1 || failures[0].OperationID != "UpdateCountry" {
		t.Fatalf("failures: %+v", failures)
	}
}
