package entity

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/oasgen/internal/spec"
)

func ops(service string, ids ...string) []spec.Operation {
	out := make([]spec.Operation, len(ids))
	for i, id := range ids {
		out[i] = spec.Operation{ID: id, Method: spec.GET, Service: service}
	}
	return out
}

func complexIDs(e *Entity) []string {
	var ids []string
	for _, op := range e.Complex {
		ids = append(ids, op.ID)
	}
	return ids
}

func TestUniverse(t *testing.T) {
	t.Parallel()
	e := NewEngine(nil)
	got := e.Universe([]string{
		"GetCityResponseContent",
		"CreateCityRequestContent",
		"City",
		"ListCitysResponseContent",
		"RegionResponse",
		"GetCityResponse",
		"ResponseContent",
	})
	if diff := cmp.Diff([]string{"City", "ListCitys", "Region"}, got); diff != "" {
		t.Fatalf("universe (-want +got):\n%s", diff)
	}
}

func TestInfer_CRUDAndConfiguredComplexRule(t *testing.T) {
	t.Parallel()
	e := NewEngine([]ComplexRule{{Anchor: "City", Keywords: []string{"Cities"}}})
	in, err := e.Infer(
		ops("city", "CreateCity", "GetCity", "UpdateCity", "DeleteCity", "ListCitys", "GetCitiesByRegion"),
		[]string{"City"},
	)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	city, ok := in.Entity("City")
	if !ok {
		t.Fatalf("City not inferred")
	}
	want := map[Slot]string{
		SlotCreate: "CreateCity",
		SlotGet:    "GetCity",
		SlotUpdate: "UpdateCity",
		SlotDelete: "DeleteCity",
		SlotList:   "ListCitys",
	}
	for _, s := range Slots {
		op := city.CRUD.Lookup(s)
		if op == nil || op.ID != want[s] {
			t.Errorf("slot %s: got %v want %s", s, op, want[s])
		}
	}
	if diff := cmp.Diff([]string{"GetCitiesByRegion"}, complexIDs(city)); diff != "" {
		t.Errorf("complex (-want +got):\n%s", diff)
	}
	if city.Service != "city" {
		t.Errorf("service: got %q", city.Service)
	}
	if len(in.Diagnostics) != 0 {
		t.Errorf("unexpected diagnostics: %+v", in.Diagnostics)
	}
}

func TestInfer_WithoutRulePluralDoesNotMatch(t *testing.T) {
	t.Parallel()
	in, err := NewEngine(nil).Infer(
		ops("city", "GetCity", "GetCitiesByRegion"),
		[]string{"City"},
	)
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	city, _ := in.Entity("City")
	if len(city.Complex) != 0 {
		t.Fatalf("GetCitiesByRegion must not match City without a rule, got %v", complexIDs(city))
	}
}

func TestInfer_DefaultLocationRule(t *testing.T) {
	t.Parallel()
	all := ops("location",
		"GetLocation",
		"GetRegionsByCountry",
		"GetCitiesByRegion",
		"GetNeighborhoodsByCity",
		"GetRegion",
		"SearchCitiesByName",
		"GetLocationByCoordinates",
	)
	in, err := NewEngine(DefaultRules()).Infer(all, []string{"Location", "Region", "Country"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	loc, _ := in.Entity("Location")
	want := []string{"GetRegionsByCountry", "GetCitiesByRegion", "GetNeighborhoodsByCity", "GetLocationByCoordinates"}
	if diff := cmp.Diff(want, complexIDs(loc)); diff != "" {
		t.Errorf("Location complex (-want +got):\n%s", diff)
	}
	region, _ := in.Entity("Region")
	if diff := cmp.Diff([]string{"GetRegionsByCountry", "GetCitiesByRegion"}, complexIDs(region)); diff != "" {
		t.Errorf("Region complex (-want +got):\n%s", diff)
	}
	if _, ok := in.Entity("Country"); ok {
		t.Errorf("Country has no CRUD operations and should be dropped")
	}
}

func TestInfer_ExactMatchOnly(t *testing.T) {
	t.Parallel()
	in, err := NewEngine(nil).Infer(ops("x", "CreateCityV2", "ListCities", "GetCity"), []string{"City"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	city, _ := in.Entity("City")
	if city.CRUD.Create != nil || city.CRUD.List != nil {
		t.Fatalf("fuzzy matches must not fill slots: %+v", city.CRUD)
	}
}

func TestInfer_DuplicatesWarnFirstWins(t *testing.T) {
	t.Parallel()
	all := append(ops("city", "GetCity"), ops("legacy", "GetCity")...)
	in, err := NewEngine(nil).Infer(all, []string{"City"})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	city, _ := in.Entity("City")
	if city.CRUD.Get.Service != "city" {
		t.Errorf("first declaration should win, got service %q", city.CRUD.Get.Service)
	}
	var kinds []string
	for _, d := range in.Diagnostics {
		kinds = append(kinds, d.Kind)
		if d.Severity != SeverityWarning {
			t.Errorf("severity: got %s", d.Severity)
		}
	}
	if diff := cmp.Diff([]string{KindDuplicateOperation, KindDuplicateSlot}, kinds); diff != "" {
		t.Errorf("diagnostics (-want +got):\n%s", diff)
	}
}

func TestInfer_DuplicatesRejected(t *testing.T) {
	t.Parallel()
	all := append(ops("city", "GetCity"), ops("legacy", "GetCity")...)
	_, err := NewEngine(nil, WithDuplicatePolicy(Reject)).Infer(all, []string{"City"})
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if diff := cmp.Diff([]string{"city", "legacy"}, dup.Services); diff != "" {
		t.Errorf("services (-want +got):\n%s", diff)
	}
}

func TestParseRuleAndPolicy(t *testing.T) {
	t.Parallel()
	r, ok := ParseRule("City = Cities, Towns")
	if !ok {
		t.Fatalf("rule should parse")
	}
	if diff := cmp.Diff(ComplexRule{Anchor: "City", Keywords: []string{"Cities", "Towns"}}, r); diff != "" {
		t.Errorf("rule (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"City", "=Cities", "City="} {
		if _, ok := ParseRule(bad); ok {
			t.Errorf("%q should not parse", bad)
		}
	}
	if p, err := ParseDuplicatePolicy("REJECT"); err != nil || p != Reject {
		t.Errorf("reject: %v %v", p, err)
	}
	if _, err := ParseDuplicatePolicy("explode"); err == nil {
		t.Errorf("unknown policy should fail")
	}
}
