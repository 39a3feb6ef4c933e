package regionimport

import (
	"strings"
	"testing"

	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/regions"
)

const square = `[[[-97.75,30.26],[-97.73,30.26],[-97.73,30.28],[-97.75,30.28],[-97.75,30.26]]]`

func feature(props, geometry string) string {
	return `{"type":"Feature","properties":` + props + `,"geometry":` + geometry + `}`
}

func collection(features ...string) []byte {
	return []byte(`{"type":"FeatureCollection","features":[` + strings.Join(features, ",") + `]}`)
}

func TestParse_Neighborhoods(t *testing.T) {
	data := collection(
		feature(`{"name":"Zilker"}`, `{"type":"Polygon","coordinates":`+square+`}`),
		feature(`{"neighborhood_id":1,"name":"Downtown"}`, `{"type":"MultiPolygon","coordinates":[`+square+`]}`),
		feature(`{"NEIGHNAME":"Bouldin Creek"}`, `{"type":"Polygon","coordinates":`+square+`}`),
	)
	rows, err := Parse(data, Config{Kind: regions.KindNeighborhood})
	if err != nil {
		t.Fatal(err)
	}
	got := map[int]string{}
	for _, r := range rows {
		got[r.ID] = r.Name
	}
	// unnumbered features get free ids in name order
	want := map[int]string{1: "Downtown", 2: "Bouldin Creek", 3: "Zilker"}
	for id, name := range want {
		if got[id] != name {
			t.Errorf("id %d: expected %q, got %q (all: %v)", id, name, got[id], got)
		}
	}
	if rows[0].ID != 1 {
		t.Error("rows should be sorted by id")
	}
	if !rows[0].Boundary.Contains(geo.Point{Lon: -97.74, Lat: 30.27}) {
		t.Error("boundary should contain its center")
	}
}

func TestParse_CouncilDistricts(t *testing.T) {
	data := collection(
		feature(`{"COUNCIL_DISTRICT":"9","name":"District 9"}`, `{"type":"Polygon","coordinates":`+square+`}`),
	)
	rows, err := Parse(data, Config{Kind: regions.KindCouncilDistrict})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].ID != 9 {
		t.Errorf("unexpected rows %+v", rows)
	}

	data = collection(feature(`{"name":"District ?"}`, `{"type":"Polygon","coordinates":`+square+`}`))
	if _, err := Parse(data, Config{Kind: regions.KindCouncilDistrict}); err == nil {
		t.Error("districts without ids should be rejected")
	}
}

func TestParse_PropertyOverrides(t *testing.T) {
	data := collection(feature(`{"hood_no":12,"label":"Hyde Park"}`, `{"type":"Polygon","coordinates":`+square+`}`))
	rows, err := Parse(data, Config{Kind: regions.KindNeighborhood, IDProperty: "hood_no", NameProperty: "label"})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0].ID != 12 || rows[0].Name != "Hyde Park" {
		t.Errorf("unexpected row %+v", rows[0])
	}
}

func TestParse_Errors(t *testing.T) {
	cases := map[string][]byte{
		"not json":     []byte(`{`),
		"empty":        collection(),
		"point":        collection(feature(`{"id":1,"name":"x"}`, `{"type":"Point","coordinates":[-97.7,30.2]}`)),
		"no geometry":  collection(feature(`{"id":1,"name":"x"}`, `null`)),
		"no name":      collection(feature(`{"id":1}`, `{"type":"Polygon","coordinates":`+square+`}`)),
		"duplicate id": collection(feature(`{"id":1,"name":"a"}`, `{"type":"Polygon","coordinates":`+square+`}`), feature(`{"id":1,"name":"b"}`, `{"type":"Polygon","coordinates":`+square+`}`)),
	}
	for name, data := range cases {
		if _, err := Parse(data, Config{Kind: regions.KindNeighborhood}); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
