package regionimport

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/riddle015/riverhacks/internal/geo"
	"github.com/riddle015/riverhacks/internal/regions"
)

// Property names tried in order. City of Austin exports use the
// upper-case forms.
var (
	idProps = map[regions.Kind][]string{
		regions.KindNeighborhood:    {"neighborhood_id", "id", "OBJECTID", "objectid"},
		regions.KindCouncilDistrict: {"district_id", "council_district", "district", "COUNCIL_DISTRICT", "DISTRICT_N"},
	}
	nameProps = []string{"name", "NAME", "neighname", "NEIGHNAME", "district_name"}
)

func ParseFile(path string, cfg Config) ([]Row, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, cfg)
}

// Parse reads a GeoJSON FeatureCollection of Polygon/MultiPolygon features.
// Neighborhoods without an id property are numbered by name; council
// districts must carry one.
func Parse(data []byte, cfg Config) ([]Row, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse feature collection: %w", err)
	}
	if len(fc.Features) == 0 {
		return nil, errors.New("feature collection has no features")
	}

	idKeys := idProps[cfg.Kind]
	if cfg.IDProperty != "" {
		idKeys = []string{cfg.IDProperty}
	}
	nameKeys := nameProps
	if cfg.NameProperty != "" {
		nameKeys = []string{cfg.NameProperty}
	}

	rows := make([]Row, 0, len(fc.Features))
	var unnumbered []int
	seen := map[int]int{}
	for i, f := range fc.Features {
		if f.Geometry == nil {
			return nil, fmt.Errorf("feature %d: missing geometry", i)
		}
		b, err := geo.BoundaryFromGeoJSON(geojson.NewGeometry(f.Geometry))
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		name := firstString(f.Properties, nameKeys)
		if name == "" {
			return nil, fmt.Errorf("feature %d: no name property (tried %s)", i, strings.Join(nameKeys, ", "))
		}
		row := Row{Name: name, Boundary: b}

		id, ok := firstInt(f.Properties, idKeys)
		if !ok {
			id, ok = asInt(f.ID)
		}
		switch {
		case ok:
			if prev, dup := seen[id]; dup {
				return nil, fmt.Errorf("feature %d: id %d already used by feature %d", i, id, prev)
			}
			seen[id] = i
			row.ID = id
		case cfg.Kind == regions.KindCouncilDistrict:
			return nil, fmt.Errorf("feature %d (%s): no district id property (tried %s)", i, name, strings.Join(idKeys, ", "))
		default:
			unnumbered = append(unnumbered, len(rows))
		}
		rows = append(rows, row)
	}

	if len(unnumbered) > 0 {
		sort.SliceStable(unnumbered, func(a, b int) bool {
			return rows[unnumbered[a]].Name < rows[unnumbered[b]].Name
		})
		next := 1
		for _, idx := range unnumbered {
			for {
				if _, taken := seen[next]; !taken {
					break
				}
				next++
			}
			rows[idx].ID = next
			seen[next] = idx
		}
	}

	sort.Slice(rows, func(a, b int) bool { return rows[a].ID < rows[b].ID })
	return rows, nil
}

func firstString(props geojson.Properties, keys []string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if v == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(props geojson.Properties, keys []string) (int, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if n, ok := asInt(v); ok {
				return n, true
			}
		}
	}
	return 0, false
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && n > 0 {
			return int(n), true
		}
	case int:
		return n, n > 0
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil && i > 0 {
			return i, true
		}
	}
	return 0, false
}
