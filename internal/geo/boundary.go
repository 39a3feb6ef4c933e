package geo

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Boundary is a region polygon stored as MultiPolygon. Single polygons are
// promoted on scan.
type Boundary orb.MultiPolygon

// MultiPolygon returns b as an orb geometry.
func (b Boundary) MultiPolygon() orb.MultiPolygon { return orb.MultiPolygon(b) }

// Contains reports whether p is inside the boundary or on any of its rings,
// hole rings included.
func (b Boundary) Contains(p Point) bool {
	if len(b) == 0 {
		return false
	}
	pt := p.Orb()
	if !b.MultiPolygon().Bound().Contains(pt) {
		return false
	}
	for _, poly := range b {
		if polygonCovers(poly, pt) {
			return true
		}
	}
	return false
}

func polygonCovers(poly orb.Polygon, pt orb.Point) bool {
	if len(poly) == 0 || !planar.RingContains(poly[0], pt) {
		return false
	}
	for _, hole := range poly[1:] {
		if planar.RingContains(hole, pt) && !onRing(hole, pt) {
			return false
		}
	}
	return true
}

// edgeEpsilon is the collinearity tolerance in squared degrees.
const edgeEpsilon = 1e-12

func onRing(r orb.Ring, pt orb.Point) bool {
	for i := 1; i < len(r); i++ {
		if onSegment(r[i-1], r[i], pt) {
			return true
		}
	}
	return false
}

func onSegment(a, b, p orb.Point) bool {
	cross := (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
	if math.Abs(cross) > edgeEpsilon {
		return false
	}
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

func (b *Boundary) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*b = nil
		return nil
	default:
		return fmt.Errorf("scan boundary: unsupported type %T", src)
	}
	g, err := unmarshalEWKB(raw)
	if err != nil {
		return err
	}
	mp, err := asMultiPolygon(g)
	if err != nil {
		return err
	}
	*b = Boundary(mp)
	return nil
}

func (b Boundary) Value() (driver.Value, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return ewkb.MarshalToHex(b.MultiPolygon(), SRID, binary.LittleEndian)
}

// GormDataType marks the column as a scalar so schema parsing does not
// descend into the polygon slices.
func (Boundary) GormDataType() string { return "geometry" }

func (Boundary) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "geography(MultiPolygon,4326)"
	}
	return "text"
}

// BoundaryFromGeoJSON accepts a Polygon or MultiPolygon GeoJSON geometry.
func BoundaryFromGeoJSON(g *geojson.Geometry) (Boundary, error) {
	if g == nil {
		return nil, fmt.Errorf("missing geometry")
	}
	mp, err := asMultiPolygon(g.Geometry())
	if err != nil {
		return nil, err
	}
	return Boundary(mp), nil
}

func asMultiPolygon(g orb.Geometry) (orb.MultiPolygon, error) {
	switch v := g.(type) {
	case orb.MultiPolygon:
		return v, nil
	case orb.Polygon:
		return orb.MultiPolygon{v}, nil
	default:
		return nil, fmt.Errorf("expected Polygon or MultiPolygon, got %s", g.GeoJSONType())
	}
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(a, b Point) float64 {
	return geo.DistanceHaversine(a.Orb(), b.Orb())
}

// DistanceMiles converts DistanceMeters to statute miles.
func DistanceMiles(a, b Point) float64 {
	return DistanceMeters(a, b) / 1609.344
}

// BoundAround returns the lon/lat box that contains every point within meters of p.
func BoundAround(p Point, meters float64) orb.Bound {
	return geo.NewBoundAroundPoint(p.Orb(), meters)
}
