// Package geo converts between coordinates, the hex EWKB geometry PostGIS
// stores, and GeoJSON geometries for map clients.
package geo

import (
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/ewkb"
	"github.com/paulmach/orb/geojson"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/riddle015/riverhacks/internal/apperr"
)

// SRID is WGS84.
const SRID = 4326

// Point is a validated WGS84 coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// NewPoint validates lon/lat and fails with InvalidGeometry when either is
// non-finite or out of range.
func NewPoint(lon, lat float64) (Point, error) {
	if math.IsNaN(lon) || math.IsInf(lon, 0) || math.IsNaN(lat) || math.IsInf(lat, 0) {
		return Point{}, apperr.InvalidGeometry("coordinates must be finite numbers")
	}
	if lon < -180 || lon > 180 {
		return Point{}, apperr.InvalidGeometry("longitude %v out of range [-180, 180]", lon)
	}
	if lat < -90 || lat > 90 {
		return Point{}, apperr.InvalidGeometry("latitude %v out of range [-90, 90]", lat)
	}
	return Point{Lon: lon, Lat: lat}, nil
}

// Encode validates the pair and returns its wire geometry (hex EWKB, SRID 4326).
func Encode(lon, lat float64) (string, error) {
	p, err := NewPoint(lon, lat)
	if err != nil {
		return "", err
	}
	return p.EWKB()
}

// Decode is the inverse of Encode.
func Decode(wire string) (lon, lat float64, err error) {
	p, err := ParsePoint(wire)
	if err != nil {
		return 0, 0, err
	}
	return p.Lon, p.Lat, nil
}

func (p Point) Orb() orb.Point { return orb.Point{p.Lon, p.Lat} }

// EWKB returns the little-endian hex EWKB encoding.
func (p Point) EWKB() (string, error) {
	s, err := ewkb.MarshalToHex(p.Orb(), SRID, binary.LittleEndian)
	if err != nil {
		return "", fmt.Errorf("encode point: %w", err)
	}
	return s, nil
}

// FeatureGeometry returns {"type":"Point","coordinates":[lon, lat]}.
func (p Point) FeatureGeometry() *geojson.Geometry {
	return geojson.NewGeometry(p.Orb())
}

// ParsePoint decodes hex or raw EWKB into a validated Point.
func ParsePoint(wire string) (Point, error) {
	g, err := unmarshalEWKB([]byte(wire))
	if err != nil {
		return Point{}, err
	}
	op, ok := g.(orb.Point)
	if !ok {
		return Point{}, apperr.InvalidGeometry("expected Point geometry, got %s", g.GeoJSONType())
	}
	return NewPoint(op[0], op[1])
}

// Scan implements sql.Scanner.
func (p *Point) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		return fmt.Errorf("scan point: null geometry")
	default:
		return fmt.Errorf("scan point: unsupported type %T", src)
	}
	g, err := unmarshalEWKB(raw)
	if err != nil {
		return err
	}
	op, ok := g.(orb.Point)
	if !ok {
		return fmt.Errorf("scan point: got %s", g.GeoJSONType())
	}
	p.Lon, p.Lat = op[0], op[1]
	return nil
}

// Value implements driver.Valuer.
func (p Point) Value() (driver.Value, error) {
	return p.EWKB()
}

// GormDBDataType picks a PostGIS geography column on Postgres, text elsewhere.
func (Point) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "geography(Point,4326)"
	}
	return "text"
}

// unmarshalEWKB accepts either the hex text form PostGIS returns for
// geography columns or raw binary.
func unmarshalEWKB(raw []byte) (orb.Geometry, error) {
	if len(raw) == 0 {
		return nil, apperr.InvalidGeometry("empty geometry")
	}
	data := raw
	if isHex(raw) {
		decoded := make([]byte, hex.DecodedLen(len(raw)))
		n, err := hex.Decode(decoded, raw)
		if err != nil {
			return nil, apperr.New(apperr.KindInvalidGeometry, "malformed geometry", err)
		}
		data = decoded[:n]
	}
	g, _, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, apperr.New(apperr.KindInvalidGeometry, "malformed geometry", err)
	}
	return g, nil
}

func isHex(b []byte) bool {
	if len(b)%2 != 0 {
		return false
	}
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
