// Package geometry decodes user-supplied regions into go-geom polygons.
package geometry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var (
	// ErrMissing is returned when no geometry was supplied.
	ErrMissing = eris.New("geometry: missing")
	// ErrUnsupported is returned for geometry types other than Polygon and MultiPolygon.
	ErrUnsupported = eris.New("geometry: unsupported type")
	// ErrEmpty is returned for polygons without any coordinates.
	ErrEmpty = eris.New("geometry: no coordinates")
)

// Region is a Polygon or MultiPolygon in WGS84 longitude/latitude.
type Region struct {
	g geom.T
}

// NewRegion wraps g, which must be a non-empty Polygon or MultiPolygon.
func NewRegion(g geom.T) (*Region, error) {
	switch t := g.(type) {
	case *geom.Polygon:
		if t == nil || t.NumLinearRings() == 0 {
			return nil, ErrEmpty
		}
	case *geom.MultiPolygon:
		if t == nil || t.NumPolygons() == 0 {
			return nil, ErrEmpty
		}
	case nil:
		return nil, ErrMissing
	default:
		return nil, eris.Wrapf(ErrUnsupported, "got %T", g)
	}
	return &Region{g: g}, nil
}

// ParseGeoJSON decodes a GeoJSON geometry object. A Feature wrapping a
// geometry is unwrapped.
func ParseGeoJSON(data []byte) (*Region, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ErrMissing
	}

	var envelope struct {
		Type     string          `json:"type"`
		Geometry json.RawMessage `json:"geometry"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}
	if envelope.Type == "Feature" {
		return ParseGeoJSON(envelope.Geometry)
	}

	var g geom.T
	if err := geojson.Unmarshal(trimmed, &g); err != nil {
		return nil, eris.Wrap(err, "geometry: decode geojson")
	}
	return NewRegion(g)
}

// Geom returns the underlying geometry.
func (r *Region) Geom() geom.T {
	return r.g
}

// Type returns the GeoJSON type name.
func (r *Region) Type() string {
	if _, ok := r.g.(*geom.MultiPolygon); ok {
		return "MultiPolygon"
	}
	return "Polygon"
}

// Coordinates returns the GeoJSON coordinate array: [][]geom.Coord for a
// Polygon, [][][]geom.Coord for a MultiPolygon.
func (r *Region) Coordinates() any {
	switch t := r.g.(type) {
	case *geom.MultiPolygon:
		return t.Coords()
	case *geom.Polygon:
		return t.Coords()
	default:
		return nil
	}
}

// NumVertices counts coordinates across all rings.
func (r *Region) NumVertices() int {
	return len(r.g.FlatCoords()) / r.g.Stride()
}

// Bounds returns [minX, minY, maxX, maxY].
func (r *Region) Bounds() [4]float64 {
	b := r.g.Bounds()
	return [4]float64{b.Min(0), b.Min(1), b.Max(0), b.Max(1)}
}

// MarshalJSON encodes the region as a GeoJSON geometry.
func (r *Region) MarshalJSON() ([]byte, error) {
	data, err := geojson.Marshal(r.g)
	if err != nil {
		return nil, eris.Wrap(err, "geometry: encode geojson")
	}
	return data, nil
}

// Fingerprint is a stable SHA-256 hex digest of the GeoJSON encoding, used
// as a cache key for identical regions.
func (r *Region) Fingerprint() (string, error) {
	data, err := r.MarshalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
