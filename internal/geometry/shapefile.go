package geometry

import (
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// ReadShapefile merges every polygon record of an ESRI shapefile into one
// region. Clockwise parts are shells and counter-clockwise parts are holes
// of the smallest shell that contains them. Non-polygon records are skipped.
func ReadShapefile(path string) (*Region, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	mp := geom.NewMultiPolygon(geom.XY)
	var skipped int

	for reader.Next() {
		_, shape := reader.Shape()
		p, ok := shape.(*shp.Polygon)
		if !ok {
			skipped++
			continue
		}
		for _, poly := range recordPolygons(p) {
			if err := mp.Push(poly); err != nil {
				zap.L().Debug("geometry: skipping malformed polygon", zap.Error(err))
			}
		}
	}

	if skipped > 0 {
		zap.L().Debug("geometry: skipped non-polygon shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	switch mp.NumPolygons() {
	case 0:
		return nil, eris.Wrapf(ErrEmpty, "shapefile %s", path)
	case 1:
		return NewRegion(mp.Polygon(0))
	default:
		return NewRegion(mp)
	}
}

type shell struct {
	ring  []float64
	area  float64
	holes [][]float64
}

// recordPolygons assembles the parts of one shapefile record. Rings come out
// in GeoJSON orientation: counter-clockwise shells, clockwise holes. A hole
// that no shell contains is kept as a shell of its own.
func recordPolygons(p *shp.Polygon) []*geom.Polygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	var shells []*shell
	var holes [][]float64
	for _, ring := range recordRings(p) {
		// Shapefile shells are clockwise, which xy.SignedArea reports as positive.
		switch area := xy.SignedArea(geom.XY, ring); {
		case area > 0:
			shells = append(shells, &shell{ring: ring, area: area})
		case area < 0:
			holes = append(holes, ring)
		default:
			zap.L().Debug("geometry: skipping degenerate ring", zap.Int("coords", len(ring)/2))
		}
	}

	for _, hole := range holes {
		if s := enclosingShell(shells, hole); s != nil {
			s.holes = append(s.holes, hole)
			continue
		}
		shells = append(shells, &shell{ring: hole, area: -xy.SignedArea(geom.XY, hole)})
	}

	polys := make([]*geom.Polygon, 0, len(shells))
	for _, s := range shells {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, oriented(s.ring, false))); err != nil {
			zap.L().Debug("geometry: skipping malformed shell", zap.Error(err))
			continue
		}
		for _, h := range s.holes {
			if err := poly.Push(geom.NewLinearRingFlat(geom.XY, oriented(h, true))); err != nil {
				zap.L().Debug("geometry: skipping malformed hole", zap.Error(err))
			}
		}
		polys = append(polys, poly)
	}
	return polys
}

// recordRings splits a record into closed flat XY rings of at least four
// coordinates.
func recordRings(p *shp.Polygon) [][]float64 {
	rings := make([][]float64, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || start >= end || end > int32(len(p.Points)) {
			continue
		}

		flat := make([]float64, 0, 2*(end-start+1))
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}
		if n := len(flat); flat[0] != flat[n-2] || flat[1] != flat[n-1] {
			flat = append(flat, flat[0], flat[1])
		}
		if len(flat) < 8 {
			zap.L().Debug("geometry: skipping short ring", zap.Int32("part", i))
			continue
		}
		rings = append(rings, flat)
	}
	return rings
}

// enclosingShell returns the smallest shell containing the hole's first
// vertex, or nil.
func enclosingShell(shells []*shell, hole []float64) *shell {
	at := geom.Coord{hole[0], hole[1]}
	var best *shell
	for _, s := range shells {
		if !xy.IsPointInRing(geom.XY, at, s.ring) {
			continue
		}
		if best == nil || s.area < best.area {
			best = s
		}
	}
	return best
}

// oriented returns ring wound clockwise when clockwise is true and
// counter-clockwise otherwise.
func oriented(ring []float64, clockwise bool) []float64 {
	if (xy.SignedArea(geom.XY, ring) > 0) == clockwise {
		return ring
	}
	out := make([]float64, len(ring))
	for i, j := 0, len(ring)-2; j >= 0; i, j = i+2, j-2 {
		out[i], out[i+1] = ring[j], ring[j+1]
	}
	return out
}
