package shape

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
)

// LoadShapefile reads every record from an ESRI shapefile. Attribute
// values arrive as dBase strings; they are trimmed and keyed by the field
// names declared in the .dbf header.
func LoadShapefile(path string) ([]Feature, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shape: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.TrimRight(f.String(), "\x00")
	}

	var features []Feature
	var skipped int
	for reader.Next() {
		_, s := reader.Shape()

		props := make(map[string]any, len(names))
		for i, name := range names {
			val := strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
			if val != "" {
				props[name] = val
			}
		}

		g := shapeGeometry(s)
		if g == nil {
			skipped++
		}
		features = append(features, Feature{Properties: props, Geometry: g})
	}

	if skipped > 0 {
		zap.L().Debug("shape: records without decodable geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return features, nil
}

// shapeGeometry converts a shapefile shape to a geometry. Only polygon
// records carry boundaries we can render; anything else yields nil.
func shapeGeometry(s shp.Shape) geom.T {
	p, ok := s.(*shp.Polygon)
	if !ok || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	coords := make([][][]geom.Coord, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		ring := make([]geom.Coord, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, geom.Coord{p.Points[j].X, p.Points[j].Y})
		}
		// Each shapefile part becomes its own single-ring polygon; hole
		// detection by winding order is not needed for district fills.
		coords = append(coords, [][]geom.Coord{ring})
	}

	mp := geom.NewMultiPolygon(geom.XY)
	if err := mp.SetCoords(coords); err != nil {
		return nil
	}
	return mp
}
