// Package shape loads district boundary features from GeoJSON files and
// ESRI shapefiles into a common form the map endpoints can join against.
package shape

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature is one boundary polygon with its attribute map. Geometry may be
// nil for records whose shape could not be decoded; such features still
// participate in attribute lookups.
type Feature struct {
	Properties map[string]any
	Geometry   geom.T
}

// LoadGeoJSON reads a FeatureCollection from path.
func LoadGeoJSON(path string) ([]Feature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "shape: read %s", path)
	}
	return ParseGeoJSON(data)
}

// ParseGeoJSON decodes a FeatureCollection document.
func ParseGeoJSON(data []byte) ([]Feature, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "shape: decode feature collection")
	}

	features := make([]Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		props := f.Properties
		if props == nil {
			props = map[string]any{}
		}
		features = append(features, Feature{
			Properties: props,
			Geometry:   f.Geometry,
		})
	}
	return features, nil
}

// MarshalFeatureCollection renders features back to a GeoJSON
// FeatureCollection document.
func MarshalFeatureCollection(features []Feature) ([]byte, error) {
	fc := geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(features)),
	}
	for _, f := range features {
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry:   f.Geometry,
			Properties: f.Properties,
		})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return nil, eris.Wrap(err, "shape: encode feature collection")
	}
	return data, nil
}
