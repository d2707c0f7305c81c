// Package geo decodes GeoJSON boundary datasets and derives the geometry
// values stored on region records.
//
// Only Polygon and MultiPolygon geometries are supported. Stored geometry is
// always MultiPolygon: a Polygon is wrapped as a one-element MultiPolygon.
package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupportedGeometry is returned for geometries other than Polygon and
// MultiPolygon, and for features without a geometry.
var ErrUnsupportedGeometry = errors.New("unsupported geometry type")

// Position is a [lon, lat] pair. Altitude values in the source are dropped.
type Position [2]float64

func (p Position) Lon() float64 { return p[0] }
func (p Position) Lat() float64 { return p[1] }

// Ring is a closed linear ring; the first ring of a polygon is exterior.
type Ring []Position

// Polygon is a list of rings, exterior first, holes after.
type Polygon []Ring

// MultiPolygon is the normalized stored geometry.
type MultiPolygon []Polygon

// Geometry is a raw GeoJSON geometry object; coordinates are decoded lazily
// once the type is known.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Feature is one GeoJSON feature with free-form properties.
type Feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   *Geometry      `json:"geometry"`
}

// FeatureCollection is the top-level boundary dataset.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// DecodeFeatureCollection reads a GeoJSON FeatureCollection.
func DecodeFeatureCollection(r io.Reader) (*FeatureCollection, error) {
	var fc FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, fmt.Errorf("decode feature collection: unexpected type %q", fc.Type)
	}
	return &fc, nil
}

// NormalizeMultiPolygon converts a Polygon or MultiPolygon geometry to
// MultiPolygon form.
func NormalizeMultiPolygon(g *Geometry) (MultiPolygon, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: missing geometry", ErrUnsupportedGeometry)
	}
	switch g.Type {
	case "Polygon":
		var poly Polygon
		if err := json.Unmarshal(g.Coordinates, &poly); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		return MultiPolygon{poly}, nil
	case "MultiPolygon":
		var mp MultiPolygon
		if err := json.Unmarshal(g.Coordinates, &mp); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGeometry, g.Type)
	}
}

// GeoJSON encodes the MultiPolygon as a GeoJSON geometry object.
func (mp MultiPolygon) GeoJSON() ([]byte, error) {
	coords := mp
	if coords == nil {
		coords = MultiPolygon{}
	}
	return json.Marshal(struct {
		Type        string       `json:"type"`
		Coordinates MultiPolygon `json:"coordinates"`
	}{Type: "MultiPolygon", Coordinates: coords})
}

// ParseMultiPolygon decodes a GeoJSON geometry object (as produced by
// PostGIS ST_AsGeoJSON) into a MultiPolygon.
func ParseMultiPolygon(data []byte) (MultiPolygon, error) {
	var g Geometry
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decode geometry: %w", err)
	}
	return NormalizeMultiPolygon(&g)
}

// StringProp returns the first non-empty string property among keys.
// Natural Earth uses "-99" for missing codes; that value is skipped.
func StringProp(props map[string]any, keys ...string) string {
	for _, k := range keys {
		v, ok := props[k].(string)
		if !ok {
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" || v == "-99" {
			continue
		}
		return v
	}
	return ""
}
