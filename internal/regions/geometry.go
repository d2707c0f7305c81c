package regions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Boundary is a MultiPolygon column stored as PostGIS geometry. Writes go
// through ST_GeomFromGeoJSON; reads must select ST_AsGeoJSON(geometry).
type Boundary geo.MultiPolygon

func (Boundary) GormDataType() string { return "geometry(MultiPolygon,4326)" }

func (b Boundary) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	if len(b) == 0 {
		return clause.Expr{SQL: "NULL"}
	}
	data, err := geo.MultiPolygon(b).GeoJSON()
	if err != nil {
		_ = db.AddError(fmt.Errorf("encode boundary: %w", err))
		return clause.Expr{SQL: "NULL"}
	}
	return clause.Expr{SQL: "ST_SetSRID(ST_GeomFromGeoJSON(?), 4326)", Vars: []any{string(data)}}
}

func (b *Boundary) Scan(value any) error {
	data, ok, err := geoJSONBytes(value)
	if err != nil || !ok {
		*b = nil
		return err
	}
	mp, err := geo.ParseMultiPolygon(data)
	if err != nil {
		return err
	}
	*b = Boundary(mp)
	return nil
}

func (b Boundary) MarshalJSON() ([]byte, error) {
	if len(b) == 0 {
		return []byte("null"), nil
	}
	return geo.MultiPolygon(b).GeoJSON()
}

// Point is the centroid column, stored as PostGIS Point geometry.
type Point geo.Position

func (Point) GormDataType() string { return "geometry(Point,4326)" }

func (p Point) GormValue(ctx context.Context, db *gorm.DB) clause.Expr {
	return clause.Expr{SQL: "ST_SetSRID(ST_MakePoint(?, ?), 4326)", Vars: []any{p[0], p[1]}}
}

func (p *Point) Scan(value any) error {
	data, ok, err := geoJSONBytes(value)
	if err != nil || !ok {
		*p = Point{}
		return err
	}
	var g struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(data, &g); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	if g.Type != "Point" {
		return fmt.Errorf("%w: %q", geo.ErrUnsupportedGeometry, g.Type)
	}
	var pos geo.Position
	if err := json.Unmarshal(g.Coordinates, &pos); err != nil {
		return fmt.Errorf("decode point coordinates: %w", err)
	}
	*p = Point(pos)
	return nil
}

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": "Point", "coordinates": geo.Position(p)})
}

func (p Point) Lon() float64 { return p[0] }
func (p Point) Lat() float64 { return p[1] }

func geoJSONBytes(value any) ([]byte, bool, error) {
	var data []byte
	switch v := value.(type) {
	case nil:
		return nil, false, nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return nil, false, fmt.Errorf("scan geometry: unsupported type %T", value)
	}
	if len(data) == 0 || data[0] != '{' {
		return nil, false, fmt.Errorf("scan geometry: expected GeoJSON, select the column with ST_AsGeoJSON")
	}
	return data, true, nil
}
