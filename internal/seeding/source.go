package seeding

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/EmpoweredVote/cii-backend/internal/geo"
	"github.com/EmpoweredVote/cii-backend/internal/sources"
)

const sourceBoundaries = "boundaries"

// BoundarySource yields a boundary dataset.
type BoundarySource interface {
	Fetch(ctx context.Context) (*geo.FeatureCollection, error)
}

// HTTPBoundarySource downloads a GeoJSON FeatureCollection.
type HTTPBoundarySource struct {
	http *sources.HTTPClient
	url  string
}

func NewHTTPBoundarySource(http *sources.HTTPClient, url string) *HTTPBoundarySource {
	return &HTTPBoundarySource{http: http, url: url}
}

func (s *HTTPBoundarySource) Fetch(ctx context.Context) (*geo.FeatureCollection, error) {
	body, err := s.http.Get(ctx, sourceBoundaries, s.url, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch boundaries: %w", err)
	}
	return geo.DecodeFeatureCollection(bytes.NewReader(body))
}

// FileBoundarySource reads a GeoJSON FeatureCollection from disk.
type FileBoundarySource struct {
	path string
}

func NewFileBoundarySource(path string) *FileBoundarySource {
	return &FileBoundarySource{path: path}
}

func (s *FileBoundarySource) Fetch(ctx context.Context) (*geo.FeatureCollection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open boundaries: %w", err)
	}
	defer f.Close()
	return geo.DecodeFeatureCollection(f)
}

// NewBoundarySource picks the HTTP source for http(s) locations and the file
// source for anything else.
func NewBoundarySource(http *sources.HTTPClient, location string) BoundarySource {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPBoundarySource(http, location)
	}
	return NewFileBoundarySource(strings.TrimPrefix(location, "file://"))
}
