// Package model defines the response types shared by the deriver and the
// HTTP surface.
package model

type LayerKind string

const (
	KindRaster LayerKind = "raster"
	KindVector LayerKind = "vector"
)

// BoundingBoxInfo is an envelope plus its midpoint, in the envelope's own CRS.
type BoundingBoxInfo struct {
	West   float64    `json:"west"`
	South  float64    `json:"south"`
	East   float64    `json:"east"`
	North  float64    `json:"north"`
	Center [2]float64 `json:"center"`
}

type BBox struct {
	Native BoundingBoxInfo `json:"native"`
	LonLat BoundingBoxInfo `json:"lonlat"`
}

type ProjectionInfo struct {
	SRS  string `json:"srs"`
	Type string `json:"type"`
	Unit string `json:"unit"`
}

type LayerMetadata struct {
	Name      string         `json:"name"`
	Workspace string         `json:"workspace"`
	Title     string         `json:"title"`
	Type      LayerKind      `json:"type"`
	Geometry  string         `json:"geometry,omitempty"`
	Proj      ProjectionInfo `json:"proj"`
	BBox      BBox           `json:"bbox"`
}

// StyleInfo is returned after a style write.
type StyleInfo struct {
	Name          string `json:"name"`
	Workspace     string `json:"workspace,omitempty"`
	Filename      string `json:"filename"`
	Format        string `json:"format"`
	FormatVersion string `json:"formatVersion"`
}
