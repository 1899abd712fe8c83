// Package catalog describes the external store of workspaces, layers and
// styles. The service only talks to it through the interfaces below.
package catalog

import (
	"context"
	"io"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geo-layer-backend/internal/crs"
)

type ResourceType string

const (
	FeatureTypeResource ResourceType = "featureType"
	CoverageResource    ResourceType = "coverage"
	// cascaded remote layer, neither a local feature type nor a coverage
	WMSResource ResourceType = "wms"
)

type Workspace struct {
	ID   string
	Name string
}

type GeometryDescriptor struct {
	Name string
	// zero value of the bound geometry type, e.g. orb.MultiPolygon{};
	// nil means an untyped geometry column
	Binding orb.Geometry
}

type Attribute struct {
	Name string
	Type string
}

type FeatureType struct {
	Name       string
	Attributes []Attribute
	Geometry   *GeometryDescriptor
}

// SchemaSource reads the feature schema from the layer's backing store.
type SchemaSource interface {
	FeatureType(ctx context.Context) (*FeatureType, error)
}

type SchemaFunc func(ctx context.Context) (*FeatureType, error)

func (f SchemaFunc) FeatureType(ctx context.Context) (*FeatureType, error) { return f(ctx) }

type Resource struct {
	Type       ResourceType
	Name       string
	Title      string
	SRS        string
	CRS        crs.CRS
	NativeBBox orb.Bound
	LatLonBBox orb.Bound
	// set for feature type resources only
	Schema SchemaSource
}

type StyleRecord struct {
	// assigned by the catalog on add; empty for records not yet persisted
	ID            string
	Name          string
	Filename      string
	Format        string
	FormatVersion string
	// empty for global styles
	Workspace string
}

func (s *StyleRecord) Clone() *StyleRecord {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}

type Layer struct {
	Name         string
	Title        string
	Workspace    string
	Resource     *Resource
	DefaultStyle *StyleRecord
}

type Catalog interface {
	StyleCatalog
	Workspace(ctx context.Context, name string) (*Workspace, error)
	DefaultWorkspace(ctx context.Context) (*Workspace, error)
	Layer(ctx context.Context, workspace, name string) (*Layer, error)
	Layers(ctx context.Context, workspace string) ([]*Layer, error)
}

// StyleCatalog is the part of the catalog the style negotiator mutates.
type StyleCatalog interface {
	// fails with a not-found fault when absent
	StyleByName(ctx context.Context, workspace, name string) (*StyleRecord, error)
	NewStyle() *StyleRecord
	// assigns s.ID
	AddStyle(ctx context.Context, s *StyleRecord) error
	SaveStyle(ctx context.Context, s *StyleRecord) error
	SetDefaultStyle(ctx context.Context, workspace, layer string, s *StyleRecord) error
}

// StyleWriter is flushed explicitly before Close.
type StyleWriter interface {
	io.WriteCloser
	Flush() error
}

// StyleStore is the byte-level backing storage of styles, addressed by
// the record's workspace and filename.
type StyleStore interface {
	Reader(ctx context.Context, s *StyleRecord) (io.ReadCloser, error)
	Writer(ctx context.Context, s *StyleRecord) (StyleWriter, error)
}
