// Package layermeta derives the descriptive metadata of a catalog layer:
// kind, geometry label, projection summary and bounding boxes.
//
// Schema and axis lookups may fail. Those failures are degraded: they are
// logged, counted and replaced by a fallback value so a layer always
// yields a complete record.
package layermeta

import (
	"context"
	"errors"
	"log/slog"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/model"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/observability"
	"github.com/mohammed-shakir/geo-layer-backend/internal/crs"
	"github.com/mohammed-shakir/geo-layer-backend/internal/logger"
)

const (
	GeometryVector  = "Vector"
	GeometryUnknown = "Unknown"

	UnitFeet    = "ft"
	UnitMetre   = "m"
	UnitDegrees = "degrees"
)

// accepted spellings of the feet axis unit
var feetUnits = map[string]struct{}{"ft": {}, "feets": {}}

type Deriver struct {
	log *slog.Logger
}

func New(log *slog.Logger) *Deriver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Deriver{log: log}
}

func (d *Deriver) Kind(r *catalog.Resource) model.LayerKind {
	if r != nil && r.Type == catalog.CoverageResource {
		return model.KindRaster
	}
	return model.KindVector
}

// GeometryType labels the default geometry of a feature resource.
func (d *Deriver) GeometryType(ctx context.Context, r *catalog.Resource) string {
	label, err := geometryLabel(ctx, r)
	if err != nil {
		observability.IncMetadataDegraded("schema")
		d.log.WarnContext(ctx, "feature schema unavailable", "resource", r.Name, "err", err)
	}
	return label
}

func geometryLabel(ctx context.Context, r *catalog.Resource) (string, error) {
	if r.Schema == nil {
		return GeometryUnknown, fault.Degradedf("read schema", nil, "resource %s has no schema source", r.Name)
	}
	ft, err := r.Schema.FeatureType(ctx)
	if err != nil {
		return GeometryUnknown, fault.Degradedf("read schema", err, "resource %s", r.Name)
	}
	if ft == nil || ft.Geometry == nil {
		return GeometryVector, nil
	}
	return BindingLabel(ft.Geometry.Binding), nil
}

// BindingLabel names a geometry binding. Untyped bindings are "Geometry".
func BindingLabel(g orb.Geometry) string {
	switch g.(type) {
	case orb.Point:
		return "Point"
	case orb.MultiPoint:
		return "MultiPoint"
	case orb.LineString:
		return "LineString"
	case orb.MultiLineString:
		return "MultiLineString"
	case orb.Polygon, orb.Ring, orb.Bound:
		return "Polygon"
	case orb.MultiPolygon:
		return "MultiPolygon"
	case orb.Collection:
		return "GeometryCollection"
	default:
		return "Geometry"
	}
}

func (d *Deriver) Projection(ctx context.Context, r *catalog.Resource) model.ProjectionInfo {
	info := model.ProjectionInfo{SRS: r.SRS, Type: crs.KindOther.String()}
	var kind crs.Kind
	if r.CRS != nil {
		kind = r.CRS.Kind()
		info.Type = kind.String()
	}

	unit, err := axisUnit(r.CRS)
	if err != nil {
		observability.IncMetadataDegraded("unit")
		d.log.WarnContext(ctx, "axis unit unavailable", "srs", r.SRS, "err", err)
	}
	switch {
	case isFeet(unit):
		info.Unit = UnitFeet
	case kind == crs.KindProjected:
		info.Unit = UnitMetre
	default:
		info.Unit = UnitDegrees
	}
	return info
}

var errNoCRS = errors.New("no coordinate reference system")

func axisUnit(c crs.CRS) (string, error) {
	if c == nil {
		return "", fault.Degradedf("inspect axis", errNoCRS, "first axis")
	}
	cs, err := c.CoordinateSystem()
	if err != nil {
		return "", fault.Degradedf("inspect axis", err, "coordinate system")
	}
	ax, err := cs.Axis(0)
	if err != nil {
		return "", fault.Degradedf("inspect axis", err, "first axis")
	}
	return ax.Unit, nil
}

func isFeet(unit string) bool {
	_, ok := feetUnits[unit]
	return ok
}

// BoundingBox copies the envelope edges and adds its midpoint.
func BoundingBox(b orb.Bound) model.BoundingBoxInfo {
	c := b.Center()
	return model.BoundingBoxInfo{
		West:   b.Min.X(),
		South:  b.Min.Y(),
		East:   b.Max.X(),
		North:  b.Max.Y(),
		Center: [2]float64{c.X(), c.Y()},
	}
}

// Metadata assembles the full record for layer. verbose is accepted for
// compatibility with callers that send it and changes nothing.
func (d *Deriver) Metadata(ctx context.Context, layer *catalog.Layer, workspace string, verbose bool) (*model.LayerMetadata, error) {
	_ = verbose
	if layer == nil {
		return nil, fault.NotFoundf("layer metadata", "no layer")
	}
	r := layer.Resource
	if r == nil {
		return nil, fault.Fatalf("layer metadata", nil, "layer %s has no resource", layer.Name)
	}
	ctx = logger.WithLayer(logger.WithWorkspace(ctx, workspace), layer.Name)

	title := layer.Title
	if title == "" {
		title = r.Title
	}
	out := &model.LayerMetadata{
		Name:      layer.Name,
		Workspace: workspace,
		Title:     title,
		Type:      d.Kind(r),
		Proj:      d.Projection(ctx, r),
		BBox: model.BBox{
			Native: BoundingBox(r.NativeBBox),
			LonLat: BoundingBox(r.LatLonBBox),
		},
	}
	if r.Type == catalog.FeatureTypeResource {
		out.Geometry = d.GeometryType(ctx, r)
	}
	return out, nil
}
