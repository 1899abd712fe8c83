package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/crs"
)

// Seed is the on-disk layout of a catalog file.
type Seed struct {
	DefaultWorkspace string       `yaml:"default_workspace"`
	Workspaces       []string     `yaml:"workspaces"`
	Styles           []SeedStyle  `yaml:"styles"`
	Layers           []SeedLayer  `yaml:"layers"`
	Bodies           []SeedBodies `yaml:"-"`
}

type SeedStyle struct {
	Workspace     string `yaml:"workspace,omitempty"`
	Name          string `yaml:"name"`
	Filename      string `yaml:"filename"`
	Format        string `yaml:"format"`
	FormatVersion string `yaml:"format_version,omitempty"`
	// optional inline content written to the style store on load
	Body string `yaml:"body,omitempty"`
}

type SeedBodies struct {
	Style *catalog.StyleRecord
	Body  []byte
}

type SeedLayer struct {
	Workspace string       `yaml:"workspace"`
	Name      string       `yaml:"name"`
	Title     string       `yaml:"title,omitempty"`
	Style     string       `yaml:"style,omitempty"`
	Resource  SeedResource `yaml:"resource"`
}

type SeedResource struct {
	Type       catalog.ResourceType `yaml:"type"`
	Name       string               `yaml:"name,omitempty"`
	Title      string               `yaml:"title,omitempty"`
	SRS        string               `yaml:"srs"`
	WKT        string               `yaml:"wkt,omitempty"`
	NativeBBox []float64            `yaml:"native_bbox"`
	LatLonBBox []float64            `yaml:"latlon_bbox"`
	Geometry   string               `yaml:"geometry,omitempty"`
	Attributes map[string]string    `yaml:"attributes,omitempty"`
}

var bindings = map[string]func() orb.Geometry{
	"point":              func() orb.Geometry { return orb.Point{} },
	"multipoint":         func() orb.Geometry { return orb.MultiPoint{} },
	"linestring":         func() orb.Geometry { return orb.LineString{} },
	"multilinestring":    func() orb.Geometry { return orb.MultiLineString{} },
	"polygon":            func() orb.Geometry { return orb.Polygon{} },
	"multipolygon":       func() orb.Geometry { return orb.MultiPolygon{} },
	"geometrycollection": func() orb.Geometry { return orb.Collection{} },
	"geometry":           func() orb.Geometry { return nil },
}

// LoadFile reads a YAML seed from path. See Load.
func LoadFile(path string, res *crs.Resolver, log *slog.Logger) (*Catalog, *Seed, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return Load(bytes.NewReader(b), res, log)
}

// Load builds a catalog from a YAML seed. Layers whose SRS cannot be
// resolved keep a nil CRS and are logged; they still load. Inline style
// bodies are returned in Seed.Bodies for the caller to write to its store.
func Load(r io.Reader, res *crs.Resolver, log *slog.Logger) (*Catalog, *Seed, error) {
	if log == nil {
		log = slog.Default()
	}
	if res == nil {
		res = crs.NewResolver(0)
	}
	var seed Seed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && err != io.EOF {
		return nil, nil, fmt.Errorf("decode catalog seed: %w", err)
	}

	c := New()
	for _, ws := range seed.Workspaces {
		c.AddWorkspace(ws)
	}
	if seed.DefaultWorkspace != "" {
		if err := c.SetDefaultWorkspace(seed.DefaultWorkspace); err != nil {
			return nil, nil, err
		}
	}

	ctx := context.Background()
	for _, s := range seed.Styles {
		if s.Workspace != "" {
			if _, err := c.Workspace(ctx, s.Workspace); err != nil {
				return nil, nil, fmt.Errorf("style %s: %w", s.Name, err)
			}
		}
		rec := &catalog.StyleRecord{
			Name:          s.Name,
			Filename:      s.Filename,
			Format:        strings.ToLower(s.Format),
			FormatVersion: s.FormatVersion,
			Workspace:     s.Workspace,
		}
		if err := c.AddStyle(ctx, rec); err != nil {
			return nil, nil, fmt.Errorf("style %s: %w", s.Name, err)
		}
		if s.Body != "" {
			seed.Bodies = append(seed.Bodies, SeedBodies{Style: rec.Clone(), Body: []byte(s.Body)})
		}
	}

	for _, sl := range seed.Layers {
		l, err := buildLayer(sl, res, log)
		if err != nil {
			return nil, nil, fmt.Errorf("layer %s:%s: %w", sl.Workspace, sl.Name, err)
		}
		if sl.Style != "" {
			st, err := lookupSeedStyle(ctx, c, sl.Workspace, sl.Style)
			if err != nil {
				return nil, nil, fmt.Errorf("layer %s:%s: %w", sl.Workspace, sl.Name, err)
			}
			l.DefaultStyle = st
		}
		if err := c.AddLayer(l); err != nil {
			return nil, nil, fmt.Errorf("layer %s:%s: %w", sl.Workspace, sl.Name, err)
		}
	}
	return c, &seed, nil
}

// a layer's style is looked up in its own workspace first, then globally
func lookupSeedStyle(ctx context.Context, c *Catalog, ws, name string) (*catalog.StyleRecord, error) {
	if st, err := c.StyleByName(ctx, ws, name); err == nil {
		return st, nil
	}
	return c.StyleByName(ctx, "", name)
}

func buildLayer(sl SeedLayer, res *crs.Resolver, log *slog.Logger) (*catalog.Layer, error) {
	sr := sl.Resource
	typ := sr.Type
	if typ == "" {
		typ = catalog.FeatureTypeResource
	}
	switch typ {
	case catalog.FeatureTypeResource, catalog.CoverageResource, catalog.WMSResource:
	default:
		return nil, fmt.Errorf("unknown resource type %q", typ)
	}

	native, err := bound(sr.NativeBBox)
	if err != nil {
		return nil, fmt.Errorf("native_bbox: %w", err)
	}
	lonlat, err := bound(sr.LatLonBBox)
	if err != nil {
		return nil, fmt.Errorf("latlon_bbox: %w", err)
	}

	r := &catalog.Resource{
		Type:       typ,
		Name:       sr.Name,
		Title:      sr.Title,
		SRS:        sr.SRS,
		NativeBBox: native,
		LatLonBBox: lonlat,
	}
	if r.Name == "" {
		r.Name = sl.Name
	}
	if def, err := res.Resolve(sr.SRS, sr.WKT); err != nil {
		log.Warn("unresolved crs", "layer", sl.Workspace+":"+sl.Name, "srs", sr.SRS, "err", err)
	} else {
		r.CRS = def
	}

	if typ == catalog.FeatureTypeResource {
		ft, err := featureType(r.Name, sr)
		if err != nil {
			return nil, err
		}
		r.Schema = catalog.SchemaFunc(func(context.Context) (*catalog.FeatureType, error) {
			return ft, nil
		})
	}

	return &catalog.Layer{
		Name:      sl.Name,
		Title:     sl.Title,
		Workspace: sl.Workspace,
		Resource:  r,
	}, nil
}

func featureType(name string, sr SeedResource) (*catalog.FeatureType, error) {
	ft := &catalog.FeatureType{Name: name}
	names := make([]string, 0, len(sr.Attributes))
	for k := range sr.Attributes {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		ft.Attributes = append(ft.Attributes, catalog.Attribute{Name: k, Type: sr.Attributes[k]})
	}
	g := strings.ToLower(strings.TrimSpace(sr.Geometry))
	if g == "" || g == "none" {
		return ft, nil
	}
	mk, ok := bindings[g]
	if !ok {
		return nil, fmt.Errorf("unknown geometry binding %q", sr.Geometry)
	}
	ft.Geometry = &catalog.GeometryDescriptor{Name: "the_geom", Binding: mk()}
	return ft, nil
}

func bound(v []float64) (orb.Bound, error) {
	if len(v) == 0 {
		return orb.Bound{}, nil
	}
	if len(v) != 4 {
		return orb.Bound{}, fmt.Errorf("expected [minx, miny, maxx, maxy], got %d values", len(v))
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

// WriteBodies stores each inline seed body whose file is not yet present
// in store. It returns how many bodies were written.
func WriteBodies(ctx context.Context, store catalog.StyleStore, bodies []SeedBodies) (int, error) {
	n := 0
	for _, b := range bodies {
		r, err := store.Reader(ctx, b.Style)
		if err == nil {
			_ = r.Close()
			continue
		}
		if !fault.IsNotFound(err) {
			return n, fmt.Errorf("check style %s: %w", b.Style.Name, err)
		}
		w, err := store.Writer(ctx, b.Style)
		if err != nil {
			return n, fmt.Errorf("seed style %s: %w", b.Style.Name, err)
		}
		_, werr := w.Write(b.Body)
		if werr == nil {
			werr = w.Flush()
		}
		cerr := w.Close()
		if werr != nil {
			return n, fmt.Errorf("seed style %s: %w", b.Style.Name, werr)
		}
		if cerr != nil {
			return n, fmt.Errorf("seed style %s: %w", b.Style.Name, cerr)
		}
		n++
	}
	return n, nil
}
