// Package ysld reads and writes the YAML style language.
package ysld

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
)

const (
	Name      = "ysld"
	Extension = "yaml"
	MediaType = "application/vnd.geoserver.ysld+yaml"
)

type Format struct{}

var _ style.Format = Format{}

func (Format) Name() string      { return Name }
func (Format) Extension() string { return Extension }
func (Format) MediaType() string { return MediaType }

func (Format) MediaTypeAliases() []string {
	return []string{"application/x-yaml", "application/yaml", "text/yaml", "text/x-yaml"}
}

type document struct {
	Name          string         `yaml:"name,omitempty"`
	Title         string         `yaml:"title,omitempty"`
	Abstract      string         `yaml:"abstract,omitempty"`
	FeatureStyles []featureStyle `yaml:"feature-styles,omitempty"`
	// shortcuts for a single feature style or a single rule
	Rules       []rule       `yaml:"rules,omitempty"`
	Symbolizers []symbolizer `yaml:"symbolizers,omitempty"`
}

type featureStyle struct {
	Name  string `yaml:"name,omitempty"`
	Title string `yaml:"title,omitempty"`
	Rules []rule `yaml:"rules"`
}

type rule struct {
	Name        string       `yaml:"name,omitempty"`
	Title       string       `yaml:"title,omitempty"`
	Abstract    string       `yaml:"abstract,omitempty"`
	Filter      string       `yaml:"filter,omitempty"`
	Else        bool         `yaml:"else,omitempty"`
	Scale       *scaleRange  `yaml:"scale,omitempty"`
	Symbolizers []symbolizer `yaml:"symbolizers"`
}

// symbolizer is a one-key mapping from kind to body.
type symbolizer map[string]*body

type body struct {
	Geometry        string   `yaml:"geometry,omitempty"`
	FillColor       string   `yaml:"fill-color,omitempty"`
	FillOpacity     *float64 `yaml:"fill-opacity,omitempty"`
	StrokeColor     string   `yaml:"stroke-color,omitempty"`
	StrokeWidth     float64  `yaml:"stroke-width,omitempty"`
	StrokeOpacity   *float64 `yaml:"stroke-opacity,omitempty"`
	StrokeDashArray string   `yaml:"stroke-dasharray,omitempty"`
	Size            float64  `yaml:"size,omitempty"`
	Rotation        float64  `yaml:"rotation,omitempty"`
	Opacity         *float64 `yaml:"opacity,omitempty"`
	Symbols         []symbol `yaml:"symbols,omitempty"`
	Label           string   `yaml:"label,omitempty"`
	FontFamily      string   `yaml:"font-family,omitempty"`
	FontSize        float64  `yaml:"font-size,omitempty"`
	FontStyle       string   `yaml:"font-style,omitempty"`
	FontWeight      string   `yaml:"font-weight,omitempty"`
}

type symbol struct {
	Mark *mark `yaml:"mark,omitempty"`
}

type mark struct {
	Shape         string   `yaml:"shape,omitempty"`
	FillColor     string   `yaml:"fill-color,omitempty"`
	FillOpacity   *float64 `yaml:"fill-opacity,omitempty"`
	StrokeColor   string   `yaml:"stroke-color,omitempty"`
	StrokeWidth   float64  `yaml:"stroke-width,omitempty"`
	StrokeOpacity *float64 `yaml:"stroke-opacity,omitempty"`
}

// scaleRange is written as [min, max]; the words "min" and "max" stand for
// an open end.
type scaleRange struct {
	Min, Max float64
}

func (s *scaleRange) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 2 {
		return fmt.Errorf("line %d: scale must be a [min, max] pair", n.Line)
	}
	var err error
	if s.Min, err = scaleBound(n.Content[0], "min"); err != nil {
		return err
	}
	if s.Max, err = scaleBound(n.Content[1], "max"); err != nil {
		return err
	}
	return nil
}

func scaleBound(n *yaml.Node, open string) (float64, error) {
	if strings.EqualFold(n.Value, open) {
		return 0, nil
	}
	v, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("line %d: bad scale %q", n.Line, n.Value)
	}
	return v, nil
}

func (s scaleRange) MarshalYAML() (any, error) {
	bound := func(v float64, open string) any {
		if v == 0 {
			return open
		}
		return v
	}
	n := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
	for _, v := range []any{bound(s.Min, "min"), bound(s.Max, "max")} {
		var c yaml.Node
		if err := c.Encode(v); err != nil {
			return nil, err
		}
		n.Content = append(n.Content, &c)
	}
	return n, nil
}

var errEmpty = errors.New("empty document")

func (Format) Decode(r io.Reader) (*style.Style, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errEmpty
		}
		return nil, fmt.Errorf("decode ysld: %w", err)
	}
	s, err := doc.toStyle()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate ysld: %w", err)
	}
	return s, nil
}

// Parse is Decode over an in-memory payload.
func Parse(b []byte) (*style.Style, error) {
	return Format{}.Decode(bytes.NewReader(b))
}

func (Format) Encode(w io.Writer, s *style.Style) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(fromStyle(s)); err != nil {
		return fmt.Errorf("encode ysld: %w", err)
	}
	return enc.Close()
}

func (d *document) toStyle() (*style.Style, error) {
	fss := d.FeatureStyles
	switch {
	case len(fss) > 0 && (len(d.Rules) > 0 || len(d.Symbolizers) > 0):
		return nil, errors.New("feature-styles cannot be combined with top-level rules or symbolizers")
	case len(d.Rules) > 0 && len(d.Symbolizers) > 0:
		return nil, errors.New("rules cannot be combined with top-level symbolizers")
	case len(d.Rules) > 0:
		fss = []featureStyle{{Rules: d.Rules}}
	case len(d.Symbolizers) > 0:
		fss = []featureStyle{{Rules: []rule{{Symbolizers: d.Symbolizers}}}}
	}

	out := &style.Style{Name: d.Name, Title: d.Title, Abstract: d.Abstract}
	for _, fs := range fss {
		sfs := style.FeatureStyle{Name: fs.Name, Title: fs.Title}
		for _, r := range fs.Rules {
			sr, err := r.toRule()
			if err != nil {
				return nil, err
			}
			sfs.Rules = append(sfs.Rules, sr)
		}
		out.FeatureStyles = append(out.FeatureStyles, sfs)
	}
	return out, nil
}

func (r *rule) toRule() (style.Rule, error) {
	out := style.Rule{Name: r.Name, Title: r.Title, Abstract: r.Abstract, ElseFilter: r.Else}
	if r.Filter != "" {
		f, err := style.ParseExpression(r.Filter)
		if err != nil {
			return out, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		out.Filter = f
	}
	if r.Scale != nil {
		out.MinScale, out.MaxScale = r.Scale.Min, r.Scale.Max
	}
	for _, sym := range r.Symbolizers {
		if len(sym) != 1 {
			return out, fmt.Errorf("rule %q: symbolizer entries need exactly one kind, got %d", r.Name, len(sym))
		}
		for kind, b := range sym {
			ss, err := b.toSymbolizer(style.SymbolizerKind(kind))
			if err != nil {
				return out, fmt.Errorf("rule %q: %s: %w", r.Name, kind, err)
			}
			out.Symbolizers = append(out.Symbolizers, ss)
		}
	}
	return out, nil
}

func (b *body) toSymbolizer(kind style.SymbolizerKind) (style.Symbolizer, error) {
	out := style.Symbolizer{Kind: kind}
	if b == nil {
		return out, nil
	}
	out.Geometry = b.Geometry
	out.Fill = fill(b.FillColor, b.FillOpacity)
	out.Stroke = stroke(b.StrokeColor, b.StrokeWidth, b.StrokeOpacity, b.StrokeDashArray)
	if b.Label != "" {
		label, err := style.ParseLabel(b.Label)
		if err != nil {
			return out, err
		}
		out.Label = label
	}
	if b.FontFamily != "" || b.FontSize != 0 || b.FontStyle != "" || b.FontWeight != "" {
		out.Font = &style.Font{Family: b.FontFamily, Size: b.FontSize, Style: b.FontStyle, Weight: b.FontWeight}
	}

	switch kind {
	case style.PointSymbolizer:
		g := &style.Graphic{Size: b.Size, Rotation: b.Rotation, Opacity: b.Opacity}
		for _, sym := range b.Symbols {
			if sym.Mark != nil {
				m := sym.Mark
				g.Mark = &style.Mark{
					Shape:  m.Shape,
					Fill:   fill(m.FillColor, m.FillOpacity),
					Stroke: stroke(m.StrokeColor, m.StrokeWidth, m.StrokeOpacity, ""),
				}
				break
			}
		}
		out.Graphic = g
	default:
		out.Opacity = b.Opacity
	}
	return out, nil
}

func fill(color string, opacity *float64) *style.Fill {
	if color == "" && opacity == nil {
		return nil
	}
	return &style.Fill{Color: color, Opacity: opacity}
}

func stroke(color string, width float64, opacity *float64, dash string) *style.Stroke {
	if color == "" && width == 0 && opacity == nil && dash == "" {
		return nil
	}
	return &style.Stroke{Color: color, Width: width, Opacity: opacity, DashArray: dash}
}

func fromStyle(s *style.Style) *document {
	doc := &document{Name: s.Name, Title: s.Title, Abstract: s.Abstract}
	for _, fs := range s.FeatureStyles {
		yfs := featureStyle{Name: fs.Name, Title: fs.Title, Rules: []rule{}}
		for _, r := range fs.Rules {
			yr := rule{Name: r.Name, Title: r.Title, Abstract: r.Abstract, Else: r.ElseFilter, Symbolizers: []symbolizer{}}
			if r.Filter != nil {
				yr.Filter = r.Filter.Expression()
			}
			if r.MinScale != 0 || r.MaxScale != 0 {
				yr.Scale = &scaleRange{Min: r.MinScale, Max: r.MaxScale}
			}
			for _, sym := range r.Symbolizers {
				yr.Symbolizers = append(yr.Symbolizers, symbolizer{string(sym.Kind): fromSymbolizer(sym)})
			}
			yfs.Rules = append(yfs.Rules, yr)
		}
		doc.FeatureStyles = append(doc.FeatureStyles, yfs)
	}
	return doc
}

func fromSymbolizer(s style.Symbolizer) *body {
	b := &body{Geometry: s.Geometry, Opacity: s.Opacity}
	if s.Fill != nil {
		b.FillColor, b.FillOpacity = s.Fill.Color, s.Fill.Opacity
	}
	if s.Stroke != nil {
		b.StrokeColor, b.StrokeWidth = s.Stroke.Color, s.Stroke.Width
		b.StrokeOpacity, b.StrokeDashArray = s.Stroke.Opacity, s.Stroke.DashArray
	}
	b.Label = style.LabelExpression(s.Label)
	if f := s.Font; f != nil {
		b.FontFamily, b.FontSize, b.FontStyle, b.FontWeight = f.Family, f.Size, f.Style, f.Weight
	}
	if g := s.Graphic; g != nil {
		b.Size, b.Rotation, b.Opacity = g.Size, g.Rotation, g.Opacity
		if m := g.Mark; m != nil {
			ym := &mark{Shape: m.Shape}
			if m.Fill != nil {
				ym.FillColor, ym.FillOpacity = m.Fill.Color, m.Fill.Opacity
			}
			if m.Stroke != nil {
				ym.StrokeColor, ym.StrokeWidth, ym.StrokeOpacity = m.Stroke.Color, m.Stroke.Width, m.Stroke.Opacity
			}
			b.Symbols = []symbol{{Mark: ym}}
		}
	}
	return b
}
