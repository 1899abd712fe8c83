// Package style holds the format-neutral style model shared by the style
// languages the service reads and writes, and the registry that selects a
// codec by format tag.
package style

import (
	"errors"
	"fmt"
)

type SymbolizerKind string

const (
	PointSymbolizer   SymbolizerKind = "point"
	LineSymbolizer    SymbolizerKind = "line"
	PolygonSymbolizer SymbolizerKind = "polygon"
	TextSymbolizer    SymbolizerKind = "text"
	RasterSymbolizer  SymbolizerKind = "raster"
)

func (k SymbolizerKind) Valid() bool {
	switch k {
	case PointSymbolizer, LineSymbolizer, PolygonSymbolizer, TextSymbolizer, RasterSymbolizer:
		return true
	}
	return false
}

type Style struct {
	Name          string
	Title         string
	Abstract      string
	FeatureStyles []FeatureStyle
}

type FeatureStyle struct {
	Name  string
	Title string
	Rules []Rule
}

type Rule struct {
	Name     string
	Title    string
	Abstract string
	Filter   *Filter
	// matches features no sibling rule matched
	ElseFilter bool
	// scale denominators; zero means unbounded
	MinScale    float64
	MaxScale    float64
	Symbolizers []Symbolizer
}

type Fill struct {
	Color   string
	Opacity *float64
}

type Stroke struct {
	Color     string
	Width     float64
	Opacity   *float64
	DashArray string
}

type Mark struct {
	Shape  string
	Fill   *Fill
	Stroke *Stroke
}

type Graphic struct {
	Mark     *Mark
	Size     float64
	Rotation float64
	Opacity  *float64
}

type Font struct {
	Family string
	Size   float64
	Style  string
	Weight string
}

// Symbolizer is a union over the symbolizer kinds; only the fields that
// make sense for Kind are set.
type Symbolizer struct {
	Kind SymbolizerKind
	// geometry property to draw, empty for the default geometry
	Geometry string
	Fill     *Fill
	Stroke   *Stroke
	Graphic  *Graphic
	// text symbolizers render the parts concatenated
	Label   []LabelPart
	Font    *Font
	Opacity *float64
}

var ErrEmptyStyle = errors.New("style has no rules")

// Validate checks the structural rules every codec enforces after decoding.
func (s *Style) Validate() error {
	rules := 0
	for i, fs := range s.FeatureStyles {
		for j, r := range fs.Rules {
			rules++
			if r.MinScale < 0 || r.MaxScale < 0 {
				return fmt.Errorf("feature style %d rule %d: negative scale", i, j)
			}
			if r.MaxScale > 0 && r.MinScale > r.MaxScale {
				return fmt.Errorf("feature style %d rule %d: min scale %g above max scale %g", i, j, r.MinScale, r.MaxScale)
			}
			if r.Filter != nil && r.ElseFilter {
				return fmt.Errorf("feature style %d rule %d: filter and else are exclusive", i, j)
			}
			if r.Filter != nil {
				if err := r.Filter.Validate(); err != nil {
					return fmt.Errorf("feature style %d rule %d: %w", i, j, err)
				}
			}
			for k, sym := range r.Symbolizers {
				if !sym.Kind.Valid() {
					return fmt.Errorf("feature style %d rule %d symbolizer %d: unknown kind %q", i, j, k, sym.Kind)
				}
			}
		}
	}
	if rules == 0 {
		return ErrEmptyStyle
	}
	return nil
}

// Counts reports the number of rules and symbolizers across the style.
func (s *Style) Counts() (rules, symbolizers int) {
	for _, fs := range s.FeatureStyles {
		rules += len(fs.Rules)
		for _, r := range fs.Rules {
			symbolizers += len(r.Symbolizers)
		}
	}
	return rules, symbolizers
}
