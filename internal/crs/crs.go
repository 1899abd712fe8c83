// Package crs models coordinate reference systems at the level the layer
// metadata needs: structural kind, coordinate system axes and their units.
package crs

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindOther Kind = iota
	KindGeographic
	KindProjected
)

func (k Kind) String() string {
	switch k {
	case KindProjected:
		return "projected"
	case KindGeographic:
		return "geographic"
	default:
		return "other"
	}
}

// CRS is implemented by anything able to describe its structure.
// CoordinateSystem may fail when the definition carries no usable axes.
type CRS interface {
	Kind() Kind
	CoordinateSystem() (*CoordinateSystem, error)
}

type Axis struct {
	Name      string
	Direction string
	// unit symbol, e.g. "m", "ft", "°"
	Unit string
}

type CoordinateSystem struct {
	Name string
	Axes []Axis
}

var ErrNoAxis = errors.New("axis index out of range")

func (cs *CoordinateSystem) Axis(i int) (Axis, error) {
	if cs == nil || i < 0 || i >= len(cs.Axes) {
		return Axis{}, fmt.Errorf("axis %d: %w", i, ErrNoAxis)
	}
	return cs.Axes[i], nil
}

// Definition is the concrete CRS produced by the registry and the WKT parser.
type Definition struct {
	Code string
	Name string
	Type Kind
	CS   *CoordinateSystem
}

func (d *Definition) Kind() Kind { return d.Type }

func (d *Definition) CoordinateSystem() (*CoordinateSystem, error) {
	if d.CS == nil || len(d.CS.Axes) == 0 {
		return nil, fmt.Errorf("crs %q: no coordinate system", d.label())
	}
	return d.CS, nil
}

func (d *Definition) label() string {
	if d.Code != "" {
		return d.Code
	}
	return d.Name
}

func geographicCS(unit string) *CoordinateSystem {
	return &CoordinateSystem{
		Name: "Ellipsoidal 2D",
		Axes: []Axis{
			{Name: "Geodetic longitude", Direction: "EAST", Unit: unit},
			{Name: "Geodetic latitude", Direction: "NORTH", Unit: unit},
		},
	}
}

func cartesianCS(unit string) *CoordinateSystem {
	return &CoordinateSystem{
		Name: "Cartesian 2D",
		Axes: []Axis{
			{Name: "Easting", Direction: "EAST", Unit: unit},
			{Name: "Northing", Direction: "NORTH", Unit: unit},
		},
	}
}
