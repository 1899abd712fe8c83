package crs

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	UnitMetre  = "m"
	UnitFoot   = "ft"
	UnitDegree = "°"
)

// UnitSymbol normalises a WKT unit name to the symbol axes report.
// Unrecognised names are returned lower-cased.
func UnitSymbol(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	switch n {
	case "metre", "meter", "metres", "meters", "m":
		return UnitMetre
	case "kilometre", "kilometer", "km":
		return "km"
	case "degree", "degrees", "deg", "°", "degree (supplier to define representation)":
		return UnitDegree
	case "foot", "feet", "ft", "international foot", "foot (international)",
		"us survey foot", "foot_us", "us_survey_foot", "foot us", "ftus", "us_foot":
		return UnitFoot
	case "radian", "rad":
		return "rad"
	case "grad", "gon":
		return "grad"
	}
	return n
}

// node is one KEYWORD[...] element of a WKT string.
type node struct {
	keyword string
	args    []any // string, float-looking literal (kept as string) or *node
}

func (n *node) children(keyword string) []*node {
	var out []*node
	for _, a := range n.args {
		if c, ok := a.(*node); ok && c.keyword == keyword {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) child(keyword string) *node {
	if cs := n.children(keyword); len(cs) > 0 {
		return cs[0]
	}
	return nil
}

func (n *node) str(i int) string {
	if i < 0 || i >= len(n.args) {
		return ""
	}
	if s, ok := n.args[i].(string); ok {
		return s
	}
	return ""
}

var errUnexpectedEnd = errors.New("unexpected end of input")

type wktParser struct {
	src string
	pos int
}

// ParseWKT parses an OGC WKT1 coordinate reference system definition.
func ParseWKT(src string) (*Definition, error) {
	p := &wktParser{src: src}
	root, err := p.node()
	if err != nil {
		return nil, fmt.Errorf("parse wkt: %w", err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("parse wkt: trailing content at offset %d", p.pos)
	}
	return definitionFrom(root)
}

func definitionFrom(root *node) (*Definition, error) {
	d := &Definition{Name: root.str(0)}
	if auth := root.child("AUTHORITY"); auth != nil && auth.str(0) != "" {
		d.Code = strings.ToUpper(auth.str(0)) + ":" + auth.str(1)
	}

	switch root.keyword {
	case "GEOGCS":
		d.Type = KindGeographic
		d.CS = axesOf(root, geographicCS)
	case "PROJCS":
		d.Type = KindProjected
		d.CS = axesOf(root, cartesianCS)
	case "GEOCCS", "VERT_CS", "LOCAL_CS":
		d.Type = KindOther
		d.CS = axesOf(root, nil)
	case "COMPD_CS":
		d.Type = KindOther
		cs := &CoordinateSystem{Name: "Compound"}
		for _, a := range root.args {
			c, ok := a.(*node)
			if !ok || c.keyword == "AUTHORITY" {
				continue
			}
			part, err := definitionFrom(c)
			if err != nil {
				return nil, err
			}
			if part.CS != nil {
				cs.Axes = append(cs.Axes, part.CS.Axes...)
			}
		}
		d.CS = cs
	default:
		return nil, fmt.Errorf("parse wkt: unsupported root %q", root.keyword)
	}
	return d, nil
}

// axesOf reads explicit AXIS elements, falling back to the default
// two-axis system for the kind when none are declared.
func axesOf(n *node, defaults func(unit string) *CoordinateSystem) *CoordinateSystem {
	unit := ""
	if u := n.child("UNIT"); u != nil {
		unit = UnitSymbol(u.str(0))
	}
	axes := n.children("AXIS")
	if len(axes) == 0 {
		if defaults == nil || unit == "" {
			return nil
		}
		return defaults(unit)
	}
	cs := &CoordinateSystem{Name: n.keyword}
	for _, a := range axes {
		cs.Axes = append(cs.Axes, Axis{Name: a.str(0), Direction: strings.ToUpper(a.str(1)), Unit: unit})
	}
	return cs
}

func (p *wktParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *wktParser) node() (*node, error) {
	p.skipSpace()
	kw := p.word()
	if kw == "" {
		return nil, fmt.Errorf("expected keyword at offset %d", p.pos)
	}
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, errUnexpectedEnd
	}
	open := p.src[p.pos]
	if open != '[' && open != '(' {
		return nil, fmt.Errorf("expected '[' after %s at offset %d", kw, p.pos)
	}
	closer := byte(']')
	if open == '(' {
		closer = ')'
	}
	p.pos++

	n := &node{keyword: strings.ToUpper(kw)}
	for {
		p.skipSpace()
		if p.pos >= len(p.src) {
			return nil, errUnexpectedEnd
		}
		switch c := p.src[p.pos]; {
		case c == closer:
			p.pos++
			return n, nil
		case c == ',':
			p.pos++
			continue
		case c == '"':
			s, err := p.quoted()
			if err != nil {
				return nil, err
			}
			n.args = append(n.args, s)
		default:
			start := p.pos
			w := p.word()
			if w == "" {
				return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos)
			}
			p.skipSpace()
			if p.pos < len(p.src) && (p.src[p.pos] == '[' || p.src[p.pos] == '(') {
				p.pos = start
				child, err := p.node()
				if err != nil {
					return nil, err
				}
				n.args = append(n.args, child)
				continue
			}
			n.args = append(n.args, w)
		}
	}
}

// word consumes an identifier or numeric literal.
func (p *wktParser) word() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := rune(p.src[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || strings.ContainsRune("_.+-", c) {
			p.pos++
			continue
		}
		break
	}
	return p.src[start:p.pos]
}

func (p *wktParser) quoted() (string, error) {
	p.pos++ // opening quote
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		if c != '"' {
			b.WriteByte(c)
			continue
		}
		// doubled quote is an escaped quote
		if p.pos < len(p.src) && p.src[p.pos] == '"' {
			b.WriteByte('"')
			p.pos++
			continue
		}
		return b.String(), nil
	}
	return "", errUnexpectedEnd
}
