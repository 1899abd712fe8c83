package sld

import (
	"fmt"
	"strings"

	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
)

// toFilter converts one ogc predicate element, recursing through And, Or
// and Not.
func toFilter(n *filterNode) (*style.Filter, error) {
	local := n.XMLName.Local
	if op, ok := logicOps[local]; ok {
		f := &style.Filter{Logic: op}
		for i := range n.Children {
			c, err := toFilter(&n.Children[i])
			if err != nil {
				return nil, err
			}
			f.Children = append(f.Children, c)
		}
		return f, nil
	}

	switch local {
	case "PropertyIsNull":
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("%s needs one expression", local)
		}
		left, err := toOperand(&n.Children[0])
		if err != nil {
			return nil, err
		}
		return &style.Filter{Op: style.OpIsNull, Left: left}, nil

	case "PropertyIsBetween":
		f := &style.Filter{Op: style.OpBetween}
		var seen [3]bool
		for i := range n.Children {
			c := &n.Children[i]
			var (
				dst *style.Operand
				err error
			)
			switch c.XMLName.Local {
			case "LowerBoundary":
				dst, seen[1] = &f.Right, true
				c, err = boundary(c)
			case "UpperBoundary":
				dst, seen[2] = &f.Upper, true
				c, err = boundary(c)
			default:
				dst, seen[0] = &f.Left, true
			}
			if err != nil {
				return nil, err
			}
			if *dst, err = toOperand(c); err != nil {
				return nil, err
			}
		}
		if seen != [3]bool{true, true, true} {
			return nil, fmt.Errorf("%s needs an expression and both boundaries", local)
		}
		return f, nil

	case "PropertyIsLike":
		if len(n.Children) != 2 {
			return nil, fmt.Errorf("%s needs an expression and a pattern", local)
		}
		left, err := toOperand(&n.Children[0])
		if err != nil {
			return nil, err
		}
		pat := &n.Children[1]
		if pat.XMLName.Local != "Literal" {
			return nil, fmt.Errorf("%s pattern must be a Literal", local)
		}
		esc := n.Escape
		if esc == "" {
			esc = n.EscapeChar
		}
		return &style.Filter{Op: style.OpLike, Left: left, Right: style.Lit(likePattern(pat.Text, n.WildCard, n.SingleChar, esc))}, nil
	}

	op, ok := comparisons[local]
	if !ok {
		return nil, fmt.Errorf("unsupported filter %s", local)
	}
	if len(n.Children) != 2 {
		return nil, fmt.Errorf("%s needs two expressions, got %d", local, len(n.Children))
	}
	left, err := toOperand(&n.Children[0])
	if err != nil {
		return nil, err
	}
	right, err := toOperand(&n.Children[1])
	if err != nil {
		return nil, err
	}
	return &style.Filter{Op: op, Left: left, Right: right}, nil
}

func boundary(n *filterNode) (*filterNode, error) {
	if len(n.Children) != 1 {
		return nil, fmt.Errorf("%s needs one expression", n.XMLName.Local)
	}
	return &n.Children[0], nil
}

func toOperand(n *filterNode) (style.Operand, error) {
	switch n.XMLName.Local {
	case "PropertyName":
		name := strings.TrimSpace(n.Text)
		if name == "" {
			return style.Operand{}, fmt.Errorf("empty PropertyName")
		}
		return style.Prop(name), nil
	case "Literal":
		return style.Lit(strings.TrimSpace(n.Text)), nil
	}
	return style.Operand{}, fmt.Errorf("unsupported expression %s", n.XMLName.Local)
}

// likePattern rewrites a pattern written with the document's wildcard
// characters into the % _ \ form the model uses. SLD 1.0 documents that
// omit the attributes get *, . and !.
func likePattern(src, wild, single, esc string) string {
	if wild == "" {
		wild = "*"
	}
	if single == "" {
		single = "."
	}
	if esc == "" {
		esc = "!"
	}
	var b strings.Builder
	rs := []rune(src)
	for i := 0; i < len(rs); i++ {
		r := string(rs[i])
		switch {
		case r == esc && i+1 < len(rs):
			i++
			writeLiteralRune(&b, rs[i])
		case r == wild:
			b.WriteByte('%')
		case r == single:
			b.WriteByte('_')
		default:
			writeLiteralRune(&b, rs[i])
		}
	}
	return b.String()
}

func writeLiteralRune(b *strings.Builder, r rune) {
	if r == '%' || r == '_' || r == '\\' {
		b.WriteByte('\\')
	}
	b.WriteRune(r)
}

func fromFilter(f *style.Filter) filterNode {
	if f.Logic != "" {
		n := filterNode{XMLName: ogc(logicElems[f.Logic])}
		for _, c := range f.Children {
			n.Children = append(n.Children, fromFilter(c))
		}
		return n
	}
	switch f.Op {
	case style.OpIsNull:
		return filterNode{XMLName: ogc("PropertyIsNull"), Children: []filterNode{fromOperand(f.Left)}}
	case style.OpBetween:
		return filterNode{XMLName: ogc("PropertyIsBetween"), Children: []filterNode{
			fromOperand(f.Left),
			{XMLName: ogc("LowerBoundary"), Children: []filterNode{fromOperand(f.Right)}},
			{XMLName: ogc("UpperBoundary"), Children: []filterNode{fromOperand(f.Upper)}},
		}}
	case style.OpLike:
		return filterNode{
			XMLName:  ogc("PropertyIsLike"),
			WildCard: "%", SingleChar: "_", Escape: `\`,
			Children: []filterNode{fromOperand(f.Left), {XMLName: ogc("Literal"), Text: f.Right.Literal}},
		}
	}
	return filterNode{XMLName: ogc(comparisonElems[f.Op]), Children: []filterNode{fromOperand(f.Left), fromOperand(f.Right)}}
}

func fromOperand(o style.Operand) filterNode {
	if o.IsProperty() {
		return filterNode{XMLName: ogc("PropertyName"), Text: o.Property}
	}
	return filterNode{XMLName: ogc("Literal"), Text: o.Literal}
}
