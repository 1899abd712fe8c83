// Package sld reads and writes Styled Layer Descriptor 1.0 XML.
package sld

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
)

const (
	Name      = "sld"
	Extension = "sld"
	MediaType = "application/vnd.ogc.sld+xml"
	Version   = "1.0.0"

	nsSLD   = "http://www.opengis.net/sld"
	nsOGC   = "http://www.opengis.net/ogc"
	nsXLink = "http://www.w3.org/1999/xlink"
)

type Format struct{}

var _ style.Format = Format{}

func (Format) Name() string      { return Name }
func (Format) Extension() string { return Extension }
func (Format) MediaType() string { return MediaType }

func (Format) MediaTypeAliases() []string {
	return []string{"application/xml", "text/xml", "application/vnd.ogc.se+xml"}
}

type descriptor struct {
	XMLName    xml.Name     `xml:"StyledLayerDescriptor"`
	Version    string       `xml:"version,attr,omitempty"`
	XMLNS      string       `xml:"xmlns,attr,omitempty"`
	XMLNSOgc   string       `xml:"xmlns:ogc,attr,omitempty"`
	XMLNSXLink string       `xml:"xmlns:xlink,attr,omitempty"`
	Layers     []namedLayer `xml:"NamedLayer"`
}

type namedLayer struct {
	Name   string      `xml:"Name"`
	Styles []userStyle `xml:"UserStyle"`
}

type userStyle struct {
	Name          string             `xml:"Name,omitempty"`
	Title         string             `xml:"Title,omitempty"`
	Abstract      string             `xml:"Abstract,omitempty"`
	FeatureStyles []featureTypeStyle `xml:"FeatureTypeStyle"`
}

type featureTypeStyle struct {
	Name  string `xml:"Name,omitempty"`
	Title string `xml:"Title,omitempty"`
	Rules []rule `xml:"Rule"`
}

type rule struct {
	Name       string      `xml:"Name,omitempty"`
	Title      string      `xml:"Title,omitempty"`
	Abstract   string      `xml:"Abstract,omitempty"`
	Filter     *filterNode `xml:"Filter"`
	ElseFilter *struct{}   `xml:"ElseFilter"`
	MinScale   string      `xml:"MinScaleDenominator,omitempty"`
	MaxScale   string      `xml:"MaxScaleDenominator,omitempty"`
	// every other child element is a symbolizer, kept in document order
	Symbolizers []symbolizer `xml:",any"`
}

// filterNode is any element at or below ogc:Filter. Operators and operands
// share one shape so nested predicates decode in document order.
type filterNode struct {
	XMLName    xml.Name
	WildCard   string       `xml:"wildCard,attr,omitempty"`
	SingleChar string       `xml:"singleChar,attr,omitempty"`
	Escape     string       `xml:"escape,attr,omitempty"`
	EscapeChar string       `xml:"escapeChar,attr,omitempty"`
	Text       string       `xml:",chardata"`
	Children   []filterNode `xml:",any"`
}

type propertyName struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type symbolizer struct {
	XMLName  xml.Name
	Geometry *geometry `xml:"Geometry"`
	Graphic  *graphic  `xml:"Graphic"`
	Label    *label    `xml:"Label"`
	Font     *params   `xml:"Font"`
	Fill     *params   `xml:"Fill"`
	Stroke   *params   `xml:"Stroke"`
	Opacity  string    `xml:"Opacity,omitempty"`
}

type geometry struct {
	Property propertyName `xml:"PropertyName"`
}

// label is mixed content: text runs interleaved with ogc:PropertyName and
// ogc:Literal elements.
type label struct {
	Parts []style.LabelPart
}

func (l *label) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.CharData:
			l.add(style.LabelPart{Text: trimIndent(string(t))})
		case xml.StartElement:
			var v struct {
				Text string `xml:",chardata"`
			}
			if err := d.DecodeElement(&v, &t); err != nil {
				return err
			}
			switch t.Name.Local {
			case "PropertyName":
				l.add(style.LabelPart{Property: strings.TrimSpace(v.Text)})
			case "Literal":
				l.add(style.LabelPart{Text: v.Text})
			default:
				return fmt.Errorf("label: unsupported expression %s", t.Name.Local)
			}
		case xml.EndElement:
			return nil
		}
	}
}

// add merges adjacent text and drops empty parts.
func (l *label) add(p style.LabelPart) {
	if p.Property == "" {
		if p.Text == "" {
			return
		}
		if n := len(l.Parts); n > 0 && l.Parts[n-1].Property == "" {
			l.Parts[n-1].Text += p.Text
			return
		}
	}
	l.Parts = append(l.Parts, p)
}

func (l label) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, p := range l.Parts {
		if p.Property != "" {
			if err := e.EncodeElement(p.Property, xml.StartElement{Name: ogc("PropertyName")}); err != nil {
				return err
			}
			continue
		}
		if err := e.EncodeToken(xml.CharData(p.Text)); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// trimIndent removes line breaks and indentation at either end of a text
// run, as written by an indenting XML encoder around child elements.
// Spaces on the same line as the text are kept.
func trimIndent(s string) string {
	lead := len(s) - len(strings.TrimLeft(s, " \t\r\n"))
	if i := strings.LastIndexByte(s[:lead], '\n'); i >= 0 {
		s = strings.TrimLeft(s[i+1:], " \t\r")
	}
	body := strings.TrimRight(s, " \t\r\n")
	if i := strings.IndexByte(s[len(body):], '\n'); i >= 0 {
		s = body + strings.TrimRight(s[len(body):len(body)+i], "\r")
	}
	return s
}

type graphic struct {
	Mark     *markElem `xml:"Mark"`
	Opacity  string    `xml:"Opacity,omitempty"`
	Size     string    `xml:"Size,omitempty"`
	Rotation string    `xml:"Rotation,omitempty"`
}

type markElem struct {
	WellKnownName string  `xml:"WellKnownName,omitempty"`
	Fill          *params `xml:"Fill"`
	Stroke        *params `xml:"Stroke"`
}

// params holds CssParameter children; SvgParameter is read as a synonym.
type params struct {
	CSS []param `xml:"CssParameter"`
	SVG []param `xml:"SvgParameter"`
}

type param struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

func (p *params) get(name string) string {
	if p == nil {
		return ""
	}
	for _, list := range [][]param{p.CSS, p.SVG} {
		for _, v := range list {
			if v.Name == name {
				return strings.TrimSpace(v.Value)
			}
		}
	}
	return ""
}

func (p *params) set(name, value string) {
	if value != "" {
		p.CSS = append(p.CSS, param{Name: name, Value: value})
	}
}

var comparisons = map[string]style.CompareOp{
	"PropertyIsEqualTo":              style.OpEqual,
	"PropertyIsNotEqualTo":           style.OpNotEqual,
	"PropertyIsLessThan":             style.OpLess,
	"PropertyIsLessThanOrEqualTo":    style.OpLessEqual,
	"PropertyIsGreaterThan":          style.OpGreater,
	"PropertyIsGreaterThanOrEqualTo": style.OpGreaterEqual,
}

var comparisonElems = map[style.CompareOp]string{
	style.OpEqual:        "PropertyIsEqualTo",
	style.OpNotEqual:     "PropertyIsNotEqualTo",
	style.OpLess:         "PropertyIsLessThan",
	style.OpLessEqual:    "PropertyIsLessThanOrEqualTo",
	style.OpGreater:      "PropertyIsGreaterThan",
	style.OpGreaterEqual: "PropertyIsGreaterThanOrEqualTo",
}

var logicOps = map[string]style.LogicOp{
	"And": style.LogicAnd,
	"Or":  style.LogicOr,
	"Not": style.LogicNot,
}

var logicElems = map[style.LogicOp]string{
	style.LogicAnd: "And",
	style.LogicOr:  "Or",
	style.LogicNot: "Not",
}

var symbolizerKinds = map[string]style.SymbolizerKind{
	"PointSymbolizer":   style.PointSymbolizer,
	"LineSymbolizer":    style.LineSymbolizer,
	"PolygonSymbolizer": style.PolygonSymbolizer,
	"TextSymbolizer":    style.TextSymbolizer,
	"RasterSymbolizer":  style.RasterSymbolizer,
}

var errNoStyle = errors.New("no UserStyle in document")

// Decode reads the first UserStyle of the first NamedLayer.
func (Format) Decode(r io.Reader) (*style.Style, error) {
	var d descriptor
	if err := xml.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode sld: %w", err)
	}
	if d.XMLName.Local != "StyledLayerDescriptor" {
		return nil, fmt.Errorf("decode sld: unexpected root %s", d.XMLName.Local)
	}
	if len(d.Layers) == 0 || len(d.Layers[0].Styles) == 0 {
		return nil, errNoStyle
	}
	s, err := d.Layers[0].Styles[0].toStyle()
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validate sld: %w", err)
	}
	return s, nil
}

func (Format) Encode(w io.Writer, s *style.Style) error {
	d := descriptor{
		Version:    Version,
		XMLNS:      nsSLD,
		XMLNSOgc:   nsOGC,
		XMLNSXLink: nsXLink,
		Layers: []namedLayer{{
			Name:   s.Name,
			Styles: []userStyle{fromStyle(s)},
		}},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(&d); err != nil {
		return fmt.Errorf("encode sld: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (u *userStyle) toStyle() (*style.Style, error) {
	out := &style.Style{Name: u.Name, Title: u.Title, Abstract: u.Abstract}
	for _, fts := range u.FeatureStyles {
		fs := style.FeatureStyle{Name: fts.Name, Title: fts.Title}
		for _, r := range fts.Rules {
			sr, err := r.toRule()
			if err != nil {
				return nil, err
			}
			fs.Rules = append(fs.Rules, sr)
		}
		out.FeatureStyles = append(out.FeatureStyles, fs)
	}
	return out, nil
}

func (r *rule) toRule() (style.Rule, error) {
	out := style.Rule{Name: r.Name, Title: r.Title, Abstract: r.Abstract, ElseFilter: r.ElseFilter != nil}
	var err error
	if out.MinScale, err = number(r.MinScale); err != nil {
		return out, fmt.Errorf("rule %q: MinScaleDenominator: %w", r.Name, err)
	}
	if out.MaxScale, err = number(r.MaxScale); err != nil {
		return out, fmt.Errorf("rule %q: MaxScaleDenominator: %w", r.Name, err)
	}
	if r.Filter != nil {
		if len(r.Filter.Children) != 1 {
			return out, fmt.Errorf("rule %q: Filter needs exactly one predicate, got %d", r.Name, len(r.Filter.Children))
		}
		if out.Filter, err = toFilter(&r.Filter.Children[0]); err != nil {
			return out, fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}
	for _, sym := range r.Symbolizers {
		kind, ok := symbolizerKinds[sym.XMLName.Local]
		if !ok {
			// vendor options and unknown elements are not part of the model
			continue
		}
		s, err := sym.toSymbolizer(kind)
		if err != nil {
			return out, fmt.Errorf("rule %q: %w", r.Name, err)
		}
		out.Symbolizers = append(out.Symbolizers, s)
	}
	return out, nil
}

func (s *symbolizer) toSymbolizer(kind style.SymbolizerKind) (style.Symbolizer, error) {
	out := style.Symbolizer{Kind: kind}
	if s.Geometry != nil {
		out.Geometry = strings.TrimSpace(s.Geometry.Property.Value)
	}
	var err error
	if out.Fill, err = toFill(s.Fill); err != nil {
		return out, err
	}
	if out.Stroke, err = toStroke(s.Stroke); err != nil {
		return out, err
	}
	if s.Label != nil {
		out.Label = s.Label.Parts
	}
	if s.Font != nil {
		size, err := number(s.Font.get("font-size"))
		if err != nil {
			return out, fmt.Errorf("font-size: %w", err)
		}
		out.Font = &style.Font{
			Family: s.Font.get("font-family"),
			Size:   size,
			Style:  s.Font.get("font-style"),
			Weight: s.Font.get("font-weight"),
		}
	}
	if out.Opacity, err = optional(s.Opacity); err != nil {
		return out, fmt.Errorf("opacity: %w", err)
	}
	if g := s.Graphic; g != nil {
		sg := &style.Graphic{}
		if sg.Size, err = number(g.Size); err != nil {
			return out, fmt.Errorf("size: %w", err)
		}
		if sg.Rotation, err = number(g.Rotation); err != nil {
			return out, fmt.Errorf("rotation: %w", err)
		}
		if sg.Opacity, err = optional(g.Opacity); err != nil {
			return out, fmt.Errorf("graphic opacity: %w", err)
		}
		if m := g.Mark; m != nil {
			sm := &style.Mark{Shape: strings.TrimSpace(m.WellKnownName)}
			if sm.Fill, err = toFill(m.Fill); err != nil {
				return out, err
			}
			if sm.Stroke, err = toStroke(m.Stroke); err != nil {
				return out, err
			}
			sg.Mark = sm
		}
		out.Graphic = sg
	}
	return out, nil
}

func toFill(p *params) (*style.Fill, error) {
	if p == nil {
		return nil, nil
	}
	op, err := optional(p.get("fill-opacity"))
	if err != nil {
		return nil, fmt.Errorf("fill-opacity: %w", err)
	}
	return &style.Fill{Color: p.get("fill"), Opacity: op}, nil
}

func toStroke(p *params) (*style.Stroke, error) {
	if p == nil {
		return nil, nil
	}
	width, err := number(p.get("stroke-width"))
	if err != nil {
		return nil, fmt.Errorf("stroke-width: %w", err)
	}
	op, err := optional(p.get("stroke-opacity"))
	if err != nil {
		return nil, fmt.Errorf("stroke-opacity: %w", err)
	}
	return &style.Stroke{Color: p.get("stroke"), Width: width, Opacity: op, DashArray: p.get("stroke-dasharray")}, nil
}

func number(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func optional(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := number(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func format(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func ogc(local string) xml.Name { return xml.Name{Space: nsOGC, Local: local} }

func fromStyle(s *style.Style) userStyle {
	u := userStyle{Name: s.Name, Title: s.Title, Abstract: s.Abstract}
	for _, fs := range s.FeatureStyles {
		fts := featureTypeStyle{Name: fs.Name, Title: fs.Title}
		for _, r := range fs.Rules {
			fts.Rules = append(fts.Rules, fromRule(r))
		}
		u.FeatureStyles = append(u.FeatureStyles, fts)
	}
	return u
}

func fromRule(r style.Rule) rule {
	out := rule{
		Name:     r.Name,
		Title:    r.Title,
		Abstract: r.Abstract,
		MinScale: format(r.MinScale),
		MaxScale: format(r.MaxScale),
	}
	if r.ElseFilter {
		out.ElseFilter = &struct{}{}
	}
	if r.Filter != nil {
		out.Filter = &filterNode{XMLName: ogc("Filter"), Children: []filterNode{fromFilter(r.Filter)}}
	}
	for _, s := range r.Symbolizers {
		out.Symbolizers = append(out.Symbolizers, fromSymbolizer(s))
	}
	return out
}

func fromSymbolizer(s style.Symbolizer) symbolizer {
	local := "PointSymbolizer"
	for name, k := range symbolizerKinds {
		if k == s.Kind {
			local = name
			break
		}
	}
	out := symbolizer{XMLName: xml.Name{Local: local}, Opacity: formatOptional(s.Opacity)}
	if s.Geometry != "" {
		out.Geometry = &geometry{Property: propertyName{XMLName: ogc("PropertyName"), Value: s.Geometry}}
	}
	if len(s.Label) > 0 {
		out.Label = &label{Parts: s.Label}
	}
	if f := s.Font; f != nil {
		p := &params{}
		p.set("font-family", f.Family)
		p.set("font-size", format(f.Size))
		p.set("font-style", f.Style)
		p.set("font-weight", f.Weight)
		out.Font = p
	}
	out.Fill = fromFill(s.Fill)
	out.Stroke = fromStroke(s.Stroke)
	if g := s.Graphic; g != nil {
		og := &graphic{Size: format(g.Size), Rotation: format(g.Rotation), Opacity: formatOptional(g.Opacity)}
		if m := g.Mark; m != nil {
			og.Mark = &markElem{WellKnownName: m.Shape, Fill: fromFill(m.Fill), Stroke: fromStroke(m.Stroke)}
		}
		out.Graphic = og
	}
	return out
}

func fromFill(f *style.Fill) *params {
	if f == nil {
		return nil
	}
	p := &params{}
	p.set("fill", f.Color)
	p.set("fill-opacity", formatOptional(f.Opacity))
	return p
}

func fromStroke(s *style.Stroke) *params {
	if s == nil {
		return nil
	}
	p := &params{}
	p.set("stroke", s.Color)
	p.set("stroke-width", format(s.Width))
	p.set("stroke-opacity", formatOptional(s.Opacity))
	p.set("stroke-dasharray", s.DashArray)
	return p
}
