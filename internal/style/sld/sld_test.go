package sld

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
	"github.com/mohammed-shakir/geo-layer-backend/internal/style/ysld"
)

const populationSLD = `<?xml version="1.0" encoding="UTF-8"?>
<StyledLayerDescriptor version="1.0.0"
    xmlns="http://www.opengis.net/sld" xmlns:ogc="http://www.opengis.net/ogc">
  <NamedLayer>
    <Name>states</Name>
    <UserStyle>
      <Name>population</Name>
      <Title>Population in the United States</Title>
      <FeatureTypeStyle>
        <Rule>
          <Name>low</Name>
          <ogc:Filter>
            <ogc:PropertyIsLessThan>
              <ogc:PropertyName>PERSONS</ogc:PropertyName>
              <ogc:Literal>2000000</ogc:Literal>
            </ogc:PropertyIsLessThan>
          </ogc:Filter>
          <MaxScaleDenominator>4000000</MaxScaleDenominator>
          <PolygonSymbolizer>
            <Fill>
              <CssParameter name="fill">#4DFF4D</CssParameter>
              <CssParameter name="fill-opacity">0.7</CssParameter>
            </Fill>
            <Stroke>
              <SvgParameter name="stroke-width">0.5</SvgParameter>
            </Stroke>
          </PolygonSymbolizer>
          <VendorOption name="group">yes</VendorOption>
        </Rule>
        <Rule>
          <Name>rest</Name>
          <ElseFilter/>
          <PolygonSymbolizer>
            <Fill><CssParameter name="fill">#FF4D4D</CssParameter></Fill>
          </PolygonSymbolizer>
          <TextSymbolizer>
            <Label><ogc:PropertyName>STATE_ABBR</ogc:PropertyName></Label>
            <Font>
              <CssParameter name="font-family">Arial</CssParameter>
              <CssParameter name="font-size">12</CssParameter>
            </Font>
          </TextSymbolizer>
          <PointSymbolizer>
            <Graphic>
              <Mark>
                <WellKnownName>circle</WellKnownName>
                <Fill><CssParameter name="fill">#FF0000</CssParameter></Fill>
              </Mark>
              <Size>6</Size>
            </Graphic>
          </PointSymbolizer>
        </Rule>
      </FeatureTypeStyle>
    </UserStyle>
  </NamedLayer>
</StyledLayerDescriptor>
`

func TestDecode_Population(t *testing.T) {
	s, err := Format{}.Decode(strings.NewReader(populationSLD))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if s.Name != "population" {
		t.Fatalf("name=%q", s.Name)
	}
	rules := s.FeatureStyles[0].Rules
	low := rules[0]
	if !reflect.DeepEqual(low.Filter, style.Compare("PERSONS", style.OpLess, "2000000")) {
		t.Fatalf("filter=%+v", low.Filter)
	}
	if low.MaxScale != 4000000 || len(low.Symbolizers) != 1 {
		t.Fatalf("low=%+v", low)
	}
	poly := low.Symbolizers[0]
	if poly.Fill.Color != "#4DFF4D" || *poly.Fill.Opacity != 0.7 || poly.Stroke.Width != 0.5 {
		t.Fatalf("poly=%+v", poly)
	}

	rest := rules[1]
	if !rest.ElseFilter {
		t.Fatal("else filter lost")
	}
	kinds := []style.SymbolizerKind{}
	for _, sym := range rest.Symbolizers {
		kinds = append(kinds, sym.Kind)
	}
	if len(kinds) != 3 || kinds[0] != style.PolygonSymbolizer || kinds[1] != style.TextSymbolizer || kinds[2] != style.PointSymbolizer {
		t.Fatalf("symbolizer order=%v", kinds)
	}
	if !reflect.DeepEqual(rest.Symbolizers[1].Label, []style.LabelPart{{Property: "STATE_ABBR"}}) || rest.Symbolizers[1].Font.Size != 12 {
		t.Fatalf("text=%+v", rest.Symbolizers[1])
	}
	if g := rest.Symbolizers[2].Graphic; g.Size != 6 || g.Mark.Shape != "circle" {
		t.Fatalf("graphic=%+v", g)
	}
}

func TestDecode_Invalid(t *testing.T) {
	cases := map[string]string{
		"not xml":      "name: population",
		"wrong root":   "<Style/>",
		"no style":     `<StyledLayerDescriptor><NamedLayer><Name>x</Name></NamedLayer></StyledLayerDescriptor>`,
		"no rules":     `<StyledLayerDescriptor><NamedLayer><UserStyle><Name>x</Name></UserStyle></NamedLayer></StyledLayerDescriptor>`,
		"bad scale":    `<StyledLayerDescriptor><NamedLayer><UserStyle><FeatureTypeStyle><Rule><MinScaleDenominator>big</MinScaleDenominator></Rule></FeatureTypeStyle></UserStyle></NamedLayer></StyledLayerDescriptor>`,
		"spatial op":   `<StyledLayerDescriptor><NamedLayer><UserStyle><FeatureTypeStyle><Rule><Filter><BBOX/></Filter></Rule></FeatureTypeStyle></UserStyle></NamedLayer></StyledLayerDescriptor>`,
		"unterminated": `<StyledLayerDescriptor><NamedLayer>`,
	}
	for name, src := range cases {
		if _, err := (Format{}).Decode(strings.NewReader(src)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestEncode_NamespacesAndOrder(t *testing.T) {
	s, err := Format{}.Decode(strings.NewReader(populationSLD))
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := (Format{}).Encode(&buf, s); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`xmlns="http://www.opengis.net/sld"`,
		`<Filter xmlns="http://www.opengis.net/ogc">`,
		`<CssParameter name="fill">#4DFF4D</CssParameter>`,
		`<ElseFilter></ElseFilter>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Index(out, "<TextSymbolizer>") > strings.Index(out, "<PointSymbolizer>") {
		t.Fatalf("symbolizer order not kept:\n%s", out)
	}

	back, err := Format{}.Decode(&buf)
	if err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if !reflect.DeepEqual(back.FeatureStyles[0].Rules[0].Filter, s.FeatureStyles[0].Rules[0].Filter) {
		t.Fatal("filter changed")
	}
}

func TestConvert_SLDToYSLDAndBack(t *testing.T) {
	src, err := Format{}.Decode(strings.NewReader(populationSLD))
	if err != nil {
		t.Fatal(err)
	}
	var y bytes.Buffer
	if err := (ysld.Format{}).Encode(&y, src); err != nil {
		t.Fatalf("ysld encode: %v", err)
	}
	mid, err := ysld.Parse(y.Bytes())
	if err != nil {
		t.Fatalf("ysld parse: %v\n%s", err, y.String())
	}
	var x bytes.Buffer
	if err := (Format{}).Encode(&x, mid); err != nil {
		t.Fatalf("sld encode: %v", err)
	}
	back, err := Format{}.Decode(&x)
	if err != nil {
		t.Fatalf("sld decode: %v", err)
	}

	r1, s1 := src.Counts()
	r2, s2 := back.Counts()
	if r1 != r2 || s1 != s2 {
		t.Fatalf("counts %d/%d -> %d/%d", r1, s1, r2, s2)
	}
	got := back.FeatureStyles[0].Rules[1].Symbolizers[2].Graphic.Mark.Fill.Color
	if got != "#FF0000" {
		t.Fatalf("mark fill=%q", got)
	}
}

func wrapRules(rules string) string {
	return `<StyledLayerDescriptor version="1.0.0" xmlns="http://www.opengis.net/sld" xmlns:ogc="http://www.opengis.net/ogc">
<NamedLayer><Name>roads</Name><UserStyle><Name>roads</Name><FeatureTypeStyle>` + rules + `</FeatureTypeStyle></UserStyle></NamedLayer></StyledLayerDescriptor>`
}

func filterRule(name, filter string) string {
	return `<Rule><Name>` + name + `</Name><ogc:Filter>` + filter + `</ogc:Filter>
<LineSymbolizer><Stroke><CssParameter name="stroke">#000000</CssParameter></Stroke></LineSymbolizer></Rule>`
}

func TestConvert_FilterTree(t *testing.T) {
	cases := []struct {
		name   string
		filter string
		want   string
	}{
		{"and", `<ogc:And>
			<ogc:PropertyIsGreaterThan><ogc:PropertyName>a</ogc:PropertyName><ogc:Literal>10</ogc:Literal></ogc:PropertyIsGreaterThan>
			<ogc:PropertyIsLessThan><ogc:PropertyName>a</ogc:PropertyName><ogc:Literal>20</ogc:Literal></ogc:PropertyIsLessThan>
		</ogc:And>`, "${a > 10 AND a < 20}"},
		{"or", `<ogc:Or>
			<ogc:PropertyIsEqualTo><ogc:PropertyName>kind</ogc:PropertyName><ogc:Literal>river</ogc:Literal></ogc:PropertyIsEqualTo>
			<ogc:PropertyIsEqualTo><ogc:PropertyName>kind</ogc:PropertyName><ogc:Literal>lake</ogc:Literal></ogc:PropertyIsEqualTo>
		</ogc:Or>`, "${kind = 'river' OR kind = 'lake'}"},
		{"not", `<ogc:Not><ogc:PropertyIsNull><ogc:PropertyName>name</ogc:PropertyName></ogc:PropertyIsNull></ogc:Not>`,
			"${NOT (name IS NULL)}"},
		{"between", `<ogc:PropertyIsBetween><ogc:PropertyName>POP</ogc:PropertyName>
			<ogc:LowerBoundary><ogc:Literal>1000</ogc:Literal></ogc:LowerBoundary>
			<ogc:UpperBoundary><ogc:Literal>5000</ogc:Literal></ogc:UpperBoundary>
		</ogc:PropertyIsBetween>`, "${POP BETWEEN 1000 AND 5000}"},
		{"two properties", `<ogc:PropertyIsGreaterThanOrEqualTo><ogc:PropertyName>LANES</ogc:PropertyName><ogc:PropertyName>MIN_LANES</ogc:PropertyName></ogc:PropertyIsGreaterThanOrEqualTo>`,
			"${LANES >= MIN_LANES}"},
		{"literal first", `<ogc:PropertyIsEqualTo><ogc:Literal>1</ogc:Literal><ogc:PropertyName>flag</ogc:PropertyName></ogc:PropertyIsEqualTo>`,
			"${1 = flag}"},
		{"like", `<ogc:PropertyIsLike wildCard="*" singleChar="." escape="!"><ogc:PropertyName>name</ogc:PropertyName><ogc:Literal>New*ork!.</ogc:Literal></ogc:PropertyIsLike>`,
			"${name LIKE 'New%ork.'}"},
		{"nested", `<ogc:Or>
			<ogc:And>
				<ogc:PropertyIsEqualTo><ogc:PropertyName>a</ogc:PropertyName><ogc:Literal>1</ogc:Literal></ogc:PropertyIsEqualTo>
				<ogc:PropertyIsNotEqualTo><ogc:PropertyName>b</ogc:PropertyName><ogc:Literal>2</ogc:Literal></ogc:PropertyIsNotEqualTo>
			</ogc:And>
			<ogc:Not><ogc:PropertyIsLessThanOrEqualTo><ogc:PropertyName>c</ogc:PropertyName><ogc:Literal>3</ogc:Literal></ogc:PropertyIsLessThanOrEqualTo></ogc:Not>
		</ogc:Or>`, "${(a = 1 AND b <> 2) OR NOT (c <= 3)}"},
	}

	var rules strings.Builder
	for _, c := range cases {
		rules.WriteString(filterRule(c.name, c.filter))
	}
	src, err := Format{}.Decode(strings.NewReader(wrapRules(rules.String())))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	var y bytes.Buffer
	if err := (ysld.Format{}).Encode(&y, src); err != nil {
		t.Fatalf("ysld encode: %v", err)
	}
	if !strings.Contains(y.String(), "${a > 10 AND a < 20}") {
		t.Fatalf("and filter not rendered as expression:\n%s", y.String())
	}
	mid, err := ysld.Parse(y.Bytes())
	if err != nil {
		t.Fatalf("ysld parse: %v\n%s", err, y.String())
	}
	var x bytes.Buffer
	if err := (Format{}).Encode(&x, mid); err != nil {
		t.Fatalf("sld encode: %v", err)
	}
	back, err := Format{}.Decode(&x)
	if err != nil {
		t.Fatalf("sld decode: %v\n%s", err, x.String())
	}

	for i, c := range cases {
		f := src.FeatureStyles[0].Rules[i].Filter
		if got := f.Expression(); got != c.want {
			t.Fatalf("%s: expression=%q want %q", c.name, got, c.want)
		}
		if m := mid.FeatureStyles[0].Rules[i].Filter; !reflect.DeepEqual(m, f) {
			t.Fatalf("%s: ysld filter=%s want %s", c.name, m.Expression(), c.want)
		}
		if b := back.FeatureStyles[0].Rules[i].Filter; !reflect.DeepEqual(b, f) {
			t.Fatalf("%s: sld filter=%s want %s", c.name, b.Expression(), c.want)
		}
	}
	if !strings.Contains(x.String(), `wildCard="%" singleChar="_" escape="\"`) {
		t.Fatalf("like attributes missing:\n%s", x.String())
	}
}

func TestDecode_FilterErrors(t *testing.T) {
	cases := map[string]string{
		"two predicates": `<ogc:PropertyIsNull><ogc:PropertyName>a</ogc:PropertyName></ogc:PropertyIsNull>
			<ogc:PropertyIsNull><ogc:PropertyName>b</ogc:PropertyName></ogc:PropertyIsNull>`,
		"lonely and":     `<ogc:And><ogc:PropertyIsNull><ogc:PropertyName>a</ogc:PropertyName></ogc:PropertyIsNull></ogc:And>`,
		"no boundary":    `<ogc:PropertyIsBetween><ogc:PropertyName>a</ogc:PropertyName><ogc:LowerBoundary><ogc:Literal>1</ogc:Literal></ogc:LowerBoundary></ogc:PropertyIsBetween>`,
		"function":       `<ogc:PropertyIsEqualTo><ogc:Function name="strLength"/><ogc:Literal>1</ogc:Literal></ogc:PropertyIsEqualTo>`,
		"like property":  `<ogc:PropertyIsLike><ogc:PropertyName>a</ogc:PropertyName><ogc:PropertyName>b</ogc:PropertyName></ogc:PropertyIsLike>`,
		"only literals":  `<ogc:PropertyIsEqualTo><ogc:Literal>1</ogc:Literal><ogc:Literal>1</ogc:Literal></ogc:PropertyIsEqualTo>`,
		"empty property": `<ogc:PropertyIsNull><ogc:PropertyName> </ogc:PropertyName></ogc:PropertyIsNull>`,
		"three operands": `<ogc:PropertyIsEqualTo><ogc:PropertyName>a</ogc:PropertyName><ogc:Literal>1</ogc:Literal><ogc:Literal>2</ogc:Literal></ogc:PropertyIsEqualTo>`,
	}
	for name, filter := range cases {
		if _, err := (Format{}).Decode(strings.NewReader(wrapRules(filterRule("r", filter)))); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestConvert_Labels(t *testing.T) {
	cases := []struct {
		name  string
		label string
		want  []style.LabelPart
		ysld  string
	}{
		{"literal", `<Label>Capital</Label>`, []style.LabelPart{{Text: "Capital"}}, "label: Capital"},
		{"property", `<Label><ogc:PropertyName>STATE_ABBR</ogc:PropertyName></Label>`, []style.LabelPart{{Property: "STATE_ABBR"}}, "label: ${STATE_ABBR}"},
		{"mixed", `<Label>Pop. <ogc:PropertyName>PERSONS</ogc:PropertyName></Label>`, []style.LabelPart{{Text: "Pop. "}, {Property: "PERSONS"}}, "${PERSONS}"},
		{"literal element", `<Label><ogc:Literal>Lake </ogc:Literal><ogc:PropertyName>NAME</ogc:PropertyName></Label>`, []style.LabelPart{{Text: "Lake "}, {Property: "NAME"}}, "${NAME}"},
	}
	for _, c := range cases {
		doc := wrapRules(`<Rule><TextSymbolizer>` + c.label + `</TextSymbolizer></Rule>`)
		src, err := Format{}.Decode(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("%s: decode: %v", c.name, err)
		}
		if got := src.FeatureStyles[0].Rules[0].Symbolizers[0].Label; !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s: label=%+v want %+v", c.name, got, c.want)
		}

		var y bytes.Buffer
		if err := (ysld.Format{}).Encode(&y, src); err != nil {
			t.Fatalf("%s: ysld encode: %v", c.name, err)
		}
		if !strings.Contains(y.String(), c.ysld) {
			t.Fatalf("%s: missing %q in:\n%s", c.name, c.ysld, y.String())
		}
		mid, err := ysld.Parse(y.Bytes())
		if err != nil {
			t.Fatalf("%s: ysld parse: %v\n%s", c.name, err, y.String())
		}
		var x bytes.Buffer
		if err := (Format{}).Encode(&x, mid); err != nil {
			t.Fatalf("%s: sld encode: %v", c.name, err)
		}
		back, err := Format{}.Decode(&x)
		if err != nil {
			t.Fatalf("%s: sld decode: %v", c.name, err)
		}
		if got := back.FeatureStyles[0].Rules[0].Symbolizers[0].Label; !reflect.DeepEqual(got, c.want) {
			t.Fatalf("%s: round trip label=%+v want %+v\n%s", c.name, got, c.want, x.String())
		}
	}
}
