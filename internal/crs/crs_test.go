package crs

import (
	"errors"
	"testing"
)

const wktCA3 = `PROJCS["NAD83 / California zone 3 (ftUS)",
  GEOGCS["NAD83",
    DATUM["North_American_Datum_1983", SPHEROID["GRS 1980",6378137,298.257222101]],
    PRIMEM["Greenwich",0],
    UNIT["degree",0.0174532925199433],
    AUTHORITY["EPSG","4269"]],
  PROJECTION["Lambert_Conformal_Conic_2SP"],
  PARAMETER["standard_parallel_1",38.43333333333333],
  UNIT["US survey foot",0.3048006096012192],
  AXIS["X",EAST],
  AXIS["Y",NORTH],
  AUTHORITY["EPSG","2227"]]`

func TestParseCode(t *testing.T) {
	cases := map[string]int{
		"EPSG:4326":                  4326,
		"epsg:3857":                  3857,
		"urn:ogc:def:crs:EPSG::2227": 2227,
		"http://www.opengis.net/gml/srs/epsg.xml#27700": 27700,
		"CRS:84": 4326,
	}
	for in, want := range cases {
		got, err := ParseCode(in)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got != want {
			t.Fatalf("%s: got %d want %d", in, got, want)
		}
	}

	for _, bad := range []string{"", "4326", "ESRI:102100", "EPSG:abc"} {
		if _, err := ParseCode(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestLookup_Kinds(t *testing.T) {
	cases := []struct {
		srs  string
		kind Kind
		unit string
	}{
		{"EPSG:4326", KindGeographic, UnitDegree},
		{"EPSG:3857", KindProjected, UnitMetre},
		{"EPSG:2263", KindProjected, UnitFoot},
		{"EPSG:32633", KindProjected, UnitMetre},
		{"EPSG:32756", KindProjected, UnitMetre},
		{"EPSG:5703", KindOther, UnitMetre},
	}
	for _, c := range cases {
		d, err := Lookup(c.srs)
		if err != nil {
			t.Fatalf("%s: %v", c.srs, err)
		}
		if d.Kind() != c.kind {
			t.Fatalf("%s: kind=%v want %v", c.srs, d.Kind(), c.kind)
		}
		cs, err := d.CoordinateSystem()
		if err != nil {
			t.Fatalf("%s: cs: %v", c.srs, err)
		}
		ax, err := cs.Axis(0)
		if err != nil {
			t.Fatalf("%s: axis: %v", c.srs, err)
		}
		if ax.Unit != c.unit {
			t.Fatalf("%s: unit=%q want %q", c.srs, ax.Unit, c.unit)
		}
	}

	if _, err := Lookup("EPSG:1"); err == nil {
		t.Fatal("expected unknown code error")
	}
}

func TestParseWKT_Projected(t *testing.T) {
	d, err := ParseWKT(wktCA3)
	if err != nil {
		t.Fatalf("ParseWKT: %v", err)
	}
	if d.Kind() != KindProjected {
		t.Fatalf("kind=%v", d.Kind())
	}
	if d.Code != "EPSG:2227" {
		t.Fatalf("code=%q", d.Code)
	}
	cs, err := d.CoordinateSystem()
	if err != nil {
		t.Fatal(err)
	}
	if len(cs.Axes) != 2 || cs.Axes[0].Unit != UnitFoot || cs.Axes[1].Direction != "NORTH" {
		t.Fatalf("axes=%+v", cs.Axes)
	}
}

func TestParseWKT_GeographicDefaults(t *testing.T) {
	d, err := ParseWKT(`GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]]`)
	if err != nil {
		t.Fatalf("ParseWKT: %v", err)
	}
	if d.Kind() != KindGeographic {
		t.Fatalf("kind=%v", d.Kind())
	}
	cs, err := d.CoordinateSystem()
	if err != nil {
		t.Fatal(err)
	}
	if cs.Axes[0].Unit != UnitDegree || cs.Axes[0].Direction != "EAST" {
		t.Fatalf("axes=%+v", cs.Axes)
	}
}

func TestParseWKT_LocalWithoutAxesHasNoCoordinateSystem(t *testing.T) {
	d, err := ParseWKT(`LOCAL_CS["site grid"]`)
	if err != nil {
		t.Fatalf("ParseWKT: %v", err)
	}
	if d.Kind() != KindOther {
		t.Fatalf("kind=%v", d.Kind())
	}
	if _, err := d.CoordinateSystem(); err == nil {
		t.Fatal("expected missing coordinate system error")
	}
}

func TestParseWKT_Compound(t *testing.T) {
	d, err := ParseWKT(`COMPD_CS["NAD83 + NAVD88",
		PROJCS["NAD83 / NY",GEOGCS["NAD83",UNIT["degree",0.01745]],UNIT["foot",0.3048],AXIS["X",EAST],AXIS["Y",NORTH]],
		VERT_CS["NAVD88",UNIT["metre",1],AXIS["Up",UP]]]`)
	if err != nil {
		t.Fatalf("ParseWKT: %v", err)
	}
	if d.Kind() != KindOther {
		t.Fatalf("kind=%v", d.Kind())
	}
	cs, _ := d.CoordinateSystem()
	if len(cs.Axes) != 3 || cs.Axes[0].Unit != UnitFoot || cs.Axes[2].Unit != UnitMetre {
		t.Fatalf("axes=%+v", cs.Axes)
	}
}

func TestParseWKT_Errors(t *testing.T) {
	for _, bad := range []string{
		``,
		`GEOGCS["x"`,
		`FOO["x"]`,
		`GEOGCS["x"] trailing`,
		`GEOGCS["unterminated]`,
	} {
		if _, err := ParseWKT(bad); err == nil {
			t.Fatalf("%q: expected error", bad)
		}
	}
}

func TestUnitSymbol(t *testing.T) {
	cases := map[string]string{
		"metre":          UnitMetre,
		"Meter":          UnitMetre,
		"US survey foot": UnitFoot,
		"foot":           UnitFoot,
		"degree":         UnitDegree,
		"feets":          "feets",
		"Chain":          "chain",
	}
	for in, want := range cases {
		if got := UnitSymbol(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}

func TestResolver_CachesAndPrefersWKT(t *testing.T) {
	r := NewResolver(4)

	d1, err := r.Resolve("EPSG:4326", "")
	if err != nil {
		t.Fatal(err)
	}
	d2, err := r.Resolve("epsg:4326", "")
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Fatal("expected cached definition to be reused")
	}

	// explicit wkt wins over the registry entry for the same code
	d3, err := r.Resolve("EPSG:4326", wktCA3)
	if err != nil {
		t.Fatal(err)
	}
	if d3.Kind() != KindProjected {
		t.Fatalf("kind=%v want projected", d3.Kind())
	}
	if r.Len() != 2 {
		t.Fatalf("cache len=%d want 2", r.Len())
	}

	if _, err := r.Resolve("EPSG:999999", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestAxis_OutOfRange(t *testing.T) {
	var cs *CoordinateSystem
	if _, err := cs.Axis(0); !errors.Is(err, ErrNoAxis) {
		t.Fatalf("err=%v want ErrNoAxis", err)
	}
}
