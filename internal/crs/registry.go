package crs

import (
	"fmt"
	"strconv"
	"strings"
)

type entry struct {
	name string
	kind Kind
	unit string
}

// small built-in subset of the EPSG database
var epsg = map[int]entry{
	4326:   {"WGS 84", KindGeographic, UnitDegree},
	4269:   {"NAD83", KindGeographic, UnitDegree},
	4258:   {"ETRS89", KindGeographic, UnitDegree},
	4267:   {"NAD27", KindGeographic, UnitDegree},
	3857:   {"WGS 84 / Pseudo-Mercator", KindProjected, UnitMetre},
	900913: {"Google Maps Global Mercator", KindProjected, UnitMetre},
	3395:   {"WGS 84 / World Mercator", KindProjected, UnitMetre},
	27700:  {"OSGB 1936 / British National Grid", KindProjected, UnitMetre},
	2056:   {"CH1903+ / LV95", KindProjected, UnitMetre},
	3006:   {"SWEREF99 TM", KindProjected, UnitMetre},
	2227:   {"NAD83 / California zone 3 (ftUS)", KindProjected, UnitFoot},
	2263:   {"NAD83 / New York Long Island (ftUS)", KindProjected, UnitFoot},
	2272:   {"NAD83 / Pennsylvania South (ftUS)", KindProjected, UnitFoot},
	2868:   {"NAD83(HARN) / Arizona Central (ft)", KindProjected, UnitFoot},
	5703:   {"NAVD88 height", KindOther, UnitMetre},
	4978:   {"WGS 84 (geocentric)", KindOther, UnitMetre},
}

// ParseCode extracts the numeric EPSG code from the usual spellings:
// "EPSG:4326", "epsg:4326", "urn:ogc:def:crs:EPSG::4326",
// "http://www.opengis.net/gml/srs/epsg.xml#4326".
func ParseCode(srs string) (int, error) {
	s := strings.TrimSpace(srs)
	if s == "" {
		return 0, fmt.Errorf("empty srs")
	}
	switch strings.ToUpper(s) {
	case "CRS:84", "OGC:CRS84", "URN:OGC:DEF:CRS:OGC:1.3:CRS84":
		return 4326, nil
	}
	cut := strings.LastIndexAny(s, ":#")
	if cut < 0 {
		return 0, fmt.Errorf("srs %q: missing authority", srs)
	}
	auth := strings.ToUpper(s[:cut])
	if !strings.Contains(auth, "EPSG") {
		return 0, fmt.Errorf("srs %q: unsupported authority", srs)
	}
	code, err := strconv.Atoi(s[cut+1:])
	if err != nil {
		return 0, fmt.Errorf("srs %q: %w", srs, err)
	}
	return code, nil
}

// Lookup resolves an SRS identifier against the built-in registry.
// UTM zones (EPSG:326xx / 327xx) are generated.
func Lookup(srs string) (*Definition, error) {
	code, err := ParseCode(srs)
	if err != nil {
		return nil, err
	}
	e, ok := epsg[code]
	if !ok {
		e, ok = utm(code)
	}
	if !ok {
		return nil, fmt.Errorf("EPSG:%d: not in registry", code)
	}
	d := &Definition{Code: "EPSG:" + strconv.Itoa(code), Name: e.name, Type: e.kind}
	switch e.kind {
	case KindGeographic:
		d.CS = geographicCS(e.unit)
	case KindProjected:
		d.CS = cartesianCS(e.unit)
	default:
		d.CS = &CoordinateSystem{Name: "Other", Axes: []Axis{{Name: "Height", Direction: "UP", Unit: e.unit}}}
	}
	return d, nil
}

func utm(code int) (entry, bool) {
	switch {
	case code >= 32601 && code <= 32660:
		return entry{fmt.Sprintf("WGS 84 / UTM zone %dN", code-32600), KindProjected, UnitMetre}, true
	case code >= 32701 && code <= 32760:
		return entry{fmt.Sprintf("WGS 84 / UTM zone %dS", code-32700), KindProjected, UnitMetre}, true
	}
	return entry{}, false
}
