package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9:_.=\-]+$`)

func TestStyleBody_Determinism(t *testing.T) {
	k1 := StyleBody("styles", "topp", "states.yaml")
	k2 := StyleBody("styles", "topp", "states.yaml")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
	if !strings.HasPrefix(k1, "styles:topp:states.yaml:h=") {
		t.Fatalf("unexpected key shape: %s", k1)
	}
}

func TestStyleBody_GlobalAndPrefix(t *testing.T) {
	k := StyleBody("", "", "point.sld")
	if !strings.HasPrefix(k, "styles:_global:point.sld:") {
		t.Fatalf("unexpected key: %s", k)
	}
	k = StyleBody("gs:", "sf", "roads.yaml")
	if !strings.HasPrefix(k, "gs:sf:roads.yaml:") {
		t.Fatalf("unexpected key: %s", k)
	}
}

func TestStyleBody_SanitizedNamesStayDistinct(t *testing.T) {
	k1 := StyleBody("styles", "topp", "my style.yaml")
	k2 := StyleBody("styles", "topp", "my_style.yaml")
	if k1 == k2 {
		t.Fatalf("distinct raw names collided: %s", k1)
	}
	for _, k := range []string{k1, k2} {
		if !keyPattern.MatchString(k) {
			t.Fatalf("key contains disallowed characters: %s", k)
		}
	}

	// workspace is part of the identity too
	if StyleBody("styles", "a", "x.yaml") == StyleBody("styles", "b", "x.yaml") {
		t.Fatal("workspaces collided")
	}
}

func TestStyleBody_UnicodeSafety(t *testing.T) {
	k := StyleBody("styles", "göteborg", "雪:stil.yaml")
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	if !regexp.MustCompile(`:h=[0-9a-f]{16}$`).MatchString(k) {
		t.Fatalf("missing hash suffix: %s", k)
	}
}

func TestETag(t *testing.T) {
	a := ETag([]byte("name: a\n"))
	if a != ETag([]byte("name: a\n")) {
		t.Fatal("etag not deterministic")
	}
	if a == ETag([]byte("name: b\n")) {
		t.Fatal("etag collision")
	}
	if !regexp.MustCompile(`^"[0-9a-f]{16}"$`).MatchString(a) {
		t.Fatalf("etag=%s", a)
	}
}
