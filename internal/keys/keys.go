// Package keys builds storage keys and content tags for style payloads.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

const globalSegment = "_global"

// StyleBody is the storage key of a style file. The readable part is
// sanitized, the hash suffix keeps keys of distinct raw names apart.
func StyleBody(prefix, workspace, filename string) string {
	ws := sanitizeSegment(strings.TrimSpace(workspace))
	if ws == "" {
		ws = globalSegment
	}
	name := strings.TrimSpace(filename)
	sum := xxhash.Sum64String(workspace + "\x00" + name)

	const maxNameLen = 120
	safe := sanitizeSegment(name)
	if len(safe) > maxNameLen {
		safe = safe[:maxNameLen]
	}

	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "styles"
	}
	return fmt.Sprintf("%s:%s:%s:h=%016x", p, ws, safe, sum)
}

// ETag is a strong entity tag for a payload.
func ETag(b []byte) string {
	return fmt.Sprintf(`"%016x"`, xxhash.Sum64(b))
}

func sanitizeSegment(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		var out rune
		switch {
		case isASCIIWhitespace(r):
			out = '_'
		case isAlphaNum(r) || r == '.' || r == '_' || r == '-':
			out = r
		default:
			// ':' included, it separates key segments
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isASCIIWhitespace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r < unicode.MaxASCII && unicode.IsDigit(r))
}
