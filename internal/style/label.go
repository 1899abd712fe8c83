package style

import (
	"fmt"
	"strings"
)

// LabelPart is literal text when Property is empty, a property reference
// otherwise.
type LabelPart struct {
	Property string
	Text     string
}

// ParseLabel splits "Pop. ${PERSONS}" into literal and property parts.
func ParseLabel(s string) ([]LabelPart, error) {
	var out []LabelPart
	for s != "" {
		i := strings.Index(s, "${")
		if i < 0 {
			out = append(out, LabelPart{Text: s})
			break
		}
		if i > 0 {
			out = append(out, LabelPart{Text: s[:i]})
		}
		j := strings.IndexByte(s[i:], '}')
		if j < 0 {
			return nil, fmt.Errorf("unterminated property reference in label %q", s)
		}
		name := strings.TrimSpace(s[i+2 : i+j])
		if name == "" {
			return nil, fmt.Errorf("empty property reference in label %q", s)
		}
		out = append(out, LabelPart{Property: name})
		s = s[i+j+1:]
	}
	return out, nil
}

// LabelExpression is the inverse of ParseLabel.
func LabelExpression(parts []LabelPart) string {
	var b strings.Builder
	for _, p := range parts {
		if p.Property != "" {
			b.WriteString("${" + p.Property + "}")
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}
