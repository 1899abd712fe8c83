package style

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"slices"
	"sort"
	"strings"
)

// Format is one style language.
type Format interface {
	// tag stored on style records, e.g. "sld"
	Name() string
	// file extension without the dot
	Extension() string
	MediaType() string
	Decode(r io.Reader) (*Style, error)
	Encode(w io.Writer, s *Style) error
}

// DefaultFormat applies to records that carry no format tag.
const DefaultFormat = "sld"

var ErrUnknownFormat = errors.New("unknown style format")

type Registry struct {
	byName map[string]Format
}

func NewRegistry(fs ...Format) *Registry {
	r := &Registry{byName: make(map[string]Format, len(fs))}
	for _, f := range fs {
		r.byName[strings.ToLower(f.Name())] = f
	}
	return r
}

func (r *Registry) Lookup(tag string) (Format, error) {
	key := strings.ToLower(strings.TrimSpace(tag))
	if key == "" {
		key = DefaultFormat
	}
	f, ok := r.byName[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, tag)
	}
	return f, nil
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// aliased is implemented by formats known under more than one media type.
type aliased interface {
	MediaTypeAliases() []string
}

// AcceptsMediaType reports whether a Content-Type header names f's media
// type or one of its aliases. Parameters are ignored and text/plain is
// always accepted.
func AcceptsMediaType(f Format, header string) bool {
	if strings.TrimSpace(header) == "" {
		return true
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return false
	}
	switch mt {
	case f.MediaType(), "text/plain", "application/octet-stream":
		return true
	}
	if a, ok := f.(aliased); ok {
		return slices.Contains(a.MediaTypeAliases(), mt)
	}
	return false
}
