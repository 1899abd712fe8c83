package crs

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Resolver turns SRS identifiers and WKT definitions into CRS values and
// keeps recent results. Definitions are immutable once built, so cached
// values are shared between callers.
type Resolver struct {
	cache *lru.Cache[string, *Definition]
}

func NewResolver(size int) *Resolver {
	if size <= 0 {
		size = 256
	}
	c, _ := lru.New[string, *Definition](size)
	return &Resolver{cache: c}
}

// Resolve prefers an explicit WKT definition and falls back to the registry
// entry for srs.
func (r *Resolver) Resolve(srs, wkt string) (*Definition, error) {
	key := cacheKey(srs, wkt)
	if d, ok := r.cache.Get(key); ok {
		return d, nil
	}

	var (
		d   *Definition
		err error
	)
	if strings.TrimSpace(wkt) != "" {
		d, err = ParseWKT(wkt)
		if err == nil && d.Code == "" {
			d.Code = strings.TrimSpace(srs)
		}
	} else {
		d, err = Lookup(srs)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve crs %q: %w", srs, err)
	}
	r.cache.Add(key, d)
	return d, nil
}

func (r *Resolver) Len() int { return r.cache.Len() }

func cacheKey(srs, wkt string) string {
	s := strings.ToUpper(strings.TrimSpace(srs))
	if strings.TrimSpace(wkt) == "" {
		return s
	}
	return fmt.Sprintf("%s|wkt=%016x", s, xxhash.Sum64String(wkt))
}
