// Package memory is an in-process catalog, optionally seeded from a YAML
// file. Reads return copies so callers never alias catalog state.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
)

type styleKey struct {
	ws   string
	name string
}

type layerEntry struct {
	layer catalog.Layer
	style *styleKey
}

type Catalog struct {
	mu         sync.RWMutex
	workspaces map[string]*catalog.Workspace
	defaultWS  string
	layers     map[string]map[string]*layerEntry
	styles     map[styleKey]*catalog.StyleRecord
	byID       map[string]styleKey
}

var _ catalog.Catalog = (*Catalog)(nil)

func New() *Catalog {
	return &Catalog{
		workspaces: map[string]*catalog.Workspace{},
		layers:     map[string]map[string]*layerEntry{},
		styles:     map[styleKey]*catalog.StyleRecord{},
		byID:       map[string]styleKey{},
	}
}

func newID(prefix string) string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return prefix + "-" + hex.EncodeToString(b[:])
}

// AddWorkspace registers a workspace; the first one becomes the default.
func (c *Catalog) AddWorkspace(name string) *catalog.Workspace {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ws, ok := c.workspaces[name]; ok {
		cp := *ws
		return &cp
	}
	ws := &catalog.Workspace{ID: newID("ws"), Name: name}
	c.workspaces[name] = ws
	if c.defaultWS == "" {
		c.defaultWS = name
	}
	cp := *ws
	return &cp
}

func (c *Catalog) SetDefaultWorkspace(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.workspaces[name]; !ok {
		return fault.NotFoundf("set default workspace", "no such workspace %s", name)
	}
	c.defaultWS = name
	return nil
}

// AddLayer stores l under its workspace. A non-nil DefaultStyle must name a
// style already in the catalog.
func (c *Catalog) AddLayer(l *catalog.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.workspaces[l.Workspace]; !ok {
		return fault.NotFoundf("add layer", "no such workspace %s", l.Workspace)
	}
	e := &layerEntry{layer: *l}
	e.layer.DefaultStyle = nil
	if l.DefaultStyle != nil {
		k := styleKey{ws: l.DefaultStyle.Workspace, name: l.DefaultStyle.Name}
		if _, ok := c.styles[k]; !ok {
			return fault.NotFoundf("add layer", "no such style %s", qualified(k))
		}
		e.style = &k
	}
	byName := c.layers[l.Workspace]
	if byName == nil {
		byName = map[string]*layerEntry{}
		c.layers[l.Workspace] = byName
	}
	byName[l.Name] = e
	return nil
}

func (c *Catalog) Workspace(_ context.Context, name string) (*catalog.Workspace, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ws, ok := c.workspaces[name]
	if !ok {
		return nil, fault.NotFoundf("find workspace", "no such workspace %s", name)
	}
	cp := *ws
	return &cp, nil
}

func (c *Catalog) DefaultWorkspace(ctx context.Context) (*catalog.Workspace, error) {
	c.mu.RLock()
	name := c.defaultWS
	c.mu.RUnlock()
	if name == "" {
		return nil, fault.NotFoundf("find workspace", "no default workspace")
	}
	return c.Workspace(ctx, name)
}

func (c *Catalog) Layer(_ context.Context, workspace, name string) (*catalog.Layer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.layers[workspace][name]
	if !ok {
		return nil, fault.NotFoundf("find layer", "no such layer %s:%s", workspace, name)
	}
	return c.materialize(e), nil
}

// Layers lists the workspace's layers ordered by name. An unknown workspace
// yields an empty list.
func (c *Catalog) Layers(_ context.Context, workspace string) ([]*catalog.Layer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	byName := c.layers[workspace]
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]*catalog.Layer, 0, len(names))
	for _, n := range names {
		out = append(out, c.materialize(byName[n]))
	}
	return out, nil
}

// must hold c.mu
func (c *Catalog) materialize(e *layerEntry) *catalog.Layer {
	l := e.layer
	if e.style != nil {
		l.DefaultStyle = c.styles[*e.style].Clone()
	}
	return &l
}

func (c *Catalog) StyleByName(_ context.Context, workspace, name string) (*catalog.StyleRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.styles[styleKey{ws: workspace, name: name}]
	if !ok {
		return nil, fault.NotFoundf("find style", "no such style %s", qualified(styleKey{workspace, name}))
	}
	return s.Clone(), nil
}

func (c *Catalog) NewStyle() *catalog.StyleRecord { return &catalog.StyleRecord{} }

func (c *Catalog) AddStyle(_ context.Context, s *catalog.StyleRecord) error {
	if s.ID != "" {
		return fault.Fatalf("add style", nil, "style %s already has id %s", s.Name, s.ID)
	}
	k := styleKey{ws: s.Workspace, name: s.Name}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.styles[k]; ok {
		return fault.Fatalf("add style", nil, "style %s already exists", qualified(k))
	}
	s.ID = newID("style")
	c.styles[k] = s.Clone()
	c.byID[s.ID] = k
	return nil
}

func (c *Catalog) SaveStyle(_ context.Context, s *catalog.StyleRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, ok := c.byID[s.ID]
	if !ok {
		return fault.NotFoundf("save style", "no style with id %s", s.ID)
	}
	k := styleKey{ws: s.Workspace, name: s.Name}
	if k != old {
		if _, taken := c.styles[k]; taken {
			return fault.Fatalf("save style", nil, "style %s already exists", qualified(k))
		}
		delete(c.styles, old)
		c.repoint(old, k)
	}
	c.styles[k] = s.Clone()
	c.byID[s.ID] = k
	return nil
}

// must hold c.mu
func (c *Catalog) repoint(from, to styleKey) {
	for _, byName := range c.layers {
		for _, e := range byName {
			if e.style != nil && *e.style == from {
				k := to
				e.style = &k
			}
		}
	}
}

func (c *Catalog) SetDefaultStyle(_ context.Context, workspace, layer string, s *catalog.StyleRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.layers[workspace][layer]
	if !ok {
		return fault.NotFoundf("set default style", "no such layer %s:%s", workspace, layer)
	}
	k := styleKey{ws: s.Workspace, name: s.Name}
	if _, ok := c.styles[k]; !ok {
		return fault.NotFoundf("set default style", "no such style %s", qualified(k))
	}
	e.style = &k
	return nil
}

// StyleCount reports how many styles are registered.
func (c *Catalog) StyleCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.styles)
}

func qualified(k styleKey) string {
	if k.ws == "" {
		return k.name
	}
	return k.ws + ":" + k.name
}
