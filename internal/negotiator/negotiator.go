// Package negotiator serves a layer's default style in the configured
// target style language and accepts updates in that language only.
package negotiator

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/observability"
	"github.com/mohammed-shakir/geo-layer-backend/internal/events"
	"github.com/mohammed-shakir/geo-layer-backend/internal/logger"
	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
)

const (
	FormatVersion = "1.0.0"
	// attempts at base, base1 .. base99
	MaxNameAttempts = 100
)

type Publisher interface {
	Publish(ev events.StyleEvent)
}

type Payload struct {
	Format    string
	MediaType string
	Body      []byte
}

type Negotiator struct {
	catalog  catalog.StyleCatalog
	store    catalog.StyleStore
	registry *style.Registry
	target   style.Format
	pub      Publisher
	log      *slog.Logger
}

type Option func(*Negotiator)

func WithPublisher(p Publisher) Option {
	return func(n *Negotiator) { n.pub = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Negotiator) {
		if l != nil {
			n.log = l
		}
	}
}

// New fails when target is not a registered format.
func New(cat catalog.StyleCatalog, store catalog.StyleStore, reg *style.Registry, target string, opts ...Option) (*Negotiator, error) {
	f, err := reg.Lookup(target)
	if err != nil {
		return nil, fmt.Errorf("target format: %w", err)
	}
	n := &Negotiator{
		catalog:  cat,
		store:    store,
		registry: reg,
		target:   f,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

func (n *Negotiator) Target() style.Format { return n.target }

func (n *Negotiator) sameFormat(tag string) bool {
	f, err := n.registry.Lookup(tag)
	return err == nil && f.Name() == n.target.Name()
}

// GetStyle returns the layer's default style in the target format,
// converting it when it is stored in another language.
func (n *Negotiator) GetStyle(ctx context.Context, layer *catalog.Layer) (*Payload, error) {
	const op = "get style"
	rec := layer.DefaultStyle
	if rec == nil {
		return nil, fault.NotFoundf(op, "layer %s has no default style", layer.Name)
	}
	src, err := n.registry.Lookup(rec.Format)
	if err != nil {
		return nil, fault.Fatalf(op, err, "style %s", rec.Name)
	}

	raw, err := n.readBody(ctx, rec)
	if err != nil {
		return nil, err
	}
	out := &Payload{Format: n.target.Name(), MediaType: n.target.MediaType(), Body: raw}
	if src.Name() == n.target.Name() {
		return out, nil
	}

	parsed, err := src.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fault.Fatalf(op, err, "stored style %s is not valid %s", rec.Name, src.Name())
	}
	var buf bytes.Buffer
	if err := n.target.Encode(&buf, parsed); err != nil {
		return nil, fault.Fatalf(op, err, "convert style %s to %s", rec.Name, n.target.Name())
	}
	observability.IncStyleConversion(src.Name(), n.target.Name())
	n.log.DebugContext(ctx, "style converted", "style", rec.Name, "from", src.Name(), "to", n.target.Name())
	out.Body = buf.Bytes()
	return out, nil
}

func (n *Negotiator) readBody(ctx context.Context, rec *catalog.StyleRecord) ([]byte, error) {
	r, err := n.store.Reader(ctx, rec)
	if err != nil {
		// a catalog entry without a body is a storage fault, not a missing resource
		return nil, fault.Fatalf("read style", err, "style %s", rec.Name)
	}
	defer func() { _ = r.Close() }()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fault.Fatalf("read style", err, "style %s", rec.Name)
	}
	return b, nil
}

// PutStyle stores raw as the layer's default style. raw must parse in the
// target format; nothing is touched otherwise.
func (n *Negotiator) PutStyle(ctx context.Context, raw []byte, layer *catalog.Layer, workspace string) (*catalog.StyleRecord, error) {
	const op = "put style"
	ctx = logger.WithLayer(logger.WithWorkspace(ctx, workspace), layer.Name)

	if _, err := n.target.Decode(bytes.NewReader(raw)); err != nil {
		observability.IncStyleWrite("invalid")
		return nil, fault.BadRequestf(op, err, "invalid %s", n.target.Name())
	}

	ext := n.target.Extension()
	rec := layer.DefaultStyle.Clone()
	switch {
	case rec == nil:
		name, err := n.UniqueName(ctx, workspace, layer.Name)
		if err != nil {
			observability.IncStyleWrite("failed")
			return nil, err
		}
		rec = n.catalog.NewStyle()
		rec.Name = name
		rec.Filename = name + "." + ext
		rec.Workspace = workspace
	case !n.sameFormat(rec.Format):
		base := path.Base(rec.Filename)
		rec.Filename = strings.TrimSuffix(base, path.Ext(base)) + "." + ext
	}
	rec.Format = n.target.Name()
	rec.FormatVersion = FormatVersion

	if err := n.writeBody(ctx, rec, raw); err != nil {
		observability.IncStyleWrite("failed")
		return nil, err
	}

	created := rec.ID == ""
	if err := n.persist(ctx, rec, layer, workspace, created); err != nil {
		observability.IncStyleWrite("failed")
		return nil, err
	}

	action := events.StyleUpdated
	if created {
		action = events.StyleCreated
	}
	observability.IncStyleWrite(string(action))
	n.log.InfoContext(ctx, "style stored", "style", rec.Name, "filename", rec.Filename, "action", string(action))
	if n.pub != nil {
		n.pub.Publish(events.StyleEvent{
			Action:    action,
			Workspace: rec.Workspace,
			Layer:     layer.Name,
			Style:     rec.Name,
			Filename:  rec.Filename,
			Format:    rec.Format,
		})
	}
	return rec, nil
}

func (n *Negotiator) persist(ctx context.Context, rec *catalog.StyleRecord, layer *catalog.Layer, workspace string, created bool) error {
	const op = "put style"
	if !created {
		if err := n.catalog.SaveStyle(ctx, rec); err != nil {
			return fault.Fatalf(op, err, "save style %s", rec.Name)
		}
		return nil
	}
	if err := n.catalog.AddStyle(ctx, rec); err != nil {
		return fault.Fatalf(op, err, "add style %s", rec.Name)
	}
	ws := layer.Workspace
	if ws == "" {
		ws = workspace
	}
	if err := n.catalog.SetDefaultStyle(ctx, ws, layer.Name, rec); err != nil {
		return fault.Fatalf(op, err, "assign style %s to layer %s", rec.Name, layer.Name)
	}
	return nil
}

// writeBody always closes the writer, also when writing or flushing fails.
func (n *Negotiator) writeBody(ctx context.Context, rec *catalog.StyleRecord, raw []byte) (err error) {
	const op = "write style"
	w, err := n.store.Writer(ctx, rec)
	if err != nil {
		return fault.Fatalf(op, err, "open %s", rec.Filename)
	}
	defer func() {
		if cerr := w.Close(); cerr != nil && err == nil {
			err = fault.Fatalf(op, cerr, "close %s", rec.Filename)
		}
	}()
	if _, err := w.Write(raw); err != nil {
		return fault.Fatalf(op, err, "write %s", rec.Filename)
	}
	if err := w.Flush(); err != nil {
		return fault.Fatalf(op, err, "flush %s", rec.Filename)
	}
	return nil
}

// UniqueName returns the first of base, base1, base2, ... not taken in the
// workspace's style namespace. The check and the later insert are not
// atomic; the catalog rejects a duplicate insert.
func (n *Negotiator) UniqueName(ctx context.Context, workspace, base string) (string, error) {
	const op = "unique style name"
	for i := range MaxNameAttempts {
		name := base
		if i > 0 {
			name = base + strconv.Itoa(i)
		}
		_, err := n.catalog.StyleByName(ctx, workspace, name)
		if fault.IsNotFound(err) {
			return name, nil
		}
		if err != nil {
			return "", fault.Escalate(op, err)
		}
	}
	return "", fault.Fatalf(op, nil, "no free style name for %s after %d attempts", base, MaxNameAttempts)
}
