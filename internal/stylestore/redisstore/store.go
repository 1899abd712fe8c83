package redisstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/keys"
)

// Store maps style records onto Redis keys.
type Store struct {
	cli       *Client
	prefix    string
	opTimeout time.Duration
}

var _ catalog.StyleStore = (*Store)(nil)

func NewStore(cli *Client, prefix string, opTimeout time.Duration) *Store {
	return &Store{cli: cli, prefix: prefix, opTimeout: opTimeout}
}

func (s *Store) key(rec *catalog.StyleRecord) string {
	return keys.StyleBody(s.prefix, rec.Workspace, rec.Filename)
}

func (s *Store) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Store) Reader(ctx context.Context, rec *catalog.StyleRecord) (io.ReadCloser, error) {
	ctx, cancel := s.opCtx(ctx)
	defer cancel()
	b, err := s.cli.Get(ctx, s.key(rec))
	if errors.Is(err, ErrMissing) {
		return nil, fault.NotFoundf("read style", "no content for style file %s", rec.Filename)
	}
	if err != nil {
		return nil, fault.Fatalf("read style", err, "style file %s", rec.Filename)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *Store) Writer(ctx context.Context, rec *catalog.StyleRecord) (catalog.StyleWriter, error) {
	return &writer{ctx: ctx, s: s, key: s.key(rec)}, nil
}

// writer buffers the payload; Flush stores it under the key in one SET.
type writer struct {
	ctx    context.Context
	s      *Store
	key    string
	buf    bytes.Buffer
	closed bool
}

var errClosed = errors.New("style writer closed")

func (w *writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosed
	}
	return w.buf.Write(p)
}

func (w *writer) Flush() error {
	if w.closed {
		return errClosed
	}
	ctx, cancel := w.s.opCtx(w.ctx)
	defer cancel()
	return w.s.cli.Set(ctx, w.key, w.buf.Bytes())
}

func (w *writer) Close() error {
	w.closed = true
	return nil
}
