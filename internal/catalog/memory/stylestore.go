package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
)

var errClosed = errors.New("style writer closed")

// StyleStore keeps style bodies in process memory.
type StyleStore struct {
	mu     sync.RWMutex
	bodies map[styleKey][]byte
}

var _ catalog.StyleStore = (*StyleStore)(nil)

func NewStyleStore() *StyleStore {
	return &StyleStore{bodies: map[styleKey][]byte{}}
}

func fileKey(s *catalog.StyleRecord) styleKey {
	return styleKey{ws: s.Workspace, name: s.Filename}
}

func (st *StyleStore) Reader(_ context.Context, s *catalog.StyleRecord) (io.ReadCloser, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	b, ok := st.bodies[fileKey(s)]
	if !ok {
		return nil, fault.NotFoundf("read style", "no content for style file %s", qualified(fileKey(s)))
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (st *StyleStore) Writer(_ context.Context, s *catalog.StyleRecord) (catalog.StyleWriter, error) {
	return &memWriter{st: st, key: fileKey(s)}, nil
}

// Put stores b directly.
func (st *StyleStore) Put(s *catalog.StyleRecord, b []byte) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.bodies[fileKey(s)] = append([]byte(nil), b...)
}

// Has reports whether content exists for the record's file.
func (st *StyleStore) Has(s *catalog.StyleRecord) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	_, ok := st.bodies[fileKey(s)]
	return ok
}

// memWriter buffers until Flush, which replaces the stored body.
type memWriter struct {
	st     *StyleStore
	key    styleKey
	buf    bytes.Buffer
	closed bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errClosed
	}
	return w.buf.Write(p)
}

func (w *memWriter) Flush() error {
	if w.closed {
		return errClosed
	}
	w.st.mu.Lock()
	w.st.bodies[w.key] = append([]byte(nil), w.buf.Bytes()...)
	w.st.mu.Unlock()
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}
