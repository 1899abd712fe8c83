// Package filestore keeps style payloads in a data directory laid out as
// styles/<file> for global styles and workspaces/<ws>/styles/<file> for
// workspace styles.
package filestore

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/observability"
)

const backend = "file"

type Store struct {
	root string
}

var _ catalog.StyleStore = (*Store)(nil)

func New(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", root, err)
	}
	return &Store{root: root}, nil
}

// Path returns the file backing rec. Directory components in the record's
// names are dropped so records cannot address files outside the root.
func (s *Store) Path(rec *catalog.StyleRecord) (string, error) {
	name := filepath.Base(filepath.Clean("/" + rec.Filename))
	if name == "/" || name == "." || name == "" {
		return "", fmt.Errorf("style %s: empty filename", rec.Name)
	}
	if rec.Workspace == "" {
		return filepath.Join(s.root, "styles", name), nil
	}
	ws := filepath.Base(filepath.Clean("/" + rec.Workspace))
	return filepath.Join(s.root, "workspaces", ws, "styles", name), nil
}

func (s *Store) Reader(_ context.Context, rec *catalog.StyleRecord) (io.ReadCloser, error) {
	start := time.Now()
	p, err := s.Path(rec)
	if err != nil {
		return nil, fault.Fatalf("read style", err, "resolve path")
	}
	f, err := os.Open(p)
	observability.ObserveStoreOp(backend, "open", ignoreMissing(err), time.Since(start).Seconds())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.NotFoundf("read style", "no content for style file %s", rec.Filename)
	}
	if err != nil {
		return nil, fault.Fatalf("read style", err, "open %s", p)
	}
	return f, nil
}

func (s *Store) Writer(_ context.Context, rec *catalog.StyleRecord) (catalog.StyleWriter, error) {
	start := time.Now()
	p, err := s.Path(rec)
	if err != nil {
		return nil, fault.Fatalf("write style", err, "resolve path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		observability.ObserveStoreOp(backend, "create", err, time.Since(start).Seconds())
		return nil, fault.Fatalf("write style", err, "create directory for %s", p)
	}
	f, err := os.Create(p)
	observability.ObserveStoreOp(backend, "create", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fault.Fatalf("write style", err, "create %s", p)
	}
	return &fileWriter{f: f, bw: bufio.NewWriter(f)}, nil
}

type fileWriter struct {
	f  *os.File
	bw *bufio.Writer
}

func (w *fileWriter) Write(p []byte) (int, error) { return w.bw.Write(p) }

// Flush drains the buffer and syncs the file to disk.
func (w *fileWriter) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", w.f.Name(), err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", w.f.Name(), err)
	}
	return nil
}

func (w *fileWriter) Close() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", w.f.Name(), err)
	}
	return nil
}

func ignoreMissing(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
