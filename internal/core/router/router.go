// Package router exposes layer metadata and style negotiation over HTTP.
package router

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/model"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/observability"
	"github.com/mohammed-shakir/geo-layer-backend/internal/keys"
	"github.com/mohammed-shakir/geo-layer-backend/internal/layermeta"
	"github.com/mohammed-shakir/geo-layer-backend/internal/logger"
	"github.com/mohammed-shakir/geo-layer-backend/internal/negotiator"
	"github.com/mohammed-shakir/geo-layer-backend/internal/style"
)

const (
	Prefix = "/backend/layers"
	// listing path segment naming the catalog's default workspace
	DefaultWorkspace = "default"
)

type Handler struct {
	catalog    catalog.Catalog
	deriver    *layermeta.Deriver
	negotiator *negotiator.Negotiator
	maxBytes   int64
	log        *slog.Logger
}

func New(cat catalog.Catalog, d *layermeta.Deriver, n *negotiator.Negotiator, maxBytes int64, log *slog.Logger) *Handler {
	if maxBytes <= 0 {
		maxBytes = 1 << 20
	}
	return &Handler{catalog: cat, deriver: d, negotiator: n, maxBytes: maxBytes, log: log}
}

// Mount registers the layer routes on r under Prefix.
func (h *Handler) Mount(r chi.Router) {
	r.Route(Prefix, func(r chi.Router) {
		r.Get("/{ws}", h.instrument(h.listLayers))
		r.Get("/{ws}/{name}", h.instrument(h.getLayer))
		r.Get("/{ws}/{name}/style", h.instrument(h.getStyle))
		r.Put("/{ws}/{name}/style", h.instrument(h.putStyle))
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (h *Handler) instrument(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		fn(sw, r)
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

func (h *Handler) layer(r *http.Request) (*catalog.Layer, string, error) {
	ctx := r.Context()
	ws, err := h.catalog.Workspace(ctx, chi.URLParam(r, "ws"))
	if err != nil {
		return nil, "", err
	}
	l, err := h.catalog.Layer(ctx, ws.Name, chi.URLParam(r, "name"))
	if err != nil {
		return nil, "", err
	}
	return l, ws.Name, nil
}

// listLayers derives metadata for every layer of the workspace. "default"
// names the catalog's default workspace when one is set; an unknown
// workspace lists nothing.
func (h *Handler) listLayers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "ws")
	if name == DefaultWorkspace {
		if def, err := h.catalog.DefaultWorkspace(ctx); err == nil {
			name = def.Name
		}
	}
	layers, err := h.catalog.Layers(ctx, name)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]*model.LayerMetadata, 0, len(layers))
	for _, l := range layers {
		md, err := h.deriver.Metadata(ctx, l, name, false)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		out = append(out, md)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getLayer(w http.ResponseWriter, r *http.Request) {
	l, ws, err := h.layer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	verbose, _ := strconv.ParseBool(r.URL.Query().Get("verbose"))
	md, err := h.deriver.Metadata(r.Context(), l, ws, verbose)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}

func (h *Handler) getStyle(w http.ResponseWriter, r *http.Request) {
	l, ws, err := h.layer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ctx := logger.WithLayer(logger.WithWorkspace(r.Context(), ws), l.Name)
	p, err := h.negotiator.GetStyle(ctx, l)
	if err != nil {
		h.fail(w, r.WithContext(ctx), err)
		return
	}
	etag := keys.ETag(p.Body)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", p.MediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(p.Body)
}

func (h *Handler) putStyle(w http.ResponseWriter, r *http.Request) {
	target := h.negotiator.Target()
	if !style.AcceptsMediaType(target, r.Header.Get("Content-Type")) {
		writeError(w, http.StatusUnsupportedMediaType, "expected "+target.MediaType())
		return
	}
	l, ws, err := h.layer(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "style body exceeds "+strconv.FormatInt(tooBig.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	ctx := logger.WithLayer(logger.WithWorkspace(r.Context(), ws), l.Name)
	rec, err := h.negotiator.PutStyle(ctx, raw, l, ws)
	if err != nil {
		h.fail(w, r.WithContext(ctx), err)
		return
	}
	writeJSON(w, http.StatusOK, model.StyleInfo{
		Name:          rec.Name,
		Workspace:     rec.Workspace,
		Filename:      rec.Filename,
		Format:        rec.Format,
		FormatVersion: rec.FormatVersion,
	})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := fault.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal error")
		return
	}
	h.log.DebugContext(r.Context(), "request rejected", "status", status, "err", err)
	writeError(w, status, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
