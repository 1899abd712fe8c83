package redisstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/geo-layer-backend/internal/catalog"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/fault"
	"github.com/mohammed-shakir/geo-layer-backend/internal/core/observability"
	"github.com/mohammed-shakir/geo-layer-backend/internal/keys"
	"github.com/mohammed-shakir/geo-layer-backend/internal/metrics"
)

// creates new client connected to miniredis for testing
func newMini(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr(), WithPoolSize(4), WithDialTimeout(time.Second), WithReadTimeout(time.Second), WithWriteTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestSetGet_HappyPath(t *testing.T) {
	rc, mr := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rc.Set(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := rc.Get(ctx, "k1")
	if err != nil || string(got) != "v1" {
		t.Fatalf("Get=%q err=%v", got, err)
	}
	mr.Del("k1")
	if _, err := rc.Get(ctx, "k1"); !errors.Is(err, ErrMissing) {
		t.Fatalf("err=%v want ErrMissing", err)
	}
}

func TestNew_RequiresAddr(t *testing.T) {
	if _, err := New(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc, _ := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := rc.Set(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected error on Set with canceled context")
	}
	if _, err := rc.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if err := rc.Ping(ctx); err == nil {
		t.Fatalf("expected error on Ping with canceled context")
	}
}

func TestStore_WriteFlushRead(t *testing.T) {
	rc, mr := newMini(t)
	st := NewStore(rc, "styles", time.Second)
	ctx := context.Background()
	rec := &catalog.StyleRecord{Name: "states", Workspace: "topp", Filename: "states.yaml"}

	if _, err := st.Reader(ctx, rec); !fault.IsNotFound(err) {
		t.Fatalf("err=%v want not found", err)
	}

	w, err := st.Writer(ctx, rec)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.Copy(w, strings.NewReader("name: states\n")); err != nil {
		t.Fatal(err)
	}
	if mr.Exists(keys.StyleBody("styles", "topp", "states.yaml")) {
		t.Fatal("payload stored before flush")
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := w.Flush(); err == nil {
		t.Fatal("flush after close must fail")
	}

	r, err := st.Reader(ctx, rec)
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	defer func() { _ = r.Close() }()
	b, _ := io.ReadAll(r)
	if string(b) != "name: states\n" {
		t.Fatalf("body=%q", b)
	}
}

func TestStore_FlushFailsWhenRedisDown(t *testing.T) {
	rc, mr := newMini(t)
	st := NewStore(rc, "styles", 200*time.Millisecond)
	rec := &catalog.StyleRecord{Workspace: "topp", Filename: "x.yaml"}

	w, _ := st.Writer(context.Background(), rec)
	_, _ = w.Write([]byte("name: x\n"))
	mr.Close()
	if err := w.Flush(); err == nil {
		t.Fatal("expected flush error with redis down")
	}
	if _, err := st.Reader(context.Background(), rec); fault.ClassOf(err) != fault.Fatal {
		t.Fatalf("err=%v want fatal", err)
	}
}

func TestMetrics_Incremented(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)

	rc, _ := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"))
	_, _ = rc.Get(ctx, "m1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, op := range []string{"set", "get"} {
		if !strings.Contains(body, `style_store_op_total{backend="redis",op="`+op+`"`) {
			t.Fatalf("missing style_store_op_total for %s; got:\n%s", op, body)
		}
	}
	if !strings.Contains(body, `style_store_op_duration_seconds_bucket{backend="redis",op="set"`) {
		t.Fatalf("missing duration histogram; got:\n%s", body)
	}
}
