package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestLiveness_Handler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Liveness()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	ct := rr.Header().Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q want text/plain", ct)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "ok" {
		t.Fatalf("body=%q want ok", got)
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReadiness(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	cases := []struct {
		deps map[string]Pinger
		code int
		want string
	}{
		{nil, http.StatusOK, `"status":"ready"`},
		{map[string]Pinger{"redis": ok}, http.StatusOK, `"status":"ready"`},
		{map[string]Pinger{"redis": down}, http.StatusServiceUnavailable, `"redis":"connection refused"`},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		Readiness(c.deps, time.Second)(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		if rr.Code != c.code {
			t.Fatalf("status=%d want %d", rr.Code, c.code)
		}
		if !strings.Contains(rr.Body.String(), c.want) {
			t.Fatalf("body=%s want %s", rr.Body.String(), c.want)
		}
	}
}
