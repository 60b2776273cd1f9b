package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ok(context.Context) error { return nil }

func failing(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func serve(t *testing.T, h *Handler, path string) (int, report) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	var rep report
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return rec.Code, rep
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "database", Check: failing("down")})
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	h.started = start
	h.now = func() time.Time { return start.Add(90*time.Minute + 1500*time.Millisecond) }

	code, rep := serve(t, h, "/healthz")
	if code != http.StatusOK || rep.Status != "ok" {
		t.Errorf("liveness = %d %q, want 200 ok regardless of checkers", code, rep.Status)
	}
	if rep.Uptime != "1h30m1s" {
		t.Errorf("uptime = %q, want 1h30m1s", rep.Uptime)
	}
	if rep.Checks != nil {
		t.Errorf("liveness ran checks: %v", rep.Checks)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		checkers   []Checker
		wantCode   int
		wantStatus string
		wantChecks map[string]probe
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:       "all pass",
			checkers:   []Checker{{Name: "database", Check: ok}, {Name: "llm", Check: ok}},
			wantCode:   http.StatusOK,
			wantStatus: "ok",
			wantChecks: map[string]probe{"database": {Status: "ok"}, "llm": {Status: "ok"}},
		},
		{
			name:       "one fails",
			checkers:   []Checker{{Name: "database", Check: failing("connection refused")}, {Name: "llm", Check: ok}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]probe{
				"database": {Status: "fail", Error: "connection refused"},
				"llm":      {Status: "ok"},
			},
		},
		{
			name: "pingers",
			checkers: []Checker{
				PingChecker("database", fakePinger{}),
				PingChecker("replica", fakePinger{err: errors.New("no route to host")}),
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "fail",
			wantChecks: map[string]probe{
				"database": {Status: "ok"},
				"replica":  {Status: "fail", Error: "no route to host"},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, rep := serve(t, New(tc.checkers...), "/readyz")
			if code != tc.wantCode || rep.Status != tc.wantStatus {
				t.Errorf("got %d %q, want %d %q", code, rep.Status, tc.wantCode, tc.wantStatus)
			}
			if len(rep.Checks) != len(tc.wantChecks) {
				t.Fatalf("checks = %v, want %v", rep.Checks, tc.wantChecks)
			}
			for name, want := range tc.wantChecks {
				got := rep.Checks[name]
				if got.Status != want.Status || got.Error != want.Error {
					t.Errorf("%s = %+v, want %+v", name, got, want)
				}
				if got.Took == "" {
					t.Errorf("%s has no duration", name)
				}
			}
		})
	}
}

func TestReadyz_CancelledRequest(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil).WithContext(ctx))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestReadyz_ChecksRunInParallel(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	blocking := func(context.Context) error {
		started <- struct{}{}
		<-release
		return nil
	}
	h := New(Checker{Name: "a", Check: blocking}, Checker{Name: "b", Check: blocking})

	done := make(chan int)
	go func() {
		rec := httptest.NewRecorder()
		h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		done <- rec.Code
	}()

	for range 2 {
		select {
		case <-started:
		case <-time.After(2 * time.Second):
			t.Fatal("second checker never started while the first was blocked")
		}
	}
	close(release)
	if code := <-done; code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
