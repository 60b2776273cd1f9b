// Package health serves the liveness (/healthz) and readiness (/readyz)
// probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const checkTimeout = 5 * time.Second

// Checker probes one dependency. Check returns nil when it is usable and
// must give up when ctx is done.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Pinger is anything with a cheap round trip, such as *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports name as ready while p answers pings.
func PingChecker(name string, p Pinger) Checker {
	return Checker{Name: name, Check: p.Ping}
}

type probe struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Took   string `json:"took,omitempty"`
}

type report struct {
	Status string           `json:"status"`
	Uptime string           `json:"uptime,omitempty"`
	Checks map[string]probe `json:"checks,omitempty"`
}

type Handler struct {
	checkers []Checker
	started  time.Time
	now      func() time.Time
}

// New returns a handler whose readiness depends on every checker.
func New(checkers ...Checker) *Handler {
	return &Handler{
		checkers: append([]Checker(nil), checkers...),
		started:  time.Now(),
		now:      time.Now,
	}
}

// Register mounts both probes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz answers 200 for as long as the process serves HTTP.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	uptime := h.now().Sub(h.started).Truncate(time.Second)
	writeJSON(w, http.StatusOK, report{Status: "ok", Uptime: uptime.String()})
}

// Readyz runs all checkers in parallel and answers 503 when any fails.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	probes := make([]probe, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() { probes[i] = h.run(r.Context(), c) })
	}
	wg.Wait()

	rep := report{Status: "ok", Checks: make(map[string]probe, len(probes))}
	code := http.StatusOK
	for i, p := range probes {
		rep.Checks[h.checkers[i].Name] = p
		if p.Status != "ok" {
			rep.Status = "fail"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, rep)
}

func (h *Handler) run(ctx context.Context, c Checker) probe {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := h.now()
	err := c.Check(ctx)
	p := probe{Status: "ok", Took: h.now().Sub(start).Round(time.Microsecond).String()}
	if err != nil {
		p.Status, p.Error = "fail", err.Error()
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
