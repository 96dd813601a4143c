package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *fakeClock) {
	t.Helper()
	rl := NewLimiter(cfg)
	t.Cleanup(rl.Stop)
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl.now = clock.now
	return rl, clock
}

func TestTakeFixedWindow(t *testing.T) {
	rl, clock := newTestLimiter(t, Config{WritesPerWindow: 2, Window: time.Minute})

	for i := 0; i < 2; i++ {
		if ok, _ := rl.Take("a", 1); !ok {
			t.Fatalf("write %d should pass", i+1)
		}
	}
	clock.advance(20 * time.Second)
	ok, wait := rl.Take("a", 1)
	if ok || wait != 40*time.Second {
		t.Fatalf("Take = %v, %v; want limited with 40s left", ok, wait)
	}
	if ok, _ := rl.Take("b", 1); !ok {
		t.Fatal("other clients are independent")
	}

	// Rejected writes do not extend the window.
	clock.advance(40 * time.Second)
	if ok, _ := rl.Take("a", 1); !ok {
		t.Fatal("a new window should start after a minute")
	}
}

func TestTakeWeightedImport(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{WritesPerWindow: 10, Window: time.Minute, ImportCost: 8, ImportPath: "/import"})

	if ok, _ := rl.Take("a", 3); !ok {
		t.Fatal("edits within budget should pass")
	}
	if ok, _ := rl.Take("a", 8); ok {
		t.Fatal("import over the remaining budget should be limited")
	}
	if ok, _ := rl.Take("b", 50); !ok {
		t.Fatal("a cost above the whole budget is capped and passes in a fresh window")
	}
	if ok, _ := rl.Take("b", 1); ok {
		t.Fatal("capped cost should spend the whole budget")
	}
}

func TestCost(t *testing.T) {
	rl, _ := newTestLimiter(t, DefaultConfig())
	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/invoices", 0},
		{http.MethodGet, "/api/export", 0},
		{http.MethodPost, "/api/invoices", 1},
		{http.MethodDelete, "/api/invoices/x", 1},
		{http.MethodPost, "/api/import", 20},
	}
	for _, tt := range tests {
		if got := rl.Cost(httptest.NewRequest(tt.method, tt.path, nil)); got != tt.want {
			t.Errorf("Cost(%s %s) = %d, want %d", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestDropExpired(t *testing.T) {
	rl, clock := newTestLimiter(t, Config{WritesPerWindow: 5, Window: time.Minute})
	rl.Take("a", 1)
	clock.advance(30 * time.Second)
	rl.Take("b", 1)
	clock.advance(40 * time.Second)

	if n := rl.dropExpired(); n != 1 || rl.ActiveClients() != 1 {
		t.Fatalf("dropExpired() = %d, active %d; want 1, 1", n, rl.ActiveClients())
	}
}

func TestRetryAfter(t *testing.T) {
	tests := map[time.Duration]string{
		0:                      "1",
		300 * time.Millisecond: "1",
		40 * time.Second:       "40",
		40*time.Second + 1:     "41",
	}
	for in, want := range tests {
		if got := RetryAfter(in); got != want {
			t.Errorf("RetryAfter(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareLimitsOnlyWrites(t *testing.T) {
	rl, _ := newTestLimiter(t, Config{WritesPerWindow: 1, Window: time.Minute})

	h := rl.Middleware(func(*http.Request) string { return "client" }, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(method string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(method, "/api/invoices", nil))
		return rr
	}

	if rr := do(http.MethodPost); rr.Code != http.StatusNoContent {
		t.Fatalf("first POST: %d", rr.Code)
	}
	rr := do(http.MethodPost)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("second POST: expected 429 with Retry-After 60, got %d %q", rr.Code, rr.Header().Get("Retry-After"))
	}
	for i := 0; i < 5; i++ {
		if rr := do(http.MethodGet); rr.Code != http.StatusNoContent {
			t.Fatalf("GET should never be limited, got %d", rr.Code)
		}
	}
}
