// Package ratelimit throttles requests that change the ledger. Reads are never
// counted. Each client spends write units from a fixed window; an import
// replaces the whole collection and costs more than a single edit.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Config struct {
	WritesPerWindow int
	Window          time.Duration
	// ImportCost is charged for requests whose path ends in ImportPath.
	ImportCost      int
	ImportPath      string
	CleanupInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		WritesPerWindow: 120,
		Window:          time.Minute,
		ImportCost:      20,
		ImportPath:      "/import",
		CleanupInterval: 5 * time.Minute,
	}
}

// Limiter tracks one window per client address.
type Limiter struct {
	mu           sync.Mutex
	cfg          Config
	clients      map[string]*window
	now          func() time.Time
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type window struct {
	start time.Time
	used  int
}

func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.WritesPerWindow <= 0 {
		cfg.WritesPerWindow = def.WritesPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.ImportCost <= 0 {
		cfg.ImportCost = 1
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	rl := &Limiter{
		cfg:         cfg,
		clients:     make(map[string]*window),
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// Take spends cost units from the client's current window. When the budget is
// exhausted it reports how long until the window resets. A cost larger than
// the whole budget is capped so it can still pass in a fresh window.
func (rl *Limiter) Take(clientIP string, cost int) (bool, time.Duration) {
	if cost <= 0 {
		return true, 0
	}
	if cost > rl.cfg.WritesPerWindow {
		cost = rl.cfg.WritesPerWindow
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w, ok := rl.clients[clientIP]
	if !ok || now.Sub(w.start) >= rl.cfg.Window {
		w = &window{start: now}
		rl.clients[clientIP] = w
	}
	if w.used+cost > rl.cfg.WritesPerWindow {
		return false, w.start.Add(rl.cfg.Window).Sub(now)
	}
	w.used += cost
	return true, 0
}

// Cost returns the units a request spends: nothing for reads, ImportCost for
// an import and one for any other write.
func (rl *Limiter) Cost(r *http.Request) int {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return 0
	}
	if rl.cfg.ImportPath != "" && strings.HasSuffix(r.URL.Path, rl.cfg.ImportPath) {
		return rl.cfg.ImportCost
	}
	return 1
}

func (rl *Limiter) startCleanup() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropExpired()
		case <-rl.stopCleanup:
			return
		}
	}
}

// dropExpired forgets clients whose window has ended; they would start a
// fresh one on their next write anyway.
func (rl *Limiter) dropExpired() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	n := 0
	for ip, w := range rl.clients {
		if now.Sub(w.start) >= rl.cfg.Window {
			delete(rl.clients, ip)
			n++
		}
	}
	return n
}

func (rl *Limiter) ActiveClients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (rl *Limiter) Stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// Middleware rejects writes over budget. onLimit receives the time left in
// the client's window.
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request, time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := rl.Take(extractIP(r), rl.Cost(r))
			if ok {
				next.ServeHTTP(w, r)
				return
			}
			if onLimit != nil {
				onLimit(w, r, wait)
				return
			}
			w.Header().Set("Retry-After", RetryAfter(wait))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		})
	}
}

// RetryAfter formats wait as whole seconds for the Retry-After header,
// rounding up and never below one.
func RetryAfter(wait time.Duration) string {
	secs := int((wait + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
