package http

import (
	"context"
	"net/http"
	"time"

	"spendbook/internal/cache"
	"spendbook/internal/core"
	"spendbook/internal/log"
	"spendbook/internal/middleware/ratelimit"
	"spendbook/internal/middleware/security"
	"spendbook/internal/middleware/trace"
	"spendbook/internal/store"
)

// Pinger is implemented by persisters that can check their connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Server struct {
	http.Server
	store   *store.Store
	logger  *log.Logger
	pinger  Pinger
	now     func() time.Time
	started time.Time

	rateLimiter    *ratelimit.Limiter
	dashboardCache *cache.LRUCache[core.DashboardStats]
	unsubscribe    func()
}

type Option func(*serverOptions)

type serverOptions struct {
	logger    *log.Logger
	pinger    Pinger
	now       func() time.Time
	cacheSize int
	cacheTTL  time.Duration
	rateLimit ratelimit.Config
}

func WithLogger(l *log.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithPinger adds a storage check to /readyz.
func WithPinger(p Pinger) Option {
	return func(o *serverOptions) { o.pinger = p }
}

// WithClock sets the clock used for the current month and export filenames.
func WithClock(now func() time.Time) Option {
	return func(o *serverOptions) { o.now = now }
}

func WithDashboardCache(size int, ttl time.Duration) Option {
	return func(o *serverOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

func WithRateLimit(cfg ratelimit.Config) Option {
	return func(o *serverOptions) { o.rateLimit = cfg }
}

// NewServer wires the JSON API around st. The dashboard cache is emptied
// whenever the store changes.
func NewServer(addr string, st *store.Store, opts ...Option) *Server {
	o := serverOptions{
		logger:    log.Discard(),
		now:       time.Now,
		cacheSize: 64,
		cacheTTL:  5 * time.Minute,
		rateLimit: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Server{
		store:          st,
		logger:         o.logger.WithComponent(log.ComponentHTTP),
		pinger:         o.pinger,
		now:            o.now,
		started:        o.now(),
		rateLimiter:    ratelimit.NewLimiter(o.rateLimit),
		dashboardCache: cache.NewLRUCache[core.DashboardStats](o.cacheSize, o.cacheTTL).WithClock(o.now),
	}
	s.unsubscribe = st.Subscribe(func(store.Change, core.Snapshot) {
		s.dashboardCache.Purge()
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/export", s.handleExportExpenses)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/dashboard", s.handleDashboard)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(security.ExtractClientIP, s.handleRateLimited)(handler)
	handler = trace.NewMiddleware(o.logger, security.ExtractClientIP).Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)

	s.Addr = addr
	s.Handler = handler
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.MaxHeaderBytes = 1 << 16 // 64KB
	return s
}

// RateLimiter exposes the limiter so its cleanup loop can be run.
func (s *Server) RateLimiter() *ratelimit.Limiter {
	return s.rateLimiter
}

// DashboardCache exposes the dashboard cache for registration with a
// cache.Manager.
func (s *Server) DashboardCache() *cache.LRUCache[core.DashboardStats] {
	return s.dashboardCache
}

// Shutdown detaches from the store and gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.unsubscribe()
	return s.Server.Shutdown(ctx)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
}
