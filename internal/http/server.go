package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/cache"
	"fintrack/internal/charts"
	"fintrack/internal/core"
	"fintrack/internal/host"
	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// HeaderInitData carries the raw Telegram WebApp initData string.
const HeaderInitData = "X-Telegram-Init-Data"

// Transactions is the ledger surface the API mutates.
type Transactions interface {
	List() []core.Transaction
	Create(ctx context.Context, d core.Draft) (core.Transaction, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// LedgerState exposes the change counter, a storage probe and a refresh from
// storage for writes made by other processes.
type LedgerState interface {
	Revision() uint64
	Ping(ctx context.Context) error
	Reload(ctx context.Context) (bool, error)
}

// Advisor produces advice tips. *advice.Advisor implements it.
type Advisor interface {
	Advise(ctx context.Context, txs []core.Transaction, sum core.FinancialSummary) []string
	Loading() bool
}

// Options tunes the server. Zero values get defaults.
type Options struct {
	Currency           string
	Location           *time.Location
	BotToken           string
	InitDataMaxAge     time.Duration
	RateLimitPerMinute int
	ChartCacheSize     int
	ChartCacheTTL      time.Duration
	Logger             *applog.Logger
	Now                func() time.Time
}

// Server is the API server with its middleware state.
type Server struct {
	http.Server

	txs     Transactions
	ledger  LedgerState
	advisor Advisor

	renderer *charts.Renderer
	charts   *cache.Charts
	chartLRU *cache.LRU[[]byte]
	janitor  *cache.Janitor

	trace    *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector

	calendar       core.Calendar
	currency       string
	botToken       string
	initDataMaxAge time.Duration
	now            func() time.Time
	logger         *applog.Logger

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, txs Transactions, ledger LedgerState, advisor Advisor, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.New(applog.DefaultConfig())
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if opts.ChartCacheSize <= 0 {
		opts.ChartCacheSize = 64
	}
	if opts.ChartCacheTTL <= 0 {
		opts.ChartCacheTTL = 10 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	chartLRU := cache.NewLRU[[]byte](opts.ChartCacheSize, opts.ChartCacheTTL)
	janitor := cache.NewJanitor(opts.Logger)
	janitor.Register(chartLRU)

	s := &Server{
		txs:            txs,
		ledger:         ledger,
		advisor:        advisor,
		renderer:       charts.NewRenderer(func(v float64) string { return core.FormatAmount(decimal.NewFromFloat(v), opts.Currency) }),
		charts:         cache.NewCharts(chartLRU),
		chartLRU:       chartLRU,
		janitor:        janitor,
		detector:       security.NewDetector(opts.Logger),
		limiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		calendar:       core.RussianCalendar(opts.Location),
		currency:       opts.Currency,
		botToken:       opts.BotToken,
		initDataMaxAge: opts.InitDataMaxAge,
		now:            opts.Now,
		logger:         logger,
	}
	s.trace = trace.NewMiddleware(opts.Logger, s.detector.ClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	api.HandleFunc("GET /api/summary", s.handleSummary)
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/analytics", s.handleAnalytics)
	api.HandleFunc("GET /api/analytics/categories.png", s.handleCategoriesChart)
	api.HandleFunc("GET /api/analytics/timeline.png", s.handleTimelineChart)
	api.HandleFunc("POST /api/advice", s.handleAdvice)
	api.HandleFunc("GET /api/advice/status", s.handleAdviceStatus)
	mux.Handle("/api/", security.NoStore(s.withHost(api)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.detector.ClientIP(r),
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = s.trace.Handler(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// Advice calls may take as long as the generator timeout.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// withHost resolves the host context from the initData header. Without a
// bot token or header the request runs with host.None. A header that fails
// validation is rejected.
func (s *Server) withHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderInitData)
		if raw == "" || s.botToken == "" {
			next.ServeHTTP(w, r.WithContext(host.NewContext(r.Context(), host.None{})))
			return
		}
		tg, err := host.ParseInitData(raw, s.botToken, s.initDataMaxAge, s.now())
		if err != nil {
			applog.FromContext(r.Context()).WithComponent(applog.ComponentHost).WarnContext(r.Context(), "Rejected init data",
				applog.FieldOperation, applog.OpValidate,
				applog.FieldError, err,
				applog.FieldClientIP, s.detector.ClientIP(r))
			ErrorResponse(http.StatusUnauthorized, "invalid init data").Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(host.NewContext(r.Context(), tg)))
	})
}

// RunMaintenance sweeps the chart cache and rate limiter state and picks up
// ledger writes made by other processes until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context, interval time.Duration) error {
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		_ = s.janitor.Run(ctx, interval)
	}()
	go func() {
		defer wg.Done()
		_ = s.limiter.Run(ctx, interval)
	}()
	go func() {
		defer wg.Done()
		s.reloadLedger(ctx, interval)
	}()
	wg.Wait()
	return ctx.Err()
}

func (s *Server) reloadLedger(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changed, err := s.ledger.Reload(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				s.logger.WarnContext(ctx, "Failed to reload ledger",
					applog.FieldOperation, applog.OpRead,
					applog.FieldError, err)
			case changed:
				s.logger.InfoContext(ctx, "Ledger changed outside this process", "revision", s.ledger.Revision())
			}
		}
	}
}

// ListenAndServe treats a graceful shutdown as success.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.logger.InfoContext(ctx, "HTTP server shutting down", applog.FieldOperation, applog.OpShutdown)
		err = s.Server.Shutdown(ctx)
	})
	return err
}
