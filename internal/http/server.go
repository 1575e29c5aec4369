package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"edufund/internal/cache"
	"edufund/internal/core"
	"edufund/internal/log"
	"edufund/internal/middleware/ratelimit"
	"edufund/internal/middleware/security"
	"edufund/internal/middleware/trace"
	"edufund/internal/services"
)

// Ledger is the donation and funding workflow behind the API.
type Ledger interface {
	SubmitDonation(ctx context.Context, in services.DonationInput) (core.Donation, error)
	SubmitFunding(ctx context.Context, in services.FundingInput) (core.Funding, error)
	GetDonation(ctx context.Context, id string) (core.Donation, error)
	GetFunding(ctx context.Context, id string) (core.Funding, error)
	ListDonations(ctx context.Context, flt core.Filter) ([]core.Donation, error)
	ListFundings(ctx context.Context, flt core.Filter) ([]core.Funding, error)
	Review(ctx context.Context, kind core.RecordKind, id string, action core.ReviewAction, opinion string) error
	Delete(ctx context.Context, kind core.RecordKind, id string) error
	Recompute(ctx context.Context) ([]core.MonthlyFinancial, error)
	Financials(ctx context.Context) ([]core.MonthlyFinancial, error)
	Dashboard(ctx context.Context, now time.Time) (core.Dashboard, error)
	OnChange(fn func())
	Now() time.Time
}

type Accounts interface {
	Register(ctx context.Context, reg core.Registration) (core.User, error)
	Login(ctx context.Context, username, password string) (core.User, error)
	ResetPassword(ctx context.Context, username, phone, newPassword string) error
}

type Calibration interface {
	NewDraft() core.Detection
	Save(ctx context.Context, d core.Detection) (core.Detection, error)
	Get(ctx context.Context, id string) (core.Detection, error)
	List(ctx context.Context) ([]core.Detection, error)
	Delete(ctx context.Context, id string) error
}

// Dependencies are the services the API exposes. Ready, when set, backs
// /readyz.
type Dependencies struct {
	Ledger      Ledger
	Accounts    Accounts
	Calibration Calibration
	Ready       func(ctx context.Context) error
}

type Config struct {
	Addr               string
	RateLimitPerMinute int
	CacheTTL           time.Duration
	CacheSize          int
	Logger             *log.Logger
}

type Server struct {
	http.Server

	deps   Dependencies
	logger *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	caches          *cache.Manager
	financialsCache *cache.LRUCache[[]core.MonthlyFinancial]
	dashboardCache  *cache.LRUCache[core.Dashboard]

	shutdownOnce sync.Once
}

// NewServer configures the router and returns a ready-to-run server.
func NewServer(cfg Config, deps Dependencies) *Server {
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 128
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}

	s := &Server{
		deps:            deps,
		logger:          cfg.Logger.WithComponent(log.ComponentHTTP),
		limiter:         ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector:        security.NewDetector(),
		caches:          cache.NewManager(),
		financialsCache: cache.NewLRUCache[[]core.MonthlyFinancial](1, cfg.CacheTTL),
		dashboardCache:  cache.NewLRUCache[core.Dashboard](cfg.CacheSize, cfg.CacheTTL),
	}
	s.tracer = trace.NewMiddleware(cfg.Logger, s.detector.ClientIP)

	s.caches.Register(s.financialsCache)
	s.caches.Register(s.dashboardCache)
	s.caches.StartCleanup(cfg.CacheTTL)
	deps.Ledger.OnChange(s.purgeCaches)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.Headers(security.APIHeadersConfig()))
	r.Use(s.limitMutations)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("no such route").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed").Write(w)
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Post("/reset", s.handleResetPassword)
		})

		r.Route("/donations", s.recordRoutes(core.KindDonation))
		r.Route("/fundings", s.recordRoutes(core.KindFunding))

		r.Route("/financials", func(r chi.Router) {
			r.Get("/", s.handleListFinancials)
			r.Post("/recompute", s.handleRecompute)
			r.Get("/{month}", s.handleGetFinancial)
			r.Get("/{month}/export", s.handleExportFinancial)
		})
		r.Get("/dashboard", s.handleDashboard)

		r.Route("/detections", func(r chi.Router) {
			r.Get("/", s.handleListDetections)
			r.Post("/", s.handleSaveDetection)
			r.Get("/new", s.handleNewDetection)
			r.Get("/{id}", s.handleGetDetection)
			r.Put("/{id}", s.handleSaveDetection)
			r.Delete("/{id}", s.handleDeleteDetection)
			r.Get("/{id}/report", s.handleDetectionReport)
		})
	})
	return r
}

// limitMutations applies the per-client limit to every non-read request.
func (s *Server) limitMutations(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "rate limit exceeded, try again later").Write(w)
	})(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func (s *Server) purgeCaches() {
	s.financialsCache.Purge()
	s.dashboardCache.Purge()
}

// Shutdown drains the HTTP server and stops the background janitors.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Close stops the janitors and closes the listener without draining.
func (s *Server) Close() error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		err = s.Server.Close()
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err.Error())
			ErrorResponse(http.StatusServiceUnavailable, "not_ready", "storage unavailable").Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// fail writes err and logs it when it is not a known domain error.
func fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if _, known := classify(err); !known && !errors.Is(err, context.Canceled) {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, "", "", ""))
	}
	ServiceError(err).Write(w)
}
