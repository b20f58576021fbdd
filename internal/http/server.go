package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"rareport/internal/core"
	"rareport/internal/journal"
	"rareport/internal/log"
	"rareport/internal/middleware/ratelimit"
	"rareport/internal/middleware/security"
	"rareport/internal/middleware/trace"
	"rareport/internal/services"
	appweb "rareport/web"
)

// Options configures a Server.
type Options struct {
	Addr    string
	Reports *services.ReportService
	Journal journal.Lister
	// Ready checks the journal backend; nil means always ready.
	Ready          func(ctx context.Context) error
	MaxUploadBytes int64
	Currency       string
	UploadLimit    ratelimit.Config
	Logger         *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	reports   *services.ReportService
	journal   journal.Lister
	ready     func(ctx context.Context) error
	maxUpload int64
	currency  string
	logger    *log.Logger

	tracer   *trace.Middleware
	detector *security.Detector
	limiter  *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	if opts.Currency == "" {
		opts.Currency = core.DefaultCurrency
	}
	if opts.UploadLimit.Requests <= 0 {
		opts.UploadLimit = ratelimit.Config{Requests: 20, Window: time.Minute}
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	detector := security.NewDetector(opts.Logger)

	s := &Server{
		reports:   opts.Reports,
		journal:   opts.Journal,
		ready:     opts.Ready,
		maxUpload: opts.MaxUploadBytes,
		currency:  opts.Currency,
		logger:    logger,
		detector:  detector,
		tracer:    trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		limiter:   ratelimit.NewLimiter(opts.UploadLimit),
	}

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	mux := http.NewServeMux()

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))

	limitUploads := s.limiter.Middleware(detector.ExtractClientIP, http.MethodPost)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("POST /uploads", limitUploads(http.HandlerFunc(s.handleUpload)))
	mux.HandleFunc("GET /uploads", s.handleListUploads)
	mux.HandleFunc("GET /sessions/{id}/filters", s.handleFilters)
	mux.HandleFunc("GET /sessions/{id}/report", s.handleReport)
	mux.HandleFunc("GET /sessions/{id}/export/{dimension}", s.handleExportGroup)
	mux.HandleFunc("GET /sessions/{id}/transactions.csv", s.handleExportTransactions)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDiscard)
	mux.HandleFunc("POST /sessions/{id}/discard", s.handleDiscard)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var h http.Handler = mux
	h = log.RequestIDMiddleware(trace.FromRequest)(h)
	h = log.Middleware(opts.Logger)(h)
	h = s.tracer.Middleware(h)
	h = detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(d decimal.Decimal) string { return core.FormatAmount(d, s.currency) },
		"has":   func(values []string, v string) bool { return slices.Contains(values, v) },
	}
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
