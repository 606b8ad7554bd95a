package web

import (
	"context"
	"embed"
	"net/http"
	"time"

	"parishweb/internal/adapters/backend"
	"parishweb/internal/adapters/http/middleware"
	"parishweb/internal/adapters/perf"
	themeStore "parishweb/internal/adapters/storage/theme"
	"parishweb/internal/domain/conflict"
	"parishweb/internal/domain/recipient"
	"parishweb/internal/domain/upcoming"
)

//go:embed templates/*.html
var templateFS embed.FS

// pruneEvery is how often idle rate-limit buckets are dropped.
const pruneEvery = time.Minute

// ConflictSource answers conflict checks. *backend.Client implements it.
type ConflictSource interface {
	CheckConflicts(ctx context.Context, subjectID string, snap conflict.Snapshot) (conflict.Report, error)
}

// Directory lists emailable parishioners. *backend.CachedDirectory implements it.
type Directory interface {
	Recipients(ctx context.Context) ([]recipient.Recipient, error)
}

// UpcomingSource lists the dashboard's upcoming events. *backend.Client implements it.
type UpcomingSource interface {
	UpcomingEvents(ctx context.Context) ([]upcoming.Event, error)
}

// Pinger reports database health. *storage.TimedDB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps holds everything the handlers need.
type Deps struct {
	Conflicts  ConflictSource
	Recipients Directory
	Upcoming   UpcomingSource
	Themes     themeStore.Store
	DB         Pinger
	Perf       *perf.Collector // nil disables request timing records and /debug/perf

	// BackendBaseURL is where the compose form is submitted.
	BackendBaseURL string
	// SessionCookies names the visitor cookies relayed to the backend.
	SessionCookies []string
	// StaticDir holds the page script served under /static/; empty disables it.
	StaticDir string

	CSRFKey            []byte
	TrustedOrigins     []string
	Production         bool
	RateLimitPerSecond float64
	SlowRequest        time.Duration
}

type server struct {
	deps Deps
	now  func() time.Time
}

var _ ConflictSource = (*backend.Client)(nil)
var _ Directory = (*backend.CachedDirectory)(nil)
var _ UpcomingSource = (*backend.Client)(nil)

// NewMux wires HTTP handlers for the app. The rate limiter's pruning stops with ctx.
// PRE: d.Conflicts, d.Recipients, d.Upcoming, d.Themes and d.DB are non-nil; d.CSRFKey is 32 bytes
func NewMux(ctx context.Context, d Deps) http.Handler {
	s := &server{deps: d, now: time.Now}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var recorder perf.Recorder
	if d.Perf != nil {
		recorder = d.Perf
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.SecurityHeaders,
		middleware.CSRF(d.CSRFKey, d.Production, d.TrustedOrigins...),
		middleware.Visitor(d.Production),
	}
	if d.RateLimitPerSecond > 0 {
		limiter := middleware.NewRateLimiter(d.RateLimitPerSecond)
		go limiter.RunPruner(ctx, pruneEvery)
		middlewares = append(middlewares, middleware.RateLimit(limiter))
	}
	middlewares = append(middlewares, middleware.Timing(recorder, d.SlowRequest))

	// Timing -> RateLimit -> Visitor -> CSRF -> SecurityHeaders -> Mux
	return middleware.Chain(mux, middlewares...)
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleHome)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /parishioners/view/{id}", s.handleParishionerView)
	mux.HandleFunc("POST /parishioners/view/{id}/check-conflicts", s.handleCheckConflicts)
	mux.HandleFunc("GET /gmail/compose", s.handleCompose)
	mux.HandleFunc("GET /gmail/recipients", s.handleRecipients)
	mux.HandleFunc("GET /theme", s.handleGetTheme)
	mux.HandleFunc("POST /theme/toggle", s.handleThemeToggle)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.deps.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(s.deps.StaticDir))))
	}
	if !s.deps.Production && s.deps.Perf != nil {
		mux.HandleFunc("GET /debug/perf", s.handleDebugPerf)
	}
}
