package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/rs/cors"

	"faturas/internal/cache"
	"faturas/internal/core"
	"faturas/internal/dashboard"
	"faturas/internal/documents"
	"faturas/internal/log"
	"faturas/internal/metrics"
	"faturas/internal/records"
	"faturas/internal/selection"
	"faturas/internal/sources"
	appweb "faturas/web"
)

const (
	sessionCookie      = "fatura_session"
	defaultMaxSessions = 1000
	defaultSessionTTL  = 30 * time.Minute
)

// Options wires the server to the record store and the download pipeline.
type Options struct {
	Addr       string
	Store      *records.Store
	Querier    sources.AccountRecordSource // nil: months come from the snapshot
	Downloader *documents.Downloader       // nil: library downloads answer 503

	// Views memoises dashboard views across sessions; nil disables it.
	Views *cache.LRUCache[dashboard.View]
	// Caches, when set, gets the session cache registered for cleanup.
	Caches *cache.Manager

	SessionTTL         time.Duration
	MaxSessions        int
	RateLimit          int // POST requests per client per minute
	CORSAllowedOrigins []string
	Logger             *log.Logger
}

// session is the per-browser state: one selection resolver and the active
// dashboard selector.
type session struct {
	resolver  *selection.Resolver
	dashboard *dashboard.Controller
}

type Server struct {
	http.Server
	templates  *template.Template
	store      *records.Store
	querier    sources.AccountRecordSource
	downloader *documents.Downloader
	views      *cache.LRUCache[dashboard.View]
	sessions   *cache.LRUCache[*session]
	sessionTTL time.Duration

	rateLimiter *rateLimiter
	logger      *log.Logger
	started     time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		store:       opts.Store,
		querier:     opts.Querier,
		downloader:  opts.Downloader,
		views:       opts.Views,
		sessionTTL:  ttl,
		rateLimiter: newRateLimiter(opts.RateLimit),
		logger:      logger,
		started:     time.Now(),
	}
	s.sessions = cache.NewLRUCache[*session](maxSessions, ttl).OnEvict(func(key string, _ *session) {
		logger.Debug("Session expired", log.FieldSessionID, key)
	})
	if opts.Caches != nil {
		opts.Caches.Register(s.sessions)
	}
	go s.rateLimiter.startCleanup(5 * time.Minute)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	mux.HandleFunc("/", s.withSecurityHeaders(s.handleIndex))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.Handle("/metrics", metrics.Handler())

	// UI partials
	mux.HandleFunc("/ui/dashboard", s.withSecurityHeaders(s.handleDashboardPartial))

	// JSON API
	mux.HandleFunc("/api/accounts", s.withSecurityHeaders(s.handleAccounts))
	mux.HandleFunc("/api/dashboard", s.withSecurityHeaders(s.handleDashboard))
	mux.HandleFunc("/api/dashboard.xlsx", s.withSecurityHeaders(s.handleDashboardXLSX))
	mux.HandleFunc("/api/reload", s.withSecurityHeaders(s.handleReload))
	mux.HandleFunc("/api/library", s.withSecurityHeaders(s.handleLibraryStatus))
	mux.HandleFunc("/api/library/account", s.withSecurityHeaders(s.handleLibraryAccount))
	mux.HandleFunc("/api/library/month", s.withSecurityHeaders(s.handleLibraryMonth))
	mux.HandleFunc("/api/library/download", s.withSecurityHeaders(s.handleLibraryDownload))

	var handler http.Handler = mux
	if len(opts.CORSAllowedOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   opts.CORSAllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Content-Type", "HX-Request", "HX-Target", "HX-Current-URL"},
			ExposedHeaders:   []string{"Content-Disposition", "HX-Trigger"},
			AllowCredentials: true,
		}).Handler(handler)
	}
	s.Handler = log.Middleware(logger)(handler)

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routine.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// sessionFor returns the caller's session. Only ids already held by the
// session cache are reused; anything else gets a fresh id and cookie.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request) *session {
	if c, err := r.Cookie(sessionCookie); err == nil {
		if sess, ok := s.sessions.Get(c.Value); ok {
			return sess
		}
	}

	id := generateSessionID()
	sess, _ := s.sessions.GetOrCreate(id, func() *session {
		return &session{
			resolver:  selection.NewResolver(s.store, s.querier, s.logger),
			dashboard: dashboard.NewController(s.store, s.views, s.logger),
		}
	})
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.sessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

// withSecurityHeaders adds security headers, rate limiting, and request
// logging to responses.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		logger := log.FromContext(r.Context()).With(log.FieldRequestID, requestID)
		ctx := log.NewContext(r.Context(), logger)
		r = r.WithContext(ctx)

		if detectSuspiciousRequest(r) {
			metrics.IncHTTPRejected("suspicious")
			logger.WarnContext(ctx, "Suspicious request",
				log.FieldClientIP, clientIP,
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
		}

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			metrics.IncHTTPRejected("rate_limited")
			logger.WarnContext(ctx, "Rate limit exceeded",
				log.FieldClientIP, clientIP,
				log.FieldPath, r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		log.NewStructuredLogger(logger).LogHTTPEnd(ctx, r, rw.statusCode, time.Since(start).Milliseconds(), clientIP)
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

var templateFuncs = template.FuncMap{
	"reais": core.FormatReais,
	"kwh":   core.FormatKWh,
}
