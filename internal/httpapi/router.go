package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"studentsnet/internal/ratelimit"
	"studentsnet/internal/service"
)

// Metrics receives HTTP-level security counters. A nil Metrics disables them.
type Metrics interface {
	RecordRateLimited(class string)
	RecordHTTPStatus(statusCode int)
}

type RouterOpts struct {
	Logger     *slog.Logger
	IsProd     bool
	TrustProxy bool

	DBPing func(context.Context) error

	Auth    *service.AuthService
	Limiter *ratelimit.Limiter
	Audit   service.AuditRecorder
	Metrics Metrics
	Now     func() time.Time
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.DefaultConfig())
	}

	api := &api{
		logger:     logger,
		isProd:     opts.IsProd,
		trustProxy: opts.TrustProxy,
		dbPing:     opts.DBPing,
		authSvc:    opts.Auth,
		limiter:    limiter,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		sanitizer:  newFieldSanitizer(),
		now:        now,
	}

	publicMux := http.NewServeMux()
	apiMux := http.NewServeMux()

	publicMux.HandleFunc("GET /healthz", api.handleHealthz)
	publicMux.HandleFunc("/", handleNotFound)

	general := func(h http.HandlerFunc) http.HandlerFunc { return api.rateLimit(ratelimit.ClassGeneral, h) }

	apiMux.HandleFunc("GET /api", general(api.handleRoot))
	apiMux.HandleFunc("GET /api/{$}", general(api.handleRoot))
	if api.authSvc == nil {
		apiMux.HandleFunc("POST /api/register", handleNotImplemented)
		apiMux.HandleFunc("POST /api/login", handleNotImplemented)
		apiMux.HandleFunc("GET /api/profile", handleNotImplemented)
	} else {
		apiMux.HandleFunc("POST /api/register", api.rateLimit(ratelimit.ClassRegister, api.handleAuthRegister))
		apiMux.HandleFunc("POST /api/login", api.rateLimit(ratelimit.ClassLogin, api.handleAuthLogin))
		apiMux.HandleFunc("GET /api/profile", general(api.requireAuth(api.handleProfile)))
		apiMux.HandleFunc("POST /api/profile/password", api.rateLimit(ratelimit.ClassLogin, api.requireAuth(api.handleChangePassword)))
		apiMux.HandleFunc("POST /api/accounts/{contact}/unlock", general(api.requireAuth(api.handleUnlockAccount)))
		apiMux.HandleFunc("POST /api/payments", api.rateLimit(ratelimit.ClassPayment, api.requireAuth(handleNotImplemented)))
	}

	apiHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, pattern := apiMux.Handler(r)
		if pattern == "" {
			general(handleNotFound)(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})

	root := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/api" {
			apiHandler.ServeHTTP(w, r)
			return
		}
		publicMux.ServeHTTP(w, r)
	})

	var h http.Handler = root
	h = SecurityHeaders()(h)
	h = ResponseMetrics(opts.Metrics)(h)
	h = RequestLogger(logger)(h)
	h = RequestID()(h)
	h = Recoverer(logger, opts.IsProd)(h)
	return h
}

func handleNotImplemented(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotImplemented, "not_implemented", "not implemented")
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "not_found", "not found")
}

type api struct {
	logger     *slog.Logger
	isProd     bool
	trustProxy bool

	dbPing func(context.Context) error

	authSvc   *service.AuthService
	limiter   *ratelimit.Limiter
	audit     service.AuditRecorder
	metrics   Metrics
	sanitizer *fieldSanitizer
	now       func() time.Time
}

func (a *api) handleRoot(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"message": "StudentsNet API"})
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("db down"))
			return
		}
	}

	_, _ = w.Write([]byte("ok"))
}
