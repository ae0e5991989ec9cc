package httpapi

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"studentsnet/internal/domain"
	"studentsnet/internal/ratelimit"
)

type authCtxKey int

const authPrincipalKey authCtxKey = iota

// requireAuth verifies the bearer token on every request. Missing, malformed and
// expired tokens all get the same 401.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := a.authSvc.Authenticate(r.Context(), bearerToken(r), a.clientIP(r))
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			WriteDomainError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), authPrincipalKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func CurrentPrincipal(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(authPrincipalKey).(domain.Principal)
	return p, ok
}

// rateLimit rejects over-limit requests before anything downstream runs.
func (a *api) rateLimit(class ratelimit.Class, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := a.clientIP(r)
		d := a.limiter.Allow(ip, class, a.now())
		if d.Allowed {
			next.ServeHTTP(w, r)
			return
		}

		if a.audit != nil {
			a.audit.Record(r.Context(), domain.AuditEvent{
				Timestamp: a.now().UTC(),
				Category:  domain.AuditRateLimited,
				Subject:   domain.AuditSubjectUnknown,
				ClientIP:  ip,
				Detail:    class.String() + " " + r.Method + " " + r.URL.Path,
			})
		}
		if a.metrics != nil {
			a.metrics.RecordRateLimited(class.String())
		}

		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
		WriteDomainError(w, domain.ErrRateLimited)
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (a *api) clientIP(r *http.Request) string {
	return clientIP(r, a.trustProxy)
}

// clientIP honours X-Forwarded-For only when the service sits behind a trusted proxy.
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
