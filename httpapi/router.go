package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MrEthical07/credcore"
	"github.com/MrEthical07/credcore/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Authenticator is the engine surface used by the handlers.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (*credcore.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*credcore.Session, error)
	Logout(ctx context.Context, refreshToken string) error
	middleware.Validator
}

// Options configures NewRouter.
type Options struct {
	Auth   Authenticator
	Logger zerolog.Logger

	// CookieSecure forces the Secure attribute. Requests over TLS always get it.
	CookieSecure bool
	// CORSOrigins lists origins allowed to call the API with credentials.
	// Empty disables CORS handling.
	CORSOrigins []string
	// TrustProxyHeaders takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	// Health is called by /healthz. Nil always reports healthy.
	Health func(ctx context.Context) error
}

const requestIDHeader = "X-Request-Id"

// NewRouter builds the HTTP handler for opts.
func NewRouter(opts Options) http.Handler {
	h := &handler{auth: opts.Auth, cookieSecure: opts.CookieSecure}

	r := chi.NewRouter()
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(hlog.NewHandler(opts.Logger))
	r.Use(requestID)
	r.Use(hlog.RemoteAddrHandler("ip"))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(chimw.Recoverer)
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           600,
		}).Handler)
	}

	r.Get("/healthz", healthHandler(opts.Health))
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Use(clientMetadata)
		r.Post("/login", h.login)
		r.Post("/refresh", h.refresh)
		r.Post("/logout", h.logout)
		r.With(middleware.Guard(opts.Auth)).Get("/me", h.me)
	})

	return r
}

// requestID reuses an inbound X-Request-Id or assigns a new one, echoes it and
// adds it to the request logger.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("req_id", id)
		})
		next.ServeHTTP(w, r)
	})
}

// clientMetadata copies the caller address and user agent into the context
// for the engine's audit events.
func clientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := credcore.WithClientIP(r.Context(), clientIP(r.RemoteAddr))
		ctx = credcore.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				hlog.FromRequest(r).Warn().Err(err).Msg("health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
