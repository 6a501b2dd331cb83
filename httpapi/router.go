package httpapi

import (
	"context"
	"net/http"
	"time"

	goReset "github.com/MrEthical07/goReset"
	resetmw "github.com/MrEthical07/goReset/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
)

// Engine is the subset of *goReset.Engine the handlers call.
type Engine interface {
	Issue(ctx context.Context, email string) (goReset.IssueResult, error)
	Verify(ctx context.Context, tokenID, answer, newPassword string) (goReset.VerifyResult, error)
	Lookup(ctx context.Context, tokenID string) (goReset.TokenInfo, error)
}

type Options struct {
	// ReturnToken echoes the issued token in the request response. Only
	// for development and automated tests.
	ReturnToken bool
	// TenantHeader, when set, scopes requests by this header's value.
	TenantHeader   string
	AllowedOrigins []string
	// RetryAfter is sent with 429 responses. Usually the limiter window.
	RetryAfter time.Duration
	// RequestLog enables chi's request logger.
	RequestLog bool
}

type handler struct {
	engine Engine
	opts   Options
	v      *validator.Validate
}

// NewRouter returns the reset API mounted at the root.
func NewRouter(engine Engine, opts Options) chi.Router {
	h := &handler{engine: engine, opts: opts, v: validator.New()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		headers := []string{"Accept", "Content-Type", "X-Request-ID"}
		if opts.TenantHeader != "" {
			headers = append(headers, opts.TenantHeader)
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: headers,
			MaxAge:         300,
		}))
	}
	r.Use(resetmw.ResetContext(opts.TenantHeader))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Route("/password-reset", func(r chi.Router) {
		r.Post("/request", h.request)
		r.Post("/confirm", h.confirm)
		r.Get("/{key}", h.lookup)
	})

	return r
}
