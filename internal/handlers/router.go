package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cf-error-page/editor/internal/platform/httpx"
)

type routerConfig struct {
	prefix      string
	shortURL    bool
	middlewares []func(http.Handler) http.Handler
	timeout     time.Duration

	health   *HealthHandlers
	share    *ShareHandlers
	preview  *PreviewHandlers
	examples *ExampleHandlers
	editor   *EditorHandlers

	createLimiter rateLimiter
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultTimeout    = 30 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the editor routes:
//
//	GET  /                          redirect to the editor
//	GET  /health, /readyz           probes
//	GET  {prefix}/editor/*          editor bundle
//	POST {prefix}/editor/preview    draft preview
//	GET  {prefix}/examples/{name}   bundled examples
//	POST {prefix}/s/create          share creation (alias {prefix}/create)
//	GET  {prefix}/s/{name}          share playback, 308 to {prefix}/{name} with short URLs
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	if cfg.timeout > 0 {
		r.Use(middleware.Timeout(cfg.timeout))
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/health", cfg.health.Health)
	r.Get("/readyz", cfg.health.Readyz)

	mount := func(router chi.Router) {
		if cfg.editor != nil {
			router.Get("/", cfg.editor.Redirect)
			router.Get("/editor", cfg.editor.Redirect)
			router.Get("/editor/*", cfg.editor.Static)
		}
		if cfg.preview != nil {
			router.Post("/editor/preview", cfg.preview.Preview)
		}
		if cfg.examples != nil {
			router.Get("/examples", cfg.examples.List)
			router.Get("/examples/", cfg.examples.List)
			router.Get("/examples/{name}", cfg.examples.Get)
		}
		if cfg.share != nil {
			limited := router.With(rateLimitMiddleware(cfg.createLimiter))
			limited.Post("/s/create", cfg.share.Create)
			limited.Post("/create", cfg.share.Create)
			router.Get("/s/{name}", cfg.share.GetLong)
			if cfg.shortURL {
				router.Get("/{name}", cfg.share.Get)
			}
		}
	}

	if cfg.prefix == "" {
		mount(r)
		return r
	}
	if cfg.editor != nil {
		r.Get("/", cfg.editor.Redirect)
	}
	r.Route(cfg.prefix, mount)
	return r
}

// WithMiddlewares appends additional global middleware to the router.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithTimeout overrides the per-request timeout; zero disables it.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *routerConfig) {
		cfg.timeout = timeout
	}
}

// WithURLPrefix mounts every non-probe route under prefix.
func WithURLPrefix(prefix string) Option {
	return func(cfg *routerConfig) {
		cfg.prefix = prefix
	}
}

// WithShortShareURLs exposes shares at {prefix}/{name}.
func WithShortShareURLs(enabled bool) Option {
	return func(cfg *routerConfig) {
		cfg.shortURL = enabled
	}
}

// WithHealthHandlers overrides the handlers used for /health and /readyz.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithShareHandlers wires the share endpoints.
func WithShareHandlers(h *ShareHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.share = h
	}
}

// WithPreviewHandlers wires the preview endpoint.
func WithPreviewHandlers(h *PreviewHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.preview = h
	}
}

// WithExampleHandlers wires the example endpoints.
func WithExampleHandlers(h *ExampleHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.examples = h
	}
}

// WithEditorHandlers wires the editor bundle and the root redirect.
func WithEditorHandlers(h *EditorHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.editor = h
	}
}

// WithCreateRateLimit limits share creation per client address. Non-positive values disable
// the corresponding window.
func WithCreateRateLimit(perMinute, perHour int, clock func() time.Time) Option {
	return func(cfg *routerConfig) {
		cfg.createLimiter = newCreateRateLimiter(perMinute, perHour, clock)
	}
}
