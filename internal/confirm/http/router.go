package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/confirm/internal/confirm/chat"
	"github.com/aussiebroadwan/confirm/internal/confirm/metrics"
	"github.com/aussiebroadwan/confirm/internal/confirm/service"
	"github.com/aussiebroadwan/confirm/internal/confirm/store"
	"github.com/aussiebroadwan/confirm/pkg/httpx"
	"github.com/aussiebroadwan/confirm/pkg/jwtx"
	"github.com/aussiebroadwan/confirm/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	robot    *chat.Robot
	registry *service.Registry
	metrics  *metrics.Metrics
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	robot *chat.Robot,
	registry *service.Registry,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		robot:        robot,
		registry:     registry,
		metrics:      m,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerMessages()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerMessages() {
	h := &MessageHandler{Robot: r.robot}

	// Every confirmation attempt is a message, so this limit also bounds
	// one-time password guessing per sender.
	r.Mux.Handle("POST /v1/messages",
		httpx.Chain(h,
			httpx.AuthnMiddleware(r.verifier),
			httpx.RateLimitByUser(httpx.MessageLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.registry),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(r.metrics.Handler(),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
