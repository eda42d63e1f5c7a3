package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ContentRewriter/internal/approval"
	"ContentRewriter/internal/prompt"
	"ContentRewriter/internal/usage"
)

// HandlerDeps wires the review surface. Selector may be nil when A/B
// testing is disabled.
type HandlerDeps struct {
	Workflow     *approval.Workflow
	Selector     *prompt.Selector
	Usage        *usage.Accounting
	UsageService string
	Logger       *slog.Logger
}

// Handler serves the approval API.
type Handler struct {
	workflow     *approval.Workflow
	selector     *prompt.Selector
	usage        *usage.Accounting
	usageService string
	logger       *slog.Logger
	now          func() time.Time
}

// NewHandler constructs the HTTP handler.
func NewHandler(deps HandlerDeps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	service := deps.UsageService
	if service == "" {
		service = "llm"
	}
	return &Handler{
		workflow:     deps.Workflow,
		selector:     deps.Selector,
		usage:        deps.Usage,
		usageService: service,
		logger:       logger.With("component", "httpapi"),
		now:          time.Now,
	}
}

// NewRouter registers the review routes and middleware.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(h.recoverMiddleware)
	r.Use(h.loggingMiddleware)

	r.Get("/healthz", h.healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/pending", h.listPending)
		r.Get("/stats", h.stats)
		r.Get("/prompts", h.prompts)
		r.Get("/usage", h.usageSummary)
		r.Post("/approve/{id}", h.approve)
		r.Post("/reject/{id}", h.reject)
		r.Post("/publish/{id}", h.publish)
	})

	return r
}
