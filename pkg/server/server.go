// Package server assembles the HTTP surface of the relay: the webhook
// endpoint, the Intuit OAuth consent flow, healthchecks, and metrics.
package server

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solarix/connector/internal/httpx"
	"github.com/solarix/connector/pkg/connector"
	"github.com/solarix/connector/pkg/intuit"
)

// Authorizer is the OAuth surface the server drives. Satisfied by
// *intuit.Authorizer.
type Authorizer interface {
	ExchangeCode(ctx context.Context, code string) (*intuit.Tokens, error)
}

// Ledger is the healthcheck surface. Satisfied by *intuit.Client.
type Ledger interface {
	CompanyInfoRead(ctx context.Context) (intuit.Entity, error)
}

// Config configures the HTTP server.
type Config struct {
	// Prefix is prepended to every application route, e.g. "/v1".
	Prefix string

	// StripeWebhookPath is the POST path for webhook deliveries,
	// relative to Prefix.
	StripeWebhookPath string

	// Webhook handles Stripe deliveries. Required.
	Webhook http.Handler

	// Auth exchanges OAuth authorization codes. Required.
	Auth Authorizer

	// Ledger answers the Intuit healthcheck. Required.
	Ledger Ledger

	// ConsentURL builds the Intuit user consent URL for a CSRF state.
	ConsentURL func(state string) string

	// Registry backs the /metrics endpoint. Defaults to the global
	// Prometheus registry.
	Registry *prometheus.Registry

	Logger connector.Logger
}

// Server serves the relay's HTTP routes.
type Server struct {
	router     http.Handler
	auth       Authorizer
	ledger     Ledger
	consentURL func(string) string
	logger     connector.Logger

	mu    sync.Mutex
	state string
}

// New builds the router and returns the server.
func New(cfg Config) (*Server, error) {
	if cfg.Webhook == nil {
		return nil, fmt.Errorf("server: webhook handler is required")
	}
	if cfg.Auth == nil {
		return nil, fmt.Errorf("server: authorizer is required")
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("server: ledger client is required")
	}
	if cfg.ConsentURL == nil {
		return nil, fmt.Errorf("server: consent URL builder is required")
	}
	if cfg.StripeWebhookPath == "" {
		cfg.StripeWebhookPath = "/stripe/webhook"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &connector.NoopLogger{}
	}

	s := &Server{
		auth:       cfg.Auth,
		ledger:     cfg.Ledger,
		consentURL: cfg.ConsentURL,
		logger:     logger,
	}

	var metricsHandler http.Handler
	if cfg.Registry != nil {
		metricsHandler = promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})
	} else {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthcheck", s.handleHealthcheck)
	r.Handle("/metrics", metricsHandler)

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/v1"
	}
	r.Route(prefix, func(r chi.Router) {
		r.Post(cfg.StripeWebhookPath, cfg.Webhook.ServeHTTP)
		r.Get("/intuit/authorize", s.handleAuthorize)
		r.Get("/intuit/callback", s.handleCallback)
		r.Get("/intuit/healthcheck", s.handleIntuitHealthcheck)
	})

	s.router = r
	return s, nil
}

// Handler returns the assembled router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthcheck(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"statusCode": http.StatusOK,
		"message":    "success",
	})
}

// handleAuthorize starts the user consent flow. The generated state is
// held until the callback returns; only one flow is in flight at a time
// because only the operator ever walks it.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	http.Redirect(w, r, s.consentURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := q.Get("state")
	s.mu.Lock()
	expected := s.state
	s.state = ""
	s.mu.Unlock()
	if expected == "" || subtle.ConstantTimeCompare([]byte(state), []byte(expected)) != 1 {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	if _, err := s.auth.ExchangeCode(r.Context(), code); err != nil {
		s.logger.Error("authorization code exchange failed",
			connector.Field{Key: "error", Value: err.Error()})
		http.Error(w, "authorization failed", http.StatusInternalServerError)
		return
	}

	s.logger.Info("intuit authorization completed",
		connector.Field{Key: "realm_id", Value: q.Get("realmId")})
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Authorization successful.",
	})
}

func (s *Server) handleIntuitHealthcheck(w http.ResponseWriter, r *http.Request) {
	if _, err := s.ledger.CompanyInfoRead(r.Context()); err != nil {
		s.logger.Warn("intuit healthcheck failed",
			connector.Field{Key: "error", Value: err.Error()})
		_ = httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]any{
			"statusCode": http.StatusServiceUnavailable,
			"message":    "failure",
		})
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"statusCode": http.StatusOK,
		"message":    "success",
	})
}
