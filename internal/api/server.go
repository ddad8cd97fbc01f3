package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/webconsole/internal/config"
	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/host"
	"github.com/JakeFAU/webconsole/internal/id/uuid"
	"github.com/JakeFAU/webconsole/internal/metrics"
	"github.com/JakeFAU/webconsole/internal/relay"
	"github.com/JakeFAU/webconsole/internal/stream"
)

// IDGenerator mints operation and request IDs.
type IDGenerator interface {
	NewID() (string, error)
	NewRequestID() (string, error)
}

// Deps are the collaborators a Server needs beyond configuration.
type Deps struct {
	Registry *host.Registry
	// Publisher receives signals collected from remote relays; nil skips
	// publishing.
	Publisher relay.Publisher
	IDs       IDGenerator
	Logger    *zap.Logger
	// Observers see every event of every locally run operation next to the
	// viewer's own sink, e.g. a shared metrics sink.
	Observers []console.Sink
	// Client dials remote relays; http.DefaultClient when nil.
	Client *http.Client
}

// Server wires HTTP handlers to the operation registry and relay remotes.
type Server struct {
	router    chi.Router
	cfg       config.Config
	registry  *host.Registry
	publisher relay.Publisher
	ids       IDGenerator
	logger    *zap.Logger
	observers []console.Sink
	client    *http.Client
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg config.Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := deps.Registry
	if registry == nil {
		registry = host.NewRegistry()
	}
	ids := deps.IDs
	if ids == nil {
		ids = uuid.New()
	}
	client := deps.Client
	if client == nil {
		client = http.DefaultClient
	}
	s := &Server{
		cfg:       cfg,
		registry:  registry,
		publisher: deps.Publisher,
		ids:       ids,
		logger:    logger,
		observers: deps.Observers,
		client:    client,
	}
	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", s.listOperations)
			r.Get("/{name}/stream", s.streamOperation)
			r.Get("/{name}/relay", s.relayOperation)
		})
		r.Route("/remotes", func(r chi.Router) {
			r.Get("/", s.listRemotes)
			r.Get("/{name}/stream", s.streamRemote)
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ready",
		"operations": len(s.registry.List()),
	})
}

func (s *Server) listOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"operations": s.registry.List()})
}

func (s *Server) listRemotes(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(s.cfg.Relay.Remotes))
	for name := range s.cfg.Relay.Remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string]any{"remotes": names})
}

func (s *Server) lookupOperation(w http.ResponseWriter, r *http.Request) (host.Operation, bool) {
	name := chi.URLParam(r, "name")
	op, ok := s.registry.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "operation not found")
	}
	return op, ok
}

func (s *Server) lookupRemote(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	name := strings.ToLower(chi.URLParam(r, "name"))
	target, ok := s.cfg.Relay.Remotes[name]
	if !ok {
		writeError(w, http.StatusNotFound, "remote not found")
	}
	return name, target, ok
}

// operationContext detaches the operation from the viewer's connection:
// a viewer going away must not abort the work being watched.
func (s *Server) operationContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithCancel(context.WithoutCancel(r.Context()))
}

func (s *Server) newOperationID() string {
	id, err := s.ids.NewID()
	if err != nil {
		s.logger.Warn("operation id generation failed", zap.Error(err))
	}
	return id
}

func operationResult(err error) string {
	switch {
	case err == nil:
		return "succeeded"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// Ensure the live sink can carry relayed lines untouched.
var _ console.RawForwarder = (*stream.LiveSink)(nil)
