// Package api provides HTTP handlers for the launchpad API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/artpar/launchpad/internal/core/auth"
	"github.com/artpar/launchpad/internal/core/deployment"
	"github.com/artpar/launchpad/internal/core/domain"
	"github.com/artpar/launchpad/internal/shell/api/middleware"
	"github.com/artpar/launchpad/internal/shell/deployer"
	"github.com/artpar/launchpad/internal/shell/notify"
	"github.com/artpar/launchpad/internal/shell/store"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

// =============================================================================
// Collaborators
// =============================================================================

// Deployer triggers and stops deployments.
type Deployer interface {
	Deploy(ctx context.Context, projectID, requesterID int64, commitMessage string) (deployer.Accepted, error)
	StopDeployment(ctx context.Context, deploymentID string) (bool, error)
}

// Subscriptions registers live subscribers on topics.
type Subscriptions interface {
	Subscribe(topic string, client notify.Subscriber)
	Unsubscribe(topic string, client notify.Subscriber)
}

// Pinger is a dependency checked by the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds the handler's collaborators.
type Config struct {
	Store         store.Store
	Deployer      Deployer
	Subscriptions Subscriptions
	// Metrics serves /metrics when set
	Metrics http.Handler
	// Checks are pinged by /ready, keyed by name
	Checks       map[string]Pinger
	SharedSecret string
	Logger       *slog.Logger
}

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store    store.Store
	deployer Deployer
	subs     Subscriptions
	metrics  http.Handler
	checks   map[string]Pinger
	secret   string
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{
		store:    cfg.Store,
		deployer: cfg.Deployer,
		subs:     cfg.Subscriptions,
		metrics:  cfg.Metrics,
		checks:   cfg.Checks,
		secret:   cfg.SharedSecret,
		logger:   cfg.Logger.With("component", "api"),
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.With(h.jsonContentType).Get("/health", h.handleHealth)
	r.With(h.jsonContentType).Get("/ready", h.handleReady)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	authMW := middleware.NewAuthMiddleware(middleware.AuthConfig{
		SharedSecret: h.secret,
		Logger:       h.logger,
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(authMW.Handler)
		r.Use(middleware.RequireAuth(h.logger))

		r.Get("/ws", h.handleSubscribe)

		r.Group(func(r chi.Router) {
			r.Use(h.jsonContentType)

			r.Route("/projects/{id}", func(r chi.Router) {
				r.Post("/deploy", h.handleDeploy)
				r.Get("/deployments", h.handleListDeployments)
			})

			r.Route("/deployments/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetDeployment)
				r.Post("/stop", h.handleStopDeployment)
				r.Get("/logs", h.handleListLogs)
			})
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := chimw.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checks))
	ready := true
	for name, p := range h.checks {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = "failed"
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{Status: "not_ready", Checks: checks})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Checks: checks})
}

// =============================================================================
// Project Handlers
// =============================================================================

func (h *Handler) handleDeploy(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectIDParam(w, r)
	if !ok {
		return
	}

	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	requester := auth.FromContext(r.Context())
	accepted, err := h.deployer.Deploy(r.Context(), projectID, requester.UserID, req.CommitMessage)
	if err != nil {
		switch {
		case deployment.IsKind(err, deployment.KindNotFound):
			h.writeError(w, http.StatusNotFound, "project not found", "project_not_found")
		case errors.Is(err, deployer.ErrClosed):
			h.writeError(w, http.StatusServiceUnavailable, "shutting down", "unavailable")
		default:
			h.logger.Error("failed to start deploy", "project_id", projectID, "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to start deploy", "internal_error")
		}
		return
	}

	h.writeJSON(w, http.StatusAccepted, accepted)
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectIDParam(w, r)
	if !ok {
		return
	}
	if _, ok := h.loadProject(w, r, projectID); !ok {
		return
	}

	opts := listOptions(r)
	deployments, err := h.store.ListDeploymentsByProject(r.Context(), projectID, opts)
	if err != nil {
		h.logger.Error("failed to list deployments", "project_id", projectID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentResponse, 0, len(deployments)),
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	for i := range deployments {
		resp.Deployments = append(resp.Deployments, deploymentToResponse(&deployments[i]))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	dep, ok := h.loadDeployment(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, deploymentToResponse(dep))
}

func (h *Handler) handleStopDeployment(w http.ResponseWriter, r *http.Request) {
	dep, ok := h.loadDeployment(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	stopped, err := h.deployer.StopDeployment(r.Context(), dep.ID)
	if err != nil {
		if deployment.IsKind(err, deployment.KindNotFound) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return
		}
		h.logger.Error("failed to stop deployment", "deployment_id", dep.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to stop deployment", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, StopResponse{DeploymentID: dep.ID, Stopped: stopped})
}

func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	dep, ok := h.loadDeployment(w, r, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	opts := listOptions(r)
	entries, err := h.store.ListBuildLogs(r.Context(), dep.ID, opts)
	if err != nil {
		h.logger.Error("failed to list logs", "deployment_id", dep.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list logs", "internal_error")
		return
	}

	resp := ListLogsResponse{
		DeploymentID: dep.ID,
		Entries:      make([]LogEntryResponse, 0, len(entries)),
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, LogEntryResponse{
			ID:        e.ID,
			Level:     string(e.Level),
			Message:   e.Message,
			CreatedAt: e.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// Live Subscriptions
// =============================================================================

// handleSubscribe upgrades to a websocket streaming one topic: a project's
// deploy events or a deployment's log lines.
func (h *Handler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if !h.authorizeTopic(w, r, topic) {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "topic", topic, "error", err)
		return
	}

	client := notify.NewClient(conn, h.logger)
	h.subs.Subscribe(topic, client)
	defer func() {
		h.subs.Unsubscribe(topic, client)
		client.Close()
	}()

	client.Wait()
}

func (h *Handler) authorizeTopic(w http.ResponseWriter, r *http.Request, topic string) bool {
	const depPrefix = "deployment-"
	switch {
	case strings.HasPrefix(topic, depPrefix):
		_, ok := h.loadDeployment(w, r, strings.TrimPrefix(topic, depPrefix))
		return ok
	case strings.HasPrefix(topic, "project-"):
		id, err := strconv.ParseInt(strings.TrimPrefix(topic, "project-"), 10, 64)
		if err != nil || deployment.ProjectTopic(id) != topic {
			h.writeJSONError(w, http.StatusBadRequest, "invalid topic", "validation_error")
			return false
		}
		_, ok := h.loadProject(w, r, id)
		return ok
	default:
		h.writeJSONError(w, http.StatusBadRequest, "invalid topic", "validation_error")
		return false
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) projectIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid project id", "validation_error")
		return 0, false
	}
	return id, true
}

// loadProject loads a project the requester may view. Foreign projects are
// reported as missing.
func (h *Handler) loadProject(w http.ResponseWriter, r *http.Request, projectID int64) (*domain.Project, bool) {
	project, err := h.store.GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, "project not found", "project_not_found")
			return nil, false
		}
		h.logger.Error("failed to get project", "project_id", projectID, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to get project", "internal_error")
		return nil, false
	}
	if !auth.CanViewProject(auth.FromContext(r.Context()), *project) {
		h.writeJSONError(w, http.StatusNotFound, "project not found", "project_not_found")
		return nil, false
	}
	return project, true
}

// loadDeployment loads a deployment the requester may manage.
func (h *Handler) loadDeployment(w http.ResponseWriter, r *http.Request, id string) (*domain.Deployment, bool) {
	dep, err := h.store.GetDeployment(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.writeJSONError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return nil, false
		}
		h.logger.Error("failed to get deployment", "deployment_id", id, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return nil, false
	}

	project, err := h.store.GetProject(r.Context(), dep.ProjectID)
	if err != nil || !auth.CanManageDeployment(auth.FromContext(r.Context()), *project, *dep) {
		h.writeJSONError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
		return nil, false
	}
	return dep, true
}

func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		opts.Limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		opts.Offset = v
	}
	return opts.Normalize()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// writeJSONError is writeError for routes without the JSON content type
// middleware.
func (h *Handler) writeJSONError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, status, message, code)
}
