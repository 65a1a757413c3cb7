package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/servicedeck/servicedeck/internal/aggregator"
	"github.com/servicedeck/servicedeck/internal/registry"
)

// maxBody bounds request bodies on the registry routes.
const maxBody = 1 << 20

// Registry is the service registry the handler manages.
type Registry interface {
	List() ([]registry.Service, error)
	Get(slug string) (registry.Service, error)
	Create(p registry.Payload) (registry.Service, error)
	Update(slug string, p registry.Payload) (registry.Service, error)
	Delete(slug string) (bool, error)
}

// OverviewSource evaluates the fleet.
type OverviewSource interface {
	Overview(ctx context.Context) (*aggregator.Overview, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	registry Registry
	overview OverviewSource
	started  time.Time
	mux      *http.ServeMux
}

// New creates a Handler and registers all routes. protect wraps the mutating
// routes (create, update, delete); nil means no protection.
func New(reg Registry, src OverviewSource, protect func(http.Handler) http.Handler) http.Handler {
	if protect == nil {
		protect = func(next http.Handler) http.Handler { return next }
	}
	h := &Handler{registry: reg, overview: src, started: time.Now(), mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /api/v1/health", h.health)
	h.mux.HandleFunc("GET /api/v1/overview", h.getOverview)
	h.mux.HandleFunc("GET /api/v1/services", h.listServices)
	h.mux.Handle("POST /api/v1/services", protect(http.HandlerFunc(h.createService)))
	h.mux.HandleFunc("GET /api/v1/services/{slug}", h.getService)
	h.mux.Handle("PUT /api/v1/services/{slug}", protect(http.HandlerFunc(h.updateService)))
	h.mux.Handle("DELETE /api/v1/services/{slug}", protect(http.HandlerFunc(h.deleteService)))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health: process liveness and registry size.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	services, err := h.registry.List()
	if err != nil {
		internalErr(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		ServiceCount:  len(services),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	})
}

// getOverview returns GET /api/v1/overview: the live status of every service.
func (h *Handler) getOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.overview.Overview(r.Context())
	if err != nil {
		internalErr(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, ToOverviewResponse(ov))
}

// listServices returns GET /api/v1/services: every registry record in order.
func (h *Handler) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := h.registry.List()
	if err != nil {
		internalErr(w, r, err)
		return
	}
	if services == nil {
		services = []registry.Service{}
	}
	jsonResp(w, http.StatusOK, services)
}

// getService returns GET /api/v1/services/{slug}.
func (h *Handler) getService(w http.ResponseWriter, r *http.Request) {
	svc, err := h.registry.Get(r.PathValue("slug"))
	if err != nil {
		registryErr(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, svc)
}

// createService handles POST /api/v1/services.
func (h *Handler) createService(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}
	if isBlank(p.Name) && isBlank(p.Slug) {
		jsonErr(w, http.StatusBadRequest, "name or slug is required")
		return
	}
	svc, err := h.registry.Create(p)
	if err != nil {
		registryErr(w, r, err)
		return
	}
	jsonResp(w, http.StatusCreated, svc)
}

// updateService handles PUT /api/v1/services/{slug}. The path slug always
// wins over a slug in the body.
func (h *Handler) updateService(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePayload(w, r)
	if !ok {
		return
	}
	svc, err := h.registry.Update(r.PathValue("slug"), p)
	if err != nil {
		registryErr(w, r, err)
		return
	}
	jsonResp(w, http.StatusOK, svc)
}

// deleteService handles DELETE /api/v1/services/{slug}.
func (h *Handler) deleteService(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.registry.Delete(r.PathValue("slug"))
	if err != nil {
		internalErr(w, r, err)
		return
	}
	if !deleted {
		jsonErr(w, http.StatusNotFound, "service not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ----------------------------------------------------------------

func decodePayload(w http.ResponseWriter, r *http.Request) (registry.Payload, bool) {
	var p registry.Payload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(&p); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return registry.Payload{}, false
	}
	return p, true
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

// registryErr maps registry sentinels to status codes; anything else is an
// I/O fault.
func registryErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		jsonErr(w, http.StatusNotFound, "service not found")
	case errors.Is(err, registry.ErrDuplicateSlug):
		jsonErr(w, http.StatusConflict, err.Error())
	default:
		internalErr(w, r, err)
	}
}

func internalErr(w http.ResponseWriter, r *http.Request, err error) {
	slog.Error("api: request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	jsonErr(w, http.StatusInternalServerError, err.Error())
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
