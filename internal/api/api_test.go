package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servicedeck/servicedeck/internal/aggregator"
	"github.com/servicedeck/servicedeck/internal/api"
	"github.com/servicedeck/servicedeck/internal/auth"
	"github.com/servicedeck/servicedeck/internal/registry"
	"github.com/servicedeck/servicedeck/internal/tristate"
)

// --- test helpers -----------------------------------------------------------

type staticOverview struct {
	ov  *aggregator.Overview
	err error
}

func (s staticOverview) Overview(context.Context) (*aggregator.Overview, error) { return s.ov, s.err }

type brokenRegistry struct{}

func (brokenRegistry) List() ([]registry.Service, error) { return nil, errors.New("disk on fire") }
func (brokenRegistry) Get(string) (registry.Service, error) {
	return registry.Service{}, errors.New("disk on fire")
}
func (brokenRegistry) Create(registry.Payload) (registry.Service, error) {
	return registry.Service{}, errors.New("disk on fire")
}
func (brokenRegistry) Update(string, registry.Payload) (registry.Service, error) {
	return registry.Service{}, errors.New("disk on fire")
}
func (brokenRegistry) Delete(string) (bool, error) { return false, errors.New("disk on fire") }

func newStore(t *testing.T) *registry.Store {
	t.Helper()
	st, err := registry.Open(filepath.Join(t.TempDir(), "services.yaml"))
	require.NoError(t, err)
	return st
}

func newHandler(t *testing.T, ov *aggregator.Overview) (http.Handler, *registry.Store) {
	t.Helper()
	st := newStore(t)
	return api.New(st, staticOverview{ov: ov}, nil), st
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rr.Body).Decode(v), "body: %s", rr.Body.String())
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth(t *testing.T) {
	h, st := newHandler(t, nil)
	_, err := st.Create(registry.Payload{Name: ptr("Web")})
	require.NoError(t, err)

	rr := do(t, h, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp api.HealthResponse
	decode(t, rr, &resp)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.ServiceCount)
}

// --- /api/v1/services -------------------------------------------------------

func TestServices_CRUD(t *testing.T) {
	h, _ := newHandler(t, nil)

	rr := do(t, h, http.MethodPost, "/api/v1/services",
		`{"name":"My Cool App!!","container":"cool","probe":{"url":"http://cool:8080/health","method":"head"}}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created registry.Service
	decode(t, rr, &created)
	assert.Equal(t, "my-cool-app", created.Slug)
	assert.Equal(t, "HEAD", created.Probe.Method)
	assert.Equal(t, 3.0, created.Probe.Timeout)
	assert.True(t, created.Managed)

	rr = do(t, h, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []registry.Service
	decode(t, rr, &list)
	require.Len(t, list, 1)
	assert.Equal(t, created, list[0])

	rr = do(t, h, http.MethodPut, "/api/v1/services/my-cool-app", `{"slug":"renamed","description":"the app"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var updated registry.Service
	decode(t, rr, &updated)
	assert.Equal(t, "my-cool-app", updated.Slug, "path slug wins")
	assert.Equal(t, "the app", updated.Description)
	assert.Equal(t, "cool", updated.Container, "absent fields are kept")

	rr = do(t, h, http.MethodGet, "/api/v1/services/my-cool-app", "")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodDelete, "/api/v1/services/my-cool-app", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/v1/services/my-cool-app", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServices_EmptyListIsArray(t *testing.T) {
	h, _ := newHandler(t, nil)
	rr := do(t, h, http.MethodGet, "/api/v1/services", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestServices_DuplicateSlugConflict(t *testing.T) {
	h, _ := newHandler(t, nil)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/services", `{"slug":"web","name":"Web"}`).Code)

	rr := do(t, h, http.MethodPost, "/api/v1/services", `{"slug":"web","name":"Other"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestServices_BadRequests(t *testing.T) {
	h, _ := newHandler(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json on create", http.MethodPost, "/api/v1/services", `{"name":`, http.StatusBadRequest},
		{"no name or slug", http.MethodPost, "/api/v1/services", `{"container":"x"}`, http.StatusBadRequest},
		{"bad json on update", http.MethodPut, "/api/v1/services/web", `nope`, http.StatusBadRequest},
		{"update missing", http.MethodPut, "/api/v1/services/absent", `{"name":"x"}`, http.StatusNotFound},
		{"delete missing", http.MethodDelete, "/api/v1/services/absent", ``, http.StatusNotFound},
		{"get missing", http.MethodGet, "/api/v1/services/absent", ``, http.StatusNotFound},
		{"wrong method", http.MethodPatch, "/api/v1/services", ``, http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, do(t, h, tc.method, tc.path, tc.body).Code)
		})
	}
}

func TestServices_RegistryFaultIs500(t *testing.T) {
	h := api.New(brokenRegistry{}, staticOverview{}, nil)

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/v1/services", ""},
		{http.MethodGet, "/api/v1/services/x", ""},
		{http.MethodPost, "/api/v1/services", `{"name":"x"}`},
		{http.MethodDelete, "/api/v1/services/x", ""},
		{http.MethodGet, "/api/v1/health", ""},
	} {
		rr := do(t, h, req.method, req.path, req.body)
		assert.Equal(t, http.StatusInternalServerError, rr.Code, req.method+" "+req.path)
		assert.Contains(t, rr.Body.String(), "disk on fire")
	}
}

func TestServices_MutationsProtected(t *testing.T) {
	st := newStore(t)
	h := api.New(st, staticOverview{}, auth.APIKey("apikey", "X-API-Key", "secret"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/v1/services", "").Code, "reads stay open")
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/services", `{"name":"x"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodDelete, "/api/v1/services/x", "").Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(`{"name":"x"}`))
	req.Header.Set("X-API-Key", "secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusCreated, rr.Code)
}

// --- /api/v1/overview -------------------------------------------------------

func TestOverview(t *testing.T) {
	code := 503
	ov := &aggregator.Overview{
		Summary: aggregator.Summary{Total: 2, Running: 2, Online: 1, Unhealthy: 1},
		Services: []aggregator.ServiceStatus{
			{Slug: "web", Container: "web", State: "running", Online: true, Healthy: tristate.True, Endpoint: "http://web", Tags: []string{}},
			{Slug: "api", Container: "api", State: "running", Online: false, Healthy: tristate.False,
				Endpoint: "http://api", ResponseCode: &code, Message: "HTTP 503", Tags: []string{}},
		},
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	h, _ := newHandler(t, ov)

	rr := do(t, h, http.MethodGet, "/api/v1/overview", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	decode(t, rr, &resp)
	assert.Equal(t, "2026-03-01T12:00:00Z", resp["generated_at"])
	assert.NotContains(t, resp, "message")

	summary := resp["summary"].(map[string]interface{})
	assert.Equal(t, 2.0, summary["total"])
	assert.Equal(t, 1.0, summary["unhealthy"])

	services := resp["services"].([]interface{})
	require.Len(t, services, 2)
	web := services[0].(map[string]interface{})
	assert.Equal(t, "web", web["slug"])
	assert.Equal(t, true, web["healthy"])
	webHints := web["diagnostics"].([]interface{})
	assert.Equal(t, "healthy", webHints[0].(map[string]interface{})["key"])

	apiSvc := services[1].(map[string]interface{})
	apiHints := apiSvc["diagnostics"].([]interface{})
	first := apiHints[0].(map[string]interface{})
	assert.Equal(t, "probe_failed", first["key"])
	assert.Equal(t, "critical", first["level"])
	assert.Equal(t, "HTTP 503", first["title"])
}

func TestOverview_Error(t *testing.T) {
	h := api.New(newStore(t), staticOverview{err: errors.New("aggregator: load registry: boom")}, nil)
	rr := do(t, h, http.MethodGet, "/api/v1/overview", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func ptr[T any](v T) *T { return &v }
