package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confhub/confhub/internal/domain"
	"github.com/confhub/confhub/internal/identity"
	"github.com/confhub/confhub/internal/scope"
	"github.com/confhub/confhub/internal/service"
	"github.com/confhub/confhub/internal/storage/memory"
)

var testSecret = []byte("test-secret")

type stubIdentity struct {
	projects map[string]*identity.Project
}

func (s *stubIdentity) CheckWorkspace(ctx context.Context, workspaceID, domainID string) error {
	return nil
}

func (s *stubIdentity) GetProject(ctx context.Context, projectID, domainID string) (*identity.Project, error) {
	if p, ok := s.projects[projectID]; ok {
		return p, nil
	}
	return nil, domain.ErrNotFound
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	stub := &stubIdentity{projects: map[string]*identity.Project{
		"pj-1": {ProjectID: "pj-1", WorkspaceID: "ws-2"},
	}}
	svc := service.New(memory.New(), scope.NewResolver(stub))
	srv := httptest.NewServer(NewRouter(svc, testSecret))
	t.Cleanup(srv.Close)
	return srv
}

func token(t *testing.T, userID, domainID string, role domain.RoleType) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": userID,
		"did": domainID,
		"rol": string(role),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, tok string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthIsOpen(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetricsIsOpen(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPIRequiresToken(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/search", "", map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A token signed with the wrong key is rejected.
	claims := jwt.MapClaims{"sub": "u", "did": "dom-1", "exp": time.Now().Add(time.Hour).Unix()}
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong"))
	require.NoError(t, err)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/search", forged, map[string]any{})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestDomainConfigLifecycle(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleDomainAdmin)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/", tok, map[string]any{
		"name": "ui.layout",
		"data": map[string]any{"theme": "dark"},
		"tags": map[string]string{"team": "console"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[domain.ConfigRecord](t, resp)
	assert.Equal(t, "ui.layout", created.Name)

	// Duplicate create conflicts.
	resp = doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/", tok, map[string]any{
		"name": "ui.layout",
		"data": map[string]any{"theme": "dark"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/domain-configs/ui.layout", tok, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[domain.ConfigRecord](t, resp)
	assert.Equal(t, "dark", got.Data["theme"])

	resp = doRequest(t, srv, http.MethodPut, "/api/v1/domain-configs/ui.layout", tok, map[string]any{
		"data": map[string]any{"theme": "light"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[domain.ConfigRecord](t, resp)
	assert.Equal(t, "light", updated.Data["theme"])
	assert.Equal(t, map[string]string{"team": "console"}, updated.Tags)

	resp = doRequest(t, srv, http.MethodDelete, "/api/v1/domain-configs/ui.layout", tok, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/domain-configs/ui.layout", tok, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSetIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleDomainAdmin)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/set", tok, map[string]any{
		"name": "feature.flags",
		"data": map[string]any{"beta": true},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode[domain.ConfigRecord](t, resp)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/set", tok, map[string]any{
		"name": "feature.flags",
		"data": map[string]any{"beta": false},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode[domain.ConfigRecord](t, resp)

	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, false, second.Data["beta"])
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleDomainAdmin)

	// Missing data.
	resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/", tok, map[string]any{
		"name": "n",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Bad identifier.
	resp = doRequest(t, srv, http.MethodPost, "/api/v1/workspace-configs/", tok, map[string]any{
		"name":         "n",
		"data":         map[string]any{"a": 1},
		"workspace_id": "has space",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSharedConfigProjectAnchor(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleWorkspaceMember)

	// pj-1 belongs to ws-2; the record lands there regardless of the
	// claimed workspace.
	resp := doRequest(t, srv, http.MethodPost, "/api/v1/shared-configs/", tok, map[string]any{
		"name":           "pipeline.defaults",
		"data":           map[string]any{"retries": 3},
		"resource_group": "PROJECT",
		"workspace_id":   "ws-1",
		"project_id":     "pj-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	rec := decode[domain.ConfigRecord](t, resp)
	assert.Equal(t, "ws-2", rec.WorkspaceID)

	// An unknown project is an invalid scope.
	resp = doRequest(t, srv, http.MethodPost, "/api/v1/shared-configs/", tok, map[string]any{
		"name":           "other",
		"data":           map[string]any{"a": 1},
		"resource_group": "PROJECT",
		"workspace_id":   "ws-1",
		"project_id":     "pj-missing",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUserConfigsAreScopedToCaller(t *testing.T) {
	srv := newTestServer(t)
	alice := token(t, "user-a", "dom-1", domain.RoleUser)
	bob := token(t, "user-b", "dom-1", domain.RoleUser)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/user-configs/", alice, map[string]any{
		"name": "console.prefs",
		"data": map[string]any{"locale": "en"},
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/user-configs/console.prefs", bob, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/user-configs/console.prefs", alice, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserConfigWriteForbiddenForDomainOwner(t *testing.T) {
	srv := newTestServer(t)
	owner := token(t, "owner-1", "dom-1", domain.RoleDomainOwner)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/user-configs/", owner, map[string]any{
		"name": "console.prefs",
		"data": map[string]any{"locale": "en"},
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestSearchExpandsWildcards(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleDomainAdmin)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/shared-configs/", tok, map[string]any{
		"name":           "banner",
		"data":           map[string]any{"text": "hello"},
		"resource_group": "DOMAIN",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/shared-configs/", tok, map[string]any{
		"name":           "quota",
		"data":           map[string]any{"max": 10},
		"resource_group": "WORKSPACE",
		"workspace_id":   "ws-1",
	})
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/shared-configs/search", tok, map[string]any{
		"workspace_id": "ws-9",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[domain.SearchConfigsResponse](t, resp)
	require.Equal(t, 1, out.TotalCount)
	assert.Equal(t, "banner", out.Results[0].Name)
}

func TestCrossDomainAccessDenied(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleDomainAdmin)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/search", tok, map[string]any{
		"domain_id": "dom-2",
	})
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestStatEndpoint(t *testing.T) {
	srv := newTestServer(t)
	tok := token(t, "user-1", "dom-1", domain.RoleDomainAdmin)

	for _, name := range []string{"a", "b"} {
		resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/", tok, map[string]any{
			"name": name,
			"data": map[string]any{"x": 1},
		})
		resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/domain-configs/stat", tok, map[string]any{
		"query": map[string]any{"group_by": []string{"domain_id"}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decode[domain.StatConfigsResponse](t, resp)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "dom-1", out.Results[0]["domain_id"])
}
