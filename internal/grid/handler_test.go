package grid

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
	"github.com/meridian-consulting/meridian-auth/internal/identity"
	"github.com/meridian-consulting/meridian-auth/internal/observability"
)

type stubAccounts struct {
	accounts map[string]*identity.Account
}

func (s *stubAccounts) AccountByID(_ context.Context, id string) (*identity.Account, error) {
	account, ok := s.accounts[id]
	if !ok {
		return nil, identity.ErrAccountNotFound
	}
	return account, nil
}

// gridServer mounts the grid routes behind a stub auth layer. Requests carry
// the caller's account id in X-Test-Account; absent means anonymous.
func gridServer(t *testing.T, repo *memoryRepo, accounts *stubAccounts) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	service := NewService(repo, logger)
	handler := NewHandler(logger, service, accounts, observability.NewMetrics())

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := r.Header.Get("X-Test-Account"); id != "" {
				ctx := identity.ContextWithAuth(r.Context(), &identity.AuthContext{AccountID: id})
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	})
	router.Route("/api/auth", handler.MountRoutes)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func seedCaller(accounts *stubAccounts, role catalog.Role) string {
	id := uuid.New()
	accounts.accounts[id.String()] = &identity.Account{
		ID:    id,
		Email: string(role) + "@example.com",
		Role:  role,
	}
	return id.String()
}

func gridRequest(t *testing.T, method, url, accountID string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set("X-Test-Account", accountID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestGetGridDocument(t *testing.T) {
	repo := newMemoryRepo()
	repo.set(catalog.RoleCustomer, catalog.PermDashboard, true)
	accounts := &stubAccounts{accounts: make(map[string]*identity.Account)}
	admin := seedCaller(accounts, catalog.RoleAdmin)
	server := gridServer(t, repo, accounts)

	resp := gridRequest(t, http.MethodGet, server.URL+"/api/auth/role-permissions", admin, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Roles      []string                   `json:"roles"`
		Categories map[string][]string        `json:"categories"`
		Labels     map[string]string          `json:"labels"`
		Grid       map[string]map[string]bool `json:"grid"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, []string{"admin", "consultant", "customer"}, body.Roles)
	require.Equal(t, []string{"chat", "upload"}, body.Categories["communication"])
	require.Equal(t, "File Upload", body.Labels["upload"])
	require.True(t, body.Grid["customer"]["dashboard"])
	require.False(t, body.Grid["customer"]["user_management"])
	require.True(t, body.Grid["admin"]["role_permissions"])
}

func TestPatchGridAppliesBatch(t *testing.T) {
	repo := newMemoryRepo()
	accounts := &stubAccounts{accounts: make(map[string]*identity.Account)}
	admin := seedCaller(accounts, catalog.RoleAdmin)
	server := gridServer(t, repo, accounts)

	resp := gridRequest(t, http.MethodPatch, server.URL+"/api/auth/role-permissions", admin, map[string]any{
		"updates": []map[string]any{
			{"role": "customer", "permission": "dashboard", "allowed": true},
			{"role": "consultant", "permission": "chat", "allowed": false},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	require.True(t, repo.cells[Cell{Role: catalog.RoleCustomer, Permission: catalog.PermDashboard}])
	require.False(t, repo.cells[Cell{Role: catalog.RoleConsultant, Permission: catalog.PermChat}])
}

func TestPatchGridRejectsLockout(t *testing.T) {
	repo := newMemoryRepo()
	accounts := &stubAccounts{accounts: make(map[string]*identity.Account)}
	admin := seedCaller(accounts, catalog.RoleAdmin)
	server := gridServer(t, repo, accounts)

	resp := gridRequest(t, http.MethodPatch, server.URL+"/api/auth/role-permissions", admin, map[string]any{
		"updates": []map[string]any{
			{"role": "admin", "permission": "role_permissions", "allowed": false},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.Empty(t, repo.applied)
}

func TestPatchGridRejectsUnknownTags(t *testing.T) {
	repo := newMemoryRepo()
	accounts := &stubAccounts{accounts: make(map[string]*identity.Account)}
	admin := seedCaller(accounts, catalog.RoleAdmin)
	server := gridServer(t, repo, accounts)

	resp := gridRequest(t, http.MethodPatch, server.URL+"/api/auth/role-permissions", admin, map[string]any{
		"updates": []map[string]any{
			{"role": "auditor", "permission": "chat", "allowed": true},
		},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGridRoutesEnforcePermission(t *testing.T) {
	repo := newMemoryRepo()
	accounts := &stubAccounts{accounts: make(map[string]*identity.Account)}
	customer := seedCaller(accounts, catalog.RoleCustomer)
	server := gridServer(t, repo, accounts)

	// Anonymous callers are rejected outright.
	resp := gridRequest(t, http.MethodGet, server.URL+"/api/auth/role-permissions", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Customers never hold the grid-editing permission by default.
	resp = gridRequest(t, http.MethodGet, server.URL+"/api/auth/role-permissions", customer, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = gridRequest(t, http.MethodPatch, server.URL+"/api/auth/role-permissions", customer, map[string]any{
		"updates": []map[string]any{{"role": "customer", "permission": "chat", "allowed": false}},
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	// An unknown account id is treated as forbidden, not an error.
	resp = gridRequest(t, http.MethodGet, server.URL+"/api/auth/role-permissions", uuid.NewString(), nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
}
