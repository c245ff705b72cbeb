package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-consulting/meridian-auth/internal/session"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Store) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	store := session.NewStore()
	return New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, store, nil), store
}

func TestLoginStoresCredential(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "admin@meridian.test", body["email"])
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token":      "tok-1",
			"expires_at": time.Now().Add(time.Hour).UTC(),
			"user":       map[string]string{"id": "u1", "email": "admin@meridian.test", "display_name": "Admin"},
		})
	})
	client, store := newTestClient(t, mux)

	var events []session.Event
	store.Subscribe(func(ev session.Event, _ *session.Credential) { events = append(events, ev) })

	cred, err := client.Login(context.Background(), "admin@meridian.test", "secret123")
	require.NoError(t, err)
	require.Equal(t, "tok-1", cred.AccessToken)
	require.Equal(t, []session.Event{session.SignedIn}, events)
	require.Equal(t, map[string]string{"Authorization": "Bearer tok-1"}, store.AuthHeader())
}

func TestLoginInvalidCredentials(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	client, store := newTestClient(t, mux)

	_, err := client.Login(context.Background(), "admin@meridian.test", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Nil(t, store.Credential())
}

func TestUnauthorizedClearsStore(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	client, store := newTestClient(t, mux)
	store.SetCredential(session.Credential{UserID: "u1", AccessToken: "stale"})

	_, err := client.FetchProfile(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Nil(t, store.Credential())
}

func TestSaveGridFailureSurfacesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/auth/role-permissions", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	client, store := newTestClient(t, mux)
	store.SetCredential(session.Credential{UserID: "u1", AccessToken: "tok"})

	err := client.SaveGrid(context.Background(), []GridUpdate{{Role: "admin", Permission: "chat", Allowed: false}})
	require.Error(t, err)
	require.NotNil(t, store.Credential(), "non-401 failures must not clear the credential")
}

func TestFetchGrid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/role-permissions", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GridDocument{
			Roles: []string{"admin"},
			Grid:  map[string]map[string]bool{"admin": {"chat": true}},
		})
	})
	client, store := newTestClient(t, mux)
	store.SetCredential(session.Credential{UserID: "u1", AccessToken: "tok"})

	doc, err := client.FetchGrid(context.Background())
	require.NoError(t, err)
	require.True(t, doc.Grid["admin"]["chat"])
}
