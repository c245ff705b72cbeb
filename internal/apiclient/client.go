// Package apiclient is the HTTP client for the Meridian auth API. It attaches
// the bearer credential held by the session store and keeps that store
// truthful: any privileged call answered with 401 clears the store, forcing
// the application back to an anonymous session.
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/meridian-consulting/meridian-auth/internal/session"
)

// Sentinel errors surfaced to callers.
var (
	ErrInvalidCredentials = errors.New("apiclient: invalid credentials")
	ErrUnauthorized       = errors.New("apiclient: unauthorized")
)

// Profile is the extended identity record served by GET /api/auth/me.
type Profile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// GridDocument is the role-permission grid payload served by
// GET /api/auth/role-permissions.
type GridDocument struct {
	Roles      []string                   `json:"roles"`
	Categories map[string][]string        `json:"categories"`
	Labels     map[string]string          `json:"labels"`
	Grid       map[string]map[string]bool `json:"grid"`
}

// GridUpdate is a single cell change submitted via PATCH.
type GridUpdate struct {
	Role       string `json:"role"`
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
}

type gridPatchRequest struct {
	Updates []GridUpdate `json:"updates"`
}

// Config controls the client transport.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client performs authenticated calls against the auth API.
type Client struct {
	http   *resty.Client
	store  *session.Store
	logger *slog.Logger
}

// New constructs a Client bound to the given session store.
func New(cfg Config, store *session.Store, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: rc, store: store, logger: logger}
}

// Login exchanges credentials for a bearer token. On success the credential
// is stored in the session store, which emits SignedIn to its subscribers.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Credential, error) {
	var out loginResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(loginRequest{Email: email, Password: password}).
		SetResult(&out).
		Post("/api/auth/login")
	if err != nil {
		return nil, fmt.Errorf("apiclient: login: %w", err)
	}
	if resp.StatusCode() == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if resp.IsError() {
		return nil, fmt.Errorf("apiclient: login: unexpected status %d", resp.StatusCode())
	}

	cred := session.Credential{
		UserID:      out.User.ID,
		Email:       out.User.Email,
		AccessToken: out.Token,
		ExpiresAt:   out.ExpiresAt,
	}
	c.store.SetCredential(cred)
	return &cred, nil
}

// Logout revokes the current token at the provider. The caller is expected to
// clear local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.store.AuthHeader()).
		Post("/api/auth/logout")
	if err != nil {
		return fmt.Errorf("apiclient: logout: %w", err)
	}
	if resp.IsError() && resp.StatusCode() != http.StatusUnauthorized {
		return fmt.Errorf("apiclient: logout: unexpected status %d", resp.StatusCode())
	}
	return nil
}

// FetchProfile loads the current principal's extended profile.
func (c *Client) FetchProfile(ctx context.Context) (*Profile, error) {
	var out Profile
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.store.AuthHeader()).
		SetResult(&out).
		Get("/api/auth/me")
	if err != nil {
		return nil, fmt.Errorf("apiclient: fetch profile: %w", err)
	}
	if err := c.checkStatus(resp, "fetch profile"); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchGrid loads the persisted role-permission grid.
func (c *Client) FetchGrid(ctx context.Context) (*GridDocument, error) {
	var out GridDocument
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.store.AuthHeader()).
		SetResult(&out).
		Get("/api/auth/role-permissions")
	if err != nil {
		return nil, fmt.Errorf("apiclient: fetch grid: %w", err)
	}
	if err := c.checkStatus(resp, "fetch grid"); err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveGrid submits a batch of cell updates. A non-2xx response means the
// server applied nothing.
func (c *Client) SaveGrid(ctx context.Context, updates []GridUpdate) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.store.AuthHeader()).
		SetBody(gridPatchRequest{Updates: updates}).
		Patch("/api/auth/role-permissions")
	if err != nil {
		return fmt.Errorf("apiclient: save grid: %w", err)
	}
	return c.checkStatus(resp, "save grid")
}

// checkStatus maps error statuses, clearing the session store on 401 so the
// application re-establishes truth as anonymous.
func (c *Client) checkStatus(resp *resty.Response, op string) error {
	switch {
	case resp.StatusCode() == http.StatusUnauthorized:
		if c.logger != nil {
			c.logger.Warn("session desync, clearing credential", slog.String("op", op))
		}
		c.store.Clear()
		return ErrUnauthorized
	case resp.IsError():
		return fmt.Errorf("apiclient: %s: unexpected status %d", op, resp.StatusCode())
	}
	return nil
}
