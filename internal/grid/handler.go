package grid

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-consulting/meridian-auth/internal/catalog"
	"github.com/meridian-consulting/meridian-auth/internal/identity"
	"github.com/meridian-consulting/meridian-auth/internal/observability"
	"github.com/meridian-consulting/meridian-auth/internal/platform/httpx"
)

// AccountSource resolves the caller's account, giving the handler its role.
type AccountSource interface {
	AccountByID(ctx context.Context, id string) (*identity.Account, error)
}

// Handler wires the role-permission grid endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	accounts AccountSource
	metrics  *observability.Metrics
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, accounts AccountSource, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, accounts: accounts, metrics: metrics}
}

// MountRoutes registers grid routes. Both operations require the caller's
// role to hold the grid-editing permission in the persisted grid itself.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requirePermission(catalog.PermRolePermissions))
		r.Get("/role-permissions", h.handleGet)
		r.Patch("/role-permissions", h.handlePatch)
	})
}

type gridResponse struct {
	Roles      []string                   `json:"roles"`
	Categories map[string][]string        `json:"categories"`
	Labels     map[string]string          `json:"labels"`
	Grid       map[string]map[string]bool `json:"grid"`
}

type patchRequest struct {
	Updates []patchUpdate `json:"updates"`
}

type patchUpdate struct {
	Role       string `json:"role"`
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Document(r.Context())
	if err != nil {
		h.logger.Error("load grid", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	grid := make(map[string]map[string]bool, len(doc.Grid))
	for role, row := range doc.Grid {
		cells := make(map[string]bool, len(row))
		for perm, allowed := range row {
			cells[string(perm)] = allowed
		}
		grid[string(role)] = cells
	}
	roles := make([]string, len(doc.Roles))
	for i, role := range doc.Roles {
		roles[i] = string(role)
	}
	httpx.JSON(w, http.StatusOK, gridResponse{
		Roles:      roles,
		Categories: doc.Categories,
		Labels:     doc.Labels,
		Grid:       grid,
	})
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	updates := make([]Update, len(req.Updates))
	for i, u := range req.Updates {
		updates[i] = Update{
			Role:       catalog.Role(u.Role),
			Permission: catalog.Permission(u.Permission),
			Allowed:    u.Allowed,
		}
	}
	if err := h.service.Apply(r.Context(), updates); err != nil {
		if errors.Is(err, ErrLockoutViolation) {
			httpx.Problem(w, http.StatusUnprocessableEntity, "Lockout Violation", err.Error())
			return
		}
		if !errors.Is(err, httpx.ErrValidation) {
			h.logger.Error("apply grid updates", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	h.metrics.RecordGridSave(len(updates))
	w.WriteHeader(http.StatusNoContent)
}

// requirePermission gates a route on the caller's role holding the permission
// in the persisted grid.
func (h *Handler) requirePermission(perm catalog.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ac := identity.AuthFromContext(r.Context())
			if ac == nil {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			account, err := h.accounts.AccountByID(r.Context(), ac.AccountID)
			if err != nil {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			allowed, err := h.service.HasPermission(r.Context(), account.Role, perm)
			if err != nil {
				h.logger.Error("check permission", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if !allowed {
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
