package grideditor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-consulting/meridian-auth/internal/apiclient"
	"github.com/meridian-consulting/meridian-auth/internal/catalog"
)

type stubGridAPI struct {
	doc      *apiclient.GridDocument
	fetchErr error
	saveErr  error

	fetches int
	saves   int
	lastSave []apiclient.GridUpdate
}

func (s *stubGridAPI) FetchGrid(ctx context.Context) (*apiclient.GridDocument, error) {
	s.fetches++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.doc, nil
}

func (s *stubGridAPI) SaveGrid(ctx context.Context, updates []apiclient.GridUpdate) error {
	s.saves++
	s.lastSave = updates
	if s.saveErr != nil {
		return s.saveErr
	}
	return nil
}

func defaultDoc() *apiclient.GridDocument {
	grid := make(map[string]map[string]bool)
	for _, role := range catalog.Roles {
		cells := make(map[string]bool)
		defaults := catalog.DefaultPermissions(role)
		for _, perm := range catalog.Permissions {
			cells[string(perm)] = defaults.Has(perm)
		}
		grid[string(role)] = cells
	}
	roles := make([]string, 0, len(catalog.Roles))
	for _, r := range catalog.Roles {
		roles = append(roles, string(r))
	}
	return &apiclient.GridDocument{Roles: roles, Grid: grid}
}

func loadedEditor(t *testing.T, api *stubGridAPI) *Editor {
	t.Helper()
	editor := New(api, nil)
	require.NoError(t, editor.Load(context.Background()))
	return editor
}

func TestLoadFailureKeepsBaseline(t *testing.T) {
	api := &stubGridAPI{doc: defaultDoc()}
	editor := loadedEditor(t, api)
	require.True(t, editor.CurrentValue(catalog.RoleConsultant, catalog.PermChat))

	api.fetchErr = errors.New("store unreachable")
	require.Error(t, editor.Load(context.Background()))
	require.True(t, editor.Loaded())
	require.True(t, editor.CurrentValue(catalog.RoleConsultant, catalog.PermChat), "stale baseline preferred over blank")
}

func TestStageOverlaysCommitted(t *testing.T) {
	editor := loadedEditor(t, &stubGridAPI{doc: defaultDoc()})

	require.True(t, editor.CurrentValue(catalog.RoleCustomer, catalog.PermChat))
	editor.Stage(catalog.RoleCustomer, catalog.PermChat, false)
	require.False(t, editor.CurrentValue(catalog.RoleCustomer, catalog.PermChat))
	require.Equal(t, 1, editor.PendingCount())

	// Toggling back to the committed value cancels the staged edit.
	editor.Stage(catalog.RoleCustomer, catalog.PermChat, true)
	require.Equal(t, 0, editor.PendingCount())
}

func TestStageLockedCellIsSilentNoop(t *testing.T) {
	editor := loadedEditor(t, &stubGridAPI{doc: defaultDoc()})

	editor.Stage(catalog.RoleAdmin, catalog.PermRolePermissions, false)
	require.True(t, editor.CurrentValue(catalog.RoleAdmin, catalog.PermRolePermissions))
	require.Equal(t, 0, editor.PendingCount())
	require.True(t, editor.IsLocked(catalog.RoleAdmin, catalog.PermRolePermissions))
	require.False(t, editor.IsLocked(catalog.RoleConsultant, catalog.PermRolePermissions))
}

func TestLockoutCellForcedTrueOnLoad(t *testing.T) {
	doc := defaultDoc()
	doc.Grid[string(catalog.RoleAdmin)][string(catalog.PermRolePermissions)] = false
	editor := loadedEditor(t, &stubGridAPI{doc: doc})

	require.True(t, editor.CurrentValue(catalog.RoleAdmin, catalog.PermRolePermissions))
}

func TestDiscardRestoresLoadedValues(t *testing.T) {
	editor := loadedEditor(t, &stubGridAPI{doc: defaultDoc()})

	editor.Stage(catalog.RoleCustomer, catalog.PermChat, false)
	editor.Stage(catalog.RoleConsultant, catalog.PermDashboard, false)
	editor.Stage(catalog.RoleCustomer, catalog.PermDashboard, true)
	editor.Discard()

	require.Equal(t, 0, editor.PendingCount())
	for _, role := range catalog.Roles {
		defaults := catalog.DefaultPermissions(role)
		for _, perm := range catalog.Permissions {
			require.Equal(t, defaults.Has(perm), editor.CurrentValue(role, perm))
		}
	}
}

func TestSaveAppliesBatchAndClearsStaging(t *testing.T) {
	api := &stubGridAPI{doc: defaultDoc()}
	editor := loadedEditor(t, api)

	editor.Stage(catalog.RoleAdmin, catalog.PermChat, false)
	editor.Stage(catalog.RoleCustomer, catalog.PermDashboard, true)
	require.NoError(t, editor.Save(context.Background()))

	require.Equal(t, 1, api.saves)
	require.Len(t, api.lastSave, 2)
	require.Equal(t, 0, editor.PendingCount())
	require.False(t, editor.CurrentValue(catalog.RoleAdmin, catalog.PermChat))
	require.True(t, editor.CurrentValue(catalog.RoleCustomer, catalog.PermDashboard))
}

func TestSaveIsIdempotentWithEmptyStaging(t *testing.T) {
	api := &stubGridAPI{doc: defaultDoc()}
	editor := loadedEditor(t, api)

	editor.Stage(catalog.RoleAdmin, catalog.PermChat, false)
	require.NoError(t, editor.Save(context.Background()))
	require.NoError(t, editor.Save(context.Background()))
	require.Equal(t, 1, api.saves, "second save with empty staging must make no request")
}

func TestSaveFailureLeavesEverythingUntouched(t *testing.T) {
	api := &stubGridAPI{doc: defaultDoc(), saveErr: errors.New("503")}
	editor := loadedEditor(t, api)

	editor.Stage(catalog.RoleAdmin, catalog.PermChat, false)
	require.Error(t, editor.Save(context.Background()))

	require.Equal(t, 1, editor.PendingCount())
	require.False(t, editor.CurrentValue(catalog.RoleAdmin, catalog.PermChat), "staged value still overlays")
	editor.Discard()
	require.True(t, editor.CurrentValue(catalog.RoleAdmin, catalog.PermChat), "committed baseline unchanged")
}

func TestLockoutHoldsAcrossStageAndSave(t *testing.T) {
	api := &stubGridAPI{doc: defaultDoc()}
	editor := loadedEditor(t, api)

	editor.Stage(catalog.RoleAdmin, catalog.PermRolePermissions, false)
	editor.Stage(catalog.RoleConsultant, catalog.PermUpload, false)
	require.NoError(t, editor.Save(context.Background()))

	for _, update := range api.lastSave {
		require.False(t, update.Role == string(catalog.RoleAdmin) && update.Permission == string(catalog.PermRolePermissions),
			"lockout cell must never reach the server")
	}
	require.True(t, editor.CurrentValue(catalog.RoleAdmin, catalog.PermRolePermissions))
}
