package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/lexiguard/internal/common"
	"github.com/ternarybob/lexiguard/internal/interfaces"
	"github.com/ternarybob/lexiguard/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	manager, err := NewManager(common.GetLogger(), &common.BadgerConfig{
		Path: t.TempDir() + "/test.db",
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		manager.Close()
	})
	return manager
}

func TestSessionStorageRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	sessions := manager.SessionStorage()
	ctx := context.Background()

	doc := &models.SessionDocument{
		SessionID:  "sess_rt",
		Status:     "success",
		Report:     "# Report",
		Provenance: models.ProvenanceLive,
	}
	require.NoError(t, sessions.SaveSession(ctx, doc))

	loaded, err := sessions.GetSession(ctx, "sess_rt")
	require.NoError(t, err)
	assert.Equal(t, "# Report", loaded.Report)
	assert.Equal(t, models.ProvenanceLive, loaded.Provenance)
	assert.False(t, loaded.CreatedAt.IsZero())
	assert.False(t, loaded.UpdatedAt.IsZero())
}

func TestSessionStorageNotFound(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.SessionStorage().GetSession(context.Background(), "sess_missing")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestSessionStorageRequiresID(t *testing.T) {
	manager := newTestManager(t)

	err := manager.SessionStorage().SaveSession(context.Background(), &models.SessionDocument{})
	assert.Error(t, err)
}

func TestSessionStorageUpsert(t *testing.T) {
	manager := newTestManager(t)
	sessions := manager.SessionStorage()
	ctx := context.Background()

	doc := &models.SessionDocument{SessionID: "sess_up", Report: "v1"}
	require.NoError(t, sessions.SaveSession(ctx, doc))

	doc.Report = "v2"
	require.NoError(t, sessions.SaveSession(ctx, doc))

	loaded, err := sessions.GetSession(ctx, "sess_up")
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Report)
}

func TestSessionStorageDelete(t *testing.T) {
	manager := newTestManager(t)
	sessions := manager.SessionStorage()
	ctx := context.Background()

	require.NoError(t, sessions.SaveSession(ctx, &models.SessionDocument{SessionID: "sess_del"}))
	require.NoError(t, sessions.DeleteSession(ctx, "sess_del"))

	_, err := sessions.GetSession(ctx, "sess_del")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	assert.ErrorIs(t, sessions.DeleteSession(ctx, "sess_del"), interfaces.ErrNotFound)
}

func TestSessionStorageList(t *testing.T) {
	manager := newTestManager(t)
	sessions := manager.SessionStorage()
	ctx := context.Background()

	for _, id := range []string{"sess_a", "sess_b", "sess_c"} {
		require.NoError(t, sessions.SaveSession(ctx, &models.SessionDocument{SessionID: id}))
	}

	all, err := sessions.ListSessions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := sessions.ListSessions(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestKVStorageRoundTrip(t *testing.T) {
	manager := newTestManager(t)
	kv := manager.KeyValueStorage()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "anthropic_api_key", "test-key"))

	value, err := kv.Get(ctx, "anthropic_api_key")
	require.NoError(t, err)
	assert.Equal(t, "test-key", value)

	require.NoError(t, kv.Delete(ctx, "anthropic_api_key"))
	_, err = kv.Get(ctx, "anthropic_api_key")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
}
