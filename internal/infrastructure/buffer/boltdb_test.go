package buffer

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "buffer", "writes.db"), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStoreOrdersByPriorityThenAge(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Enqueue(Item{UserID: "u1", Entity: EntityProfile, Priority: 3, Timestamp: base.Add(time.Second)}))
	require.NoError(t, store.Enqueue(Item{UserID: "u2", Entity: EntityProfile, Priority: 3, Timestamp: base}))
	require.NoError(t, store.Enqueue(Item{UserID: "u3", Entity: EntityProfileRole, Priority: 1, Timestamp: base.Add(time.Minute)}))

	items, err := store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "u3", items[0].UserID)
	assert.Equal(t, "u2", items[1].UserID)
	assert.Equal(t, "u1", items[2].UserID)
}

func TestStoreSupersedesSameTarget(t *testing.T) {
	store := openTestStore(t)

	first, _ := json.Marshal(RoleCorrection{UserID: "u1", Role: "user"})
	second, _ := json.Marshal(RoleCorrection{UserID: "u1", Role: "super_admin"})
	require.NoError(t, store.Enqueue(Item{UserID: "u1", Entity: EntityProfileRole, Data: first}))
	require.NoError(t, store.Enqueue(Item{UserID: "u1", Entity: EntityProfileRole, Data: second}))
	require.NoError(t, store.Enqueue(Item{UserID: "u1", Entity: EntityProfile, Data: json.RawMessage(`{}`)}))

	size, err := store.Size()
	require.NoError(t, err)
	assert.Equal(t, 2, size)

	pending, err := store.Pending("u1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, item := range pending {
		if item.Entity == EntityProfileRole {
			var rc RoleCorrection
			require.NoError(t, json.Unmarshal(item.Data, &rc))
			assert.Equal(t, "super_admin", rc.Role)
		}
	}
}

func TestStoreRemoveRequeueCleanup(t *testing.T) {
	store := openTestStore(t)
	old := time.Now().Add(-48 * time.Hour)

	require.NoError(t, store.Enqueue(Item{ID: "a", UserID: "u1", Entity: EntityProfile}))
	require.NoError(t, store.Enqueue(Item{ID: "b", UserID: "u2", Entity: EntityProfile, Timestamp: old}))

	items, err := store.GetBatch(1)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b", items[0].ID)

	items[0].Retries++
	require.NoError(t, store.Requeue(items[0]))
	pending, err := store.Pending("u2")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Retries)
	assert.True(t, pending[0].Timestamp.After(old))

	dropped, err := store.Cleanup(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	require.NoError(t, store.Remove(Item{ID: "missing"}))
	size, err := store.Size()
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", "")
	assert.Error(t, err)
}
