package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, err)
	return store
}

func storedProfile(name string) *Profile {
	p := New(name, ProtocolWireGuard)
	p.ConfigPath = "/etc/wireguard/" + name + ".conf"
	return p
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	p := storedProfile("nl-amsterdam")
	p.ExpectedDNS = "10.8.0.1"

	require.NoError(t, store.Save(p))

	loaded, err := store.Load(p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
}

func TestStore_SaveRejectsInvalidProfile(t *testing.T) {
	store := newTestStore(t)
	p := storedProfile("nl-amsterdam")
	p.ConfigPath = ""

	assert.Error(t, store.Save(p))
}

func TestStore_LoadNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(uuid.New().String())
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestStore_LoadRejectsMalformedID(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load("../../etc/passwd")
	assert.ErrorIs(t, err, ErrStoreInvalidID)
}

func TestStore_ListSortedByName(t *testing.T) {
	store := newTestStore(t)
	for _, name := range []string{"zurich", "amsterdam", "oslo"} {
		require.NoError(t, store.Save(storedProfile(name)))
	}

	result, err := store.List()
	require.NoError(t, err)
	require.Len(t, result.Profiles, 3)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "amsterdam", result.Profiles[0].Name)
	assert.Equal(t, "oslo", result.Profiles[1].Name)
	assert.Equal(t, "zurich", result.Profiles[2].Name)
}

func TestStore_ListSurvivesCorruptRecord(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Save(storedProfile("good")))

	badID := uuid.New().String()
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), badID+".json"), []byte("{not json"), 0o600))

	result, err := store.List()
	require.NoError(t, err)
	require.Len(t, result.Profiles, 1)
	assert.Equal(t, "good", result.Profiles[0].Name)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, badID, result.Errors[0].ProfileID)
}

func TestStore_FindByName(t *testing.T) {
	store := newTestStore(t)
	p := storedProfile("nl-amsterdam")
	require.NoError(t, store.Save(p))

	found, err := store.FindByName("nl-amsterdam")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	_, err = store.FindByName("missing")
	assert.ErrorIs(t, err, ErrStoreNotFound)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	p := storedProfile("nl-amsterdam")
	// Managed config copy inside the store dir is removed with the record.
	p.ConfigPath = filepath.Join(store.Dir(), "nl-amsterdam.conf")
	require.NoError(t, os.WriteFile(p.ConfigPath, []byte("[Interface]\n"), 0o600))
	require.NoError(t, store.Save(p))

	require.NoError(t, store.Delete(p.ID))

	_, err := store.Load(p.ID)
	assert.ErrorIs(t, err, ErrStoreNotFound)
	assert.NoFileExists(t, p.ConfigPath)
}

func TestStore_DeleteKeepsExternalConfig(t *testing.T) {
	store := newTestStore(t)
	external := filepath.Join(t.TempDir(), "nl-amsterdam.conf")
	require.NoError(t, os.WriteFile(external, []byte("[Interface]\n"), 0o600))

	p := storedProfile("nl-amsterdam")
	p.ConfigPath = external
	require.NoError(t, store.Save(p))

	require.NoError(t, store.Delete(p.ID))
	assert.FileExists(t, external)
}

func TestStore_DeleteNotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.Delete(uuid.New().String())
	assert.ErrorIs(t, err, ErrStoreNotFound)
}
