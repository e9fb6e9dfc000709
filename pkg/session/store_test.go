package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"chainvote/pkg/config"
	"chainvote/pkg/data"
	"chainvote/pkg/security"
)

const (
	adminEmail = "admin@vit-chainvote.com"
	voterEmail = "prem.1251040044@vit.edu"
)

type failingBackend struct {
	*MemoryBackend
}

func (f *failingBackend) Save(map[string]string) error {
	return errors.New("disk full")
}

func newMemoryStore(t *testing.T) *Store {
	store, err := NewStore(NewMemoryBackend(), zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func TestStoreIdentities(t *testing.T) {
	store := newMemoryStore(t)

	_, ok := store.Get(data.RoleAdmin)
	assert.False(t, ok)

	require.NoError(t, store.Set(data.RoleAdmin, data.Identity{Email: adminEmail, Role: data.RoleAdmin}))
	require.NoError(t, store.Set(data.RoleVoter, data.Identity{Email: voterEmail, Role: data.RoleVoter, Department: "CSE"}))

	admin, ok := store.Get(data.RoleAdmin)
	require.True(t, ok)
	assert.Equal(t, adminEmail, admin.Email)
	assert.Empty(t, admin.Department)

	voter, ok := store.Get(data.RoleVoter)
	require.True(t, ok)
	assert.Equal(t, data.Identity{Email: voterEmail, Role: data.RoleVoter, Department: "CSE"}, voter)

	// one slot per role
	require.NoError(t, store.Set(data.RoleAdmin, data.Identity{Email: "other@vit-chainvote.com"}))
	admin, _ = store.Get(data.RoleAdmin)
	assert.Equal(t, "other@vit-chainvote.com", admin.Email)

	require.NoError(t, store.Clear(data.RoleVoter))
	_, ok = store.Get(data.RoleVoter)
	assert.False(t, ok)
	_, ok = store.Get(data.RoleAdmin)
	assert.True(t, ok, "clearing one role leaves the other")

	var verr *data.ValidationError
	assert.ErrorAs(t, store.Set(data.RoleAdmin, data.Identity{}), &verr)
	assert.Error(t, store.Set(data.Role("observer"), data.Identity{Email: adminEmail}))
}

func TestStorePending(t *testing.T) {
	store := newMemoryStore(t)

	_, ok := store.GetPending()
	assert.False(t, ok)

	issued := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetPending(data.PendingVerification{Email: adminEmail, Role: data.RoleAdmin, IssuedAt: issued}))

	t.Run("ReplacesEarlierRecord", func(t *testing.T) {
		require.NoError(t, store.SetPending(data.PendingVerification{Email: voterEmail, Role: data.RoleVoter, Department: "IT"}))

		pending, ok := store.GetPending()
		require.True(t, ok)
		assert.Equal(t, voterEmail, pending.Email)
		assert.Equal(t, data.RoleVoter, pending.Role)
		assert.Equal(t, "IT", pending.Department)
		assert.False(t, pending.IssuedAt.IsZero())
	})

	t.Run("RejectsUnknownRole", func(t *testing.T) {
		assert.Error(t, store.SetPending(data.PendingVerification{Email: adminEmail, Role: "guest"}))
		pending, _ := store.GetPending()
		assert.Equal(t, voterEmail, pending.Email, "failed set leaves the record intact")
	})

	t.Run("Clear", func(t *testing.T) {
		require.NoError(t, store.ClearPending())
		_, ok := store.GetPending()
		assert.False(t, ok)
	})
}

func TestStoreLogout(t *testing.T) {
	store := newMemoryStore(t)
	require.NoError(t, store.Set(data.RoleAdmin, data.Identity{Email: adminEmail}))
	require.NoError(t, store.Set(data.RoleVoter, data.Identity{Email: voterEmail, Department: "CSE"}))
	require.NoError(t, store.SetPending(data.PendingVerification{Email: adminEmail, Role: data.RoleAdmin}))

	require.NoError(t, store.Logout(data.RoleVoter))
	_, ok := store.Get(data.RoleVoter)
	assert.False(t, ok)
	_, ok = store.GetPending()
	assert.True(t, ok, "another role's pending record survives")

	require.NoError(t, store.Logout(data.RoleAdmin))
	_, ok = store.Get(data.RoleAdmin)
	assert.False(t, ok)
	_, ok = store.GetPending()
	assert.False(t, ok)
}

func TestStoreSaveFailure(t *testing.T) {
	store, err := NewStore(&failingBackend{MemoryBackend: NewMemoryBackend()}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.EqualError(t, store.Set(data.RoleAdmin, data.Identity{Email: adminEmail}), "disk full")
	_, ok := store.Get(data.RoleAdmin)
	assert.False(t, ok, "unsaved mutation is not visible")
}

func TestStoreEstablish(t *testing.T) {
	t.Run("SetsIdentityAndClearsPending", func(t *testing.T) {
		store := newMemoryStore(t)
		require.NoError(t, store.SetPending(data.PendingVerification{Email: voterEmail, Role: data.RoleVoter, Department: "CSE"}))

		require.NoError(t, store.Establish(data.RoleVoter, data.Identity{Email: voterEmail, Role: data.RoleVoter, Department: "CSE"}))
		id, ok := store.Get(data.RoleVoter)
		require.True(t, ok)
		assert.Equal(t, "CSE", id.Department)
		_, ok = store.GetPending()
		assert.False(t, ok)
	})

	t.Run("FailedWriteChangesNothing", func(t *testing.T) {
		backend := NewMemoryBackend()
		require.NoError(t, backend.Save(map[string]string{
			keyPendingEmail: adminEmail,
			keyPendingRole:  data.RoleAdmin.String(),
		}))
		store, err := NewStore(&failingBackend{MemoryBackend: backend}, zaptest.NewLogger(t))
		require.NoError(t, err)

		assert.EqualError(t, store.Establish(data.RoleAdmin, data.Identity{Email: adminEmail}), "disk full")
		_, ok := store.Get(data.RoleAdmin)
		assert.False(t, ok)
		pending, ok := store.GetPending()
		require.True(t, ok, "pending record kept for a retry")
		assert.Equal(t, adminEmail, pending.Email)
	})

	t.Run("RejectsEmptyEmail", func(t *testing.T) {
		store := newMemoryStore(t)
		var verr *data.ValidationError
		assert.ErrorAs(t, store.Establish(data.RoleAdmin, data.Identity{}), &verr)
	})
}

func TestFileBackend(t *testing.T) {
	t.Run("SurvivesReload", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "session.json")

		store, err := NewStore(NewFileBackend(path, nil), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, store.Set(data.RoleVoter, data.Identity{Email: voterEmail, Department: "ENTC"}))
		require.NoError(t, store.SetPending(data.PendingVerification{Email: adminEmail, Role: data.RoleAdmin}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"voterEmail"`)
		assert.Contains(t, string(raw), `"pendingRole": "admin"`)

		reloaded, err := NewStore(NewFileBackend(path, nil), zaptest.NewLogger(t))
		require.NoError(t, err)
		voter, ok := reloaded.Get(data.RoleVoter)
		require.True(t, ok)
		assert.Equal(t, "ENTC", voter.Department)
		pending, ok := reloaded.GetPending()
		require.True(t, ok)
		assert.Equal(t, adminEmail, pending.Email)
	})

	t.Run("Sealed", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		sealer, err := security.NewSealer("correct horse")
		require.NoError(t, err)

		store, err := NewStore(NewFileBackend(path, sealer), zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, store.Set(data.RoleAdmin, data.Identity{Email: adminEmail}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), adminEmail)

		reloaded, err := NewStore(NewFileBackend(path, sealer), zaptest.NewLogger(t))
		require.NoError(t, err)
		admin, ok := reloaded.Get(data.RoleAdmin)
		require.True(t, ok)
		assert.Equal(t, adminEmail, admin.Email)

		wrong, err := security.NewSealer("wrong")
		require.NoError(t, err)
		_, err = NewStore(NewFileBackend(path, wrong), zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

		_, err := NewStore(NewFileBackend(path, nil), zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("StalePendingDropped", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"pendingEmail":"x@y.z","pendingRole":"guest"}`), 0600))

		store, err := NewStore(NewFileBackend(path, nil), zaptest.NewLogger(t))
		require.NoError(t, err)
		_, ok := store.GetPending()
		assert.False(t, ok)
	})
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(config.SessionConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = NewBackend(config.SessionConfig{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "s.json"), Passphrase: "secret"})
	require.NoError(t, err)
	fb, ok := b.(*FileBackend)
	require.True(t, ok)
	assert.NotNil(t, fb.sealer)

	_, err = NewBackend(config.SessionConfig{Backend: "sqlite"})
	assert.Error(t, err)
}
