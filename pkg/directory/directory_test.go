package directory

import (
	"testing"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store"
)

func newReplica(t *testing.T) *Replica {
	t.Helper()
	db, err := store.Open("dir", store.Options{FS: vfs.NewMem(), NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewReplica(db)
}

func ptr[T any](v T) *T { return &v }

func TestUpsertUser(t *testing.T) {
	r := newReplica(t)

	_, _, err := r.UpsertUser("ann", models.IdentityPatch{ProfileImage: ptr("a.png")})
	assert.True(t, apperr.IsValidation(err))

	id, created, err := r.UpsertUser("ann", models.IdentityPatch{Username: ptr("Ann"), ProfileImage: ptr("a.png")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "Ann", id.Username)

	id, created, err = r.UpsertUser("ann", models.IdentityPatch{ProfileImage: ptr("b.png")})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Ann", id.Username)
	assert.Equal(t, "b.png", id.ProfileImage)

	got, err := r.LookupUser("ann")
	require.NoError(t, err)
	assert.Equal(t, "b.png", got.ProfileImage)

	_, err = r.LookupUser("bob")
	assert.True(t, apperr.IsNotFound(err))
}

func TestInactiveChannelIsNotFound(t *testing.T) {
	r := newReplica(t)

	ch, created, err := r.UpsertChannel("c1", models.ChannelPatch{Name: ptr("Lobby")})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, ch.IsActive)

	_, err = r.LookupChannel("c1")
	require.NoError(t, err)

	_, _, err = r.UpsertChannel("c1", models.ChannelPatch{IsActive: ptr(false)})
	require.NoError(t, err)
	_, err = r.LookupChannel("c1")
	assert.True(t, apperr.IsNotFound(err))

	raw, err := r.GetChannel("c1")
	require.NoError(t, err)
	assert.Equal(t, "Lobby", raw.Name)
}

func TestSeed(t *testing.T) {
	r := newReplica(t)
	require.NoError(t, r.Seed(
		[]models.Identity{{UserID: "u1", Username: "one"}},
		[]models.Channel{{ChannelID: "c1", Name: "lobby", IsActive: true}},
	))
	u, err := r.LookupUser("u1")
	require.NoError(t, err)
	assert.Equal(t, "one", u.Username)
	assert.False(t, u.UpdatedAt.IsZero())

	_, err = r.LookupChannel("c1")
	assert.NoError(t, err)

	assert.True(t, apperr.IsValidation(r.Seed([]models.Identity{{UserID: "bad id"}}, nil)))
}
