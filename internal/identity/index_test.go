package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzbill/xwork/internal/job"
	pebblestore "github.com/rzbill/xwork/internal/storage/pebble"
	"github.com/rzbill/xwork/internal/store"
	pebblejobs "github.com/rzbill/xwork/internal/store/pebble"
)

func newStore(t *testing.T) store.Store {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	s, err := pebblejobs.Open(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestParticipantsMatches(t *testing.T) {
	p := Participants{Users: []string{"kermit"}, Groups: []string{"muppets"}}
	assert.True(t, p.Matches("", nil), "no filter")
	assert.True(t, p.Matches("kermit", nil))
	assert.True(t, p.Matches("gonzo", []string{"admins", "muppets"}))
	assert.False(t, p.Matches("gonzo", []string{"admins"}))
	assert.False(t, Participants{}.Matches("kermit", nil))
}

func TestAddRemoveAndReload(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	x := NewIndex(s)

	require.NoError(t, x.Add(ctx,
		job.IdentityLink{CorrelationID: "c1", UserID: "kermit"},
		job.IdentityLink{CorrelationID: "c1", GroupID: "muppets"},
	))
	assert.Equal(t, Participants{Users: []string{"kermit"}, Groups: []string{"muppets"}}, x.FindParticipants("c1"))
	assert.Empty(t, x.FindParticipants("c2").Users)

	require.Error(t, x.Add(ctx, job.IdentityLink{CorrelationID: "c2"}))

	reloaded := NewIndex(s)
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, x.FindParticipants("c1"), reloaded.FindParticipants("c1"))

	require.NoError(t, x.Remove(ctx, job.IdentityLink{CorrelationID: "c1", UserID: "kermit"}))
	assert.Equal(t, []string{"muppets"}, x.FindParticipants("c1").Groups)
	assert.Empty(t, x.FindParticipants("c1").Users)

	require.NoError(t, reloaded.Load(ctx))
	assert.Empty(t, reloaded.FindParticipants("c1").Users)
}

func TestSharedIndexReadsThroughTransaction(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	a, b := NewSharedIndex(s), NewSharedIndex(s)

	read := func(x *Index, corr string) Participants {
		var p Participants
		require.NoError(t, s.View(ctx, func(r store.Reader) error {
			var err error
			p, err = x.Participants(r, corr)
			return err
		}))
		return p
	}

	require.NoError(t, b.Add(ctx,
		job.IdentityLink{CorrelationID: "c1", UserID: "alice"},
		job.IdentityLink{CorrelationID: "c1", GroupID: "ops"},
		job.IdentityLink{CorrelationID: "c2", UserID: "bob"},
	))
	assert.Equal(t, Participants{Users: []string{"alice"}, Groups: []string{"ops"}}, read(a, "c1"))
	assert.Empty(t, a.FindParticipants("c1").Users, "cache only holds this index's writes")

	require.NoError(t, b.Remove(ctx, job.IdentityLink{CorrelationID: "c1", UserID: "alice"}))
	assert.Empty(t, read(a, "c1").Users)
	assert.Equal(t, []string{"bob"}, read(a, "c2").Users)

	// an unshared index answers from its cache
	local := NewIndex(s)
	assert.Empty(t, read(local, "c2").Users)
}
