package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/timeutil"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open("chat", Options{FS: vfs.NewMem(), NoSync: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func text(body string) Content { return Content{Body: body} }

func stepClock(t *testing.T) {
	t.Helper()
	timeutil.SetNow(timeutil.Stepper(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), time.Second))
	t.Cleanup(timeutil.Reset)
}

func TestChannelWindowAscending(t *testing.T) {
	stepClock(t)
	db := openTest(t)

	var ids []uint64
	for i := 0; i < 5; i++ {
		m, err := db.AppendChannelMessage("lobby", "ann", text(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}

	all, err := db.ListChannelMessages("lobby", 5)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		assert.Equal(t, ids[i], m.ID)
		assert.Equal(t, fmt.Sprintf("m%d", i), m.Body)
		assert.Equal(t, models.KindText, m.Kind)
	}

	last2, err := db.ListChannelMessages("lobby", 2)
	require.NoError(t, err)
	require.Len(t, last2, 2)
	assert.Equal(t, ids[3], last2[0].ID)
	assert.Equal(t, ids[4], last2[1].ID)

	other, err := db.ListChannelMessages("lobby2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestWindowDefaultsAndCap(t *testing.T) {
	db, err := Open("chat", Options{FS: vfs.NewMem(), NoSync: true, DefaultLimit: 3, MaxLimit: 4})
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 6; i++ {
		_, err := db.AppendChannelMessage("c1", "ann", text("x"))
		require.NoError(t, err)
	}
	got, err := db.ListChannelMessages("c1", 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = db.ListChannelMessages("c1", 100)
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestIDsFollowCreationOrderWhenClockStalls(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	timeutil.SetNow(timeutil.Fixed(at))
	defer timeutil.Reset()
	db := openTest(t)

	a, err := db.AppendChannelMessage("c1", "ann", text("a"))
	require.NoError(t, err)
	b, err := db.AppendChannelMessage("c1", "bob", text("b"))
	require.NoError(t, err)

	assert.Equal(t, a.CreatedAt, b.CreatedAt)
	assert.Greater(t, b.ID, a.ID)

	got, err := db.ListChannelMessages("c1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Body)
	assert.Equal(t, "b", got[1].Body)
}

func TestClockGoingBackwardsKeepsOrder(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	timeutil.SetNow(timeutil.Fixed(at))
	defer timeutil.Reset()
	db := openTest(t)

	a, err := db.AppendChannelMessage("c1", "ann", text("a"))
	require.NoError(t, err)
	timeutil.SetNow(timeutil.Fixed(at.Add(-time.Hour)))
	b, err := db.AppendChannelMessage("c1", "ann", text("b"))
	require.NoError(t, err)

	assert.False(t, b.CreatedAt.Before(a.CreatedAt))
	assert.Greater(t, b.ID, a.ID)
}

func TestConcurrentAppendsAreUniqueAndOrdered(t *testing.T) {
	db := openTest(t)
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := db.AppendChannelMessage("c1", "ann", text(fmt.Sprint(i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := db.ListChannelMessages("c1", n)
	require.NoError(t, err)
	require.Len(t, got, n)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i].ID, got[i-1].ID)
		assert.False(t, got[i].CreatedAt.Before(got[i-1].CreatedAt))
	}
}

func TestAppendValidation(t *testing.T) {
	db := openTest(t)

	cases := []struct {
		name string
		fn   func() error
	}{
		{"empty body", func() error { _, err := db.AppendChannelMessage("c1", "ann", text("   ")); return err }},
		{"gift without ref", func() error {
			_, err := db.AppendChannelMessage("c1", "ann", Content{Body: "b", Kind: models.KindGift})
			return err
		}},
		{"text with ref", func() error {
			_, err := db.AppendChannelMessage("c1", "ann", Content{Body: "b", GiftRef: "rose"})
			return err
		}},
		{"unknown kind", func() error {
			_, err := db.AppendChannelMessage("c1", "ann", Content{Body: "b", Kind: "sticker"})
			return err
		}},
		{"bad channel id", func() error { _, err := db.AppendChannelMessage("c:1", "ann", text("b")); return err }},
		{"self message", func() error { _, err := db.AppendPrivateMessage("ann", "ann", text("b")); return err }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, apperr.IsValidation(tc.fn()))
		})
	}

	st, err := db.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.ChannelMessages)
	assert.Zero(t, st.PrivateMessages)
	assert.Zero(t, st.LastID)
}

func TestBodyStoredAsGiven(t *testing.T) {
	db := openTest(t)
	m, err := db.AppendChannelMessage("c1", "ann", text("  hi  "))
	require.NoError(t, err)
	assert.Equal(t, "  hi  ", m.Body)
}

func TestGiftRoundTrip(t *testing.T) {
	db := openTest(t)
	sent, err := db.AppendPrivateMessage("ann", "bob", Content{Body: "for you", Kind: models.KindGift, GiftRef: "rose"})
	require.NoError(t, err)

	env, err := db.GetMessage(sent.ID)
	require.NoError(t, err)
	require.NotNil(t, env.Private)
	assert.Equal(t, "private", env.Namespace)
	assert.Equal(t, models.KindGift, env.Private.Kind)
	assert.Equal(t, "rose", env.Private.GiftRef)
	assert.False(t, env.Private.Read)

	_, err = db.GetMessage(sent.ID + 100)
	assert.True(t, apperr.IsNotFound(err))
}

func TestPrivateThreadMarksRead(t *testing.T) {
	stepClock(t)
	db := openTest(t)

	_, err := db.AppendPrivateMessage("ann", "bob", text("hi bob"))
	require.NoError(t, err)
	_, err = db.AppendPrivateMessage("bob", "ann", text("hi ann"))
	require.NoError(t, err)
	_, err = db.AppendPrivateMessage("bob", "ann", text("you there?"))
	require.NoError(t, err)

	// ann opens the thread: bob's two messages flip, ann's own stays unread for bob
	msgs, marked, err := db.ListPrivateThread("ann", "bob", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, marked)
	require.Len(t, msgs, 3)
	assert.False(t, msgs[0].Read)
	assert.True(t, msgs[1].Read)
	assert.True(t, msgs[2].Read)

	again, marked, err := db.ListPrivateThread("ann", "bob", 0)
	require.NoError(t, err)
	assert.Zero(t, marked)
	assert.Equal(t, msgs, again)

	unread, err := db.UnreadCountsBySender("bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ann": 1}, unread)

	unread, err = db.UnreadCountsBySender("ann")
	require.NoError(t, err)
	assert.Empty(t, unread)

	_, _, err = db.ListPrivateThread("ann", "ann", 0)
	assert.True(t, apperr.IsValidation(err))
}

func TestReadIsMonotonic(t *testing.T) {
	db := openTest(t)
	m, err := db.AppendPrivateMessage("ann", "bob", text("x"))
	require.NoError(t, err)

	n, err := db.MarkThreadRead("bob", "ann")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	for i := 0; i < 3; i++ {
		n, err = db.MarkThreadRead("bob", "ann")
		require.NoError(t, err)
		assert.Zero(t, n)
	}
	env, err := db.GetMessage(m.ID)
	require.NoError(t, err)
	assert.True(t, env.Private.Read)
}

func TestLastMessagesByPeer(t *testing.T) {
	stepClock(t)
	db := openTest(t)

	for i := 0; i < 3; i++ {
		_, err := db.AppendPrivateMessage("ann", "bob", text(fmt.Sprintf("to bob %d", i)))
		require.NoError(t, err)
	}
	_, err := db.AppendPrivateMessage("cat", "ann", text("hey 1"))
	require.NoError(t, err)
	last, err := db.AppendPrivateMessage("cat", "ann", text("hey 2"))
	require.NoError(t, err)

	got, err := db.LastMessagesByPeer("ann")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "to bob 2", got["bob"].Body)
	assert.Equal(t, last.ID, got["cat"].ID)

	bob, err := db.LastMessagesByPeer("bob")
	require.NoError(t, err)
	assert.Len(t, bob, 1)
	assert.Contains(t, bob, "ann")
}

func TestActivityUpsert(t *testing.T) {
	stepClock(t)
	db := openTest(t)

	first, err := db.AppendChannelMessage("c1", "ann", text("a"))
	require.NoError(t, err)
	rec, err := db.GetActivity("ann", "c1")
	require.NoError(t, err)
	assert.True(t, rec.Online)
	assert.Equal(t, first.CreatedAt, rec.LastSeenAt)

	second, err := db.AppendChannelMessage("c1", "ann", text("b"))
	require.NoError(t, err)
	_, err = db.AppendChannelMessage("c1", "bob", text("c"))
	require.NoError(t, err)

	rec, err = db.GetActivity("ann", "c1")
	require.NoError(t, err)
	assert.Equal(t, second.CreatedAt, rec.LastSeenAt)

	list, err := db.ListChannelActivity("c1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "bob", list[0].UserID)
	assert.Equal(t, "ann", list[1].UserID)

	_, err = db.GetActivity("ann", "c2")
	assert.True(t, apperr.IsNotFound(err))

	st, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), st.ActivityRecords)
}

func TestTouch(t *testing.T) {
	db := openTest(t)
	rec, err := db.Touch("ann", "c9")
	require.NoError(t, err)
	got, err := db.GetActivity("ann", "c9")
	require.NoError(t, err)
	assert.True(t, rec.LastSeenAt.Equal(got.LastSeenAt))
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	fs := vfs.NewMem()
	db, err := Open("chat", Options{FS: fs, NoSync: true})
	require.NoError(t, err)
	m, err := db.AppendPrivateMessage("ann", "bob", text("x"))
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open("chat", Options{FS: fs, NoSync: true})
	require.NoError(t, err)
	defer db.Close()
	n, err := db.AppendChannelMessage("c1", "ann", text("y"))
	require.NoError(t, err)
	assert.Greater(t, n.ID, m.ID)
	assert.False(t, n.CreatedAt.Before(m.CreatedAt))
}

func TestDirectoryRecords(t *testing.T) {
	db := openTest(t)
	require.NoError(t, db.PutIdentity(models.Identity{UserID: "ann", Username: "Ann"}))
	id, err := db.GetIdentity("ann")
	require.NoError(t, err)
	assert.Equal(t, "Ann", id.Username)

	_, err = db.GetIdentity("bob")
	assert.True(t, apperr.IsNotFound(err))

	require.NoError(t, db.PutChannel(models.Channel{ChannelID: "c1", Name: "lobby", IsActive: true}))
	ch, err := db.GetChannel("c1")
	require.NoError(t, err)
	assert.True(t, ch.IsActive)

	st, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), st.Users)
	assert.Equal(t, uint64(1), st.Channels)
}

func TestClosedStoreIsTransient(t *testing.T) {
	db, err := Open("chat", Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.False(t, db.Ready())

	_, err = db.AppendChannelMessage("c1", "ann", text("x"))
	assert.True(t, apperr.IsTransient(err))
	_, err = db.ListChannelMessages("c1", 1)
	assert.True(t, apperr.IsTransient(err))
}

func TestCloseWaitsForInFlightWrites(t *testing.T) {
	db, err := Open("chat", Options{FS: vfs.NewMem(), NoSync: true})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	stop := make(chan struct{})
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				var err error
				if w%2 == 0 {
					_, err = db.AppendPrivateMessage("ann", "bob", text("ping"))
				} else {
					_, _, err = db.ListPrivateThread("bob", "ann", 10)
				}
				if err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, db.Close())
	close(stop)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.True(t, apperr.IsTransient(err), "unexpected error after close: %v", err)
	}

	require.NoError(t, db.Close(), "second close is a no-op")
	_, err = db.Stats()
	assert.True(t, apperr.IsTransient(err))
	assert.True(t, apperr.IsTransient(db.Checkpoint("snap")))
	assert.Nil(t, db.Metrics())
}

func TestLastMessagesByPeerSharedPrefixes(t *testing.T) {
	stepClock(t)
	db := openTest(t)

	// '-' and '.' sort below the ':' separator, 'b' and '_' above it
	peers := []string{"b", "b-1", "b.x", "bb", "b_"}
	want := make(map[string]uint64)
	wantUnread := make(map[string]int)
	for round := 0; round < 3; round++ {
		for i, p := range peers {
			var m models.PrivateMessage
			var err error
			if (round+i)%2 == 0 {
				m, err = db.AppendPrivateMessage("a", p, text(fmt.Sprintf("a->%s %d", p, round)))
			} else {
				m, err = db.AppendPrivateMessage(p, "a", text(fmt.Sprintf("%s->a %d", p, round)))
				wantUnread[p]++
			}
			require.NoError(t, err)
			want[p] = m.ID
		}
	}

	got, err := db.LastMessagesByPeer("a")
	require.NoError(t, err)
	require.Len(t, got, len(peers))
	for _, p := range peers {
		assert.Equal(t, want[p], got[p].ID, "peer %s", p)
		assert.Equal(t, p, got[p].Peer("a"))
	}

	unread, err := db.UnreadCountsBySender("a")
	require.NoError(t, err)
	assert.Equal(t, wantUnread, unread)
}

func TestConcurrentThreadReadsMarkEverythingOnce(t *testing.T) {
	db := openTest(t)
	const sent = 20
	for i := 0; i < sent; i++ {
		_, err := db.AppendPrivateMessage("bob", "ann", text(fmt.Sprintf("m%d", i)))
		require.NoError(t, err)
	}

	const readers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for r := 0; r < readers; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			msgs, marked, err := db.ListPrivateThread("ann", "bob", 0)
			assert.NoError(t, err)
			assert.Len(t, msgs, sent)
			for _, m := range msgs {
				assert.True(t, m.Read, "message %d returned unread", m.ID)
			}
			mu.Lock()
			total += marked
			mu.Unlock()
		}()
	}
	wg.Wait()

	// racing readers may each rewrite the same row, never skip one
	assert.GreaterOrEqual(t, total, sent)
	unread, err := db.UnreadCountsBySender("ann")
	require.NoError(t, err)
	assert.Empty(t, unread)
	st, err := db.Stats()
	require.NoError(t, err)
	assert.Zero(t, st.UnreadMessages)
}
