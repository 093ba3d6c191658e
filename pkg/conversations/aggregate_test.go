package conversations

import (
	"errors"
	"testing"
	"time"

	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store"
	"github.com/dolsel/livetv/pkg/timeutil"
)

type fakeSource struct {
	unread map[string]int
	last   map[string]models.PrivateMessage
	err    error
	calls  []string
}

func (f *fakeSource) UnreadCountsBySender(string) (map[string]int, error) {
	f.calls = append(f.calls, "unread")
	return f.unread, f.err
}

func (f *fakeSource) LastMessagesByPeer(string) (map[string]models.PrivateMessage, error) {
	f.calls = append(f.calls, "last")
	return f.last, nil
}

func TestAggregateWithStore(t *testing.T) {
	timeutil.SetNow(timeutil.Stepper(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Minute))
	defer timeutil.Reset()

	db, err := store.Open("chat", store.Options{FS: vfs.NewMem(), NoSync: true})
	require.NoError(t, err)
	defer db.Close()

	var lastToB models.PrivateMessage
	for i := 0; i < 3; i++ {
		lastToB, err = db.AppendPrivateMessage("A", "B", store.Content{Body: "hello"})
		require.NoError(t, err)
	}
	_, err = db.AppendPrivateMessage("C", "A", store.Content{Body: "one"})
	require.NoError(t, err)
	lastFromC, err := db.AppendPrivateMessage("C", "A", store.Content{Body: "two"})
	require.NoError(t, err)

	rows, err := Aggregate(db, "A")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "C", rows[0].PeerID)
	assert.Equal(t, 2, rows[0].UnreadCount)
	assert.Equal(t, lastFromC.ID, rows[0].LastMessage.ID)

	assert.Equal(t, "B", rows[1].PeerID)
	assert.Equal(t, 0, rows[1].UnreadCount)
	assert.Equal(t, lastToB.ID, rows[1].LastMessage.ID)
	assert.Equal(t, lastToB.CreatedAt, rows[1].LastMessageAt)

	_, _, err = db.ListPrivateThread("A", "C", 0)
	require.NoError(t, err)
	rows, err = Aggregate(db, "A")
	require.NoError(t, err)
	assert.Equal(t, 0, rows[0].UnreadCount)

	rows, err = Aggregate(db, "nobody")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAggregateReadsUnreadFirst(t *testing.T) {
	at := time.Unix(100, 0).UTC()
	src := &fakeSource{
		unread: map[string]int{"ghost": 4},
		last: map[string]models.PrivateMessage{
			"x": {ID: 1, SenderID: "x", RecipientID: "u", CreatedAt: at},
			"y": {ID: 2, SenderID: "u", RecipientID: "y", CreatedAt: at},
		},
	}
	rows, err := Aggregate(src, "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"unread", "last"}, src.calls)

	// peers only known to the unread scan are not emitted
	require.Len(t, rows, 2)
	assert.Equal(t, "y", rows[0].PeerID, "equal timestamps break on the higher id")
	assert.Equal(t, "x", rows[1].PeerID)
}

func TestAggregatePropagatesErrors(t *testing.T) {
	src := &fakeSource{err: errors.New("disk")}
	_, err := Aggregate(src, "u")
	assert.Error(t, err)
	assert.Equal(t, []string{"unread"}, src.calls)
}

func TestAggregatePeerWithUnreadWhoseLastMessageIsOwn(t *testing.T) {
	timeutil.SetNow(timeutil.Stepper(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), time.Minute))
	defer timeutil.Reset()

	db, err := store.Open("chat", store.Options{FS: vfs.NewMem(), NoSync: true})
	require.NoError(t, err)
	defer db.Close()

	// C writes twice, A answers without opening the thread
	_, err = db.AppendPrivateMessage("C", "A", store.Content{Body: "c-one"})
	require.NoError(t, err)
	_, err = db.AppendPrivateMessage("C", "A", store.Content{Body: "c-two"})
	require.NoError(t, err)
	reply, err := db.AppendPrivateMessage("A", "C", store.Content{Body: "a-reply"})
	require.NoError(t, err)

	rows, err := Aggregate(db, "A")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "C", rows[0].PeerID)
	assert.Equal(t, "a-reply", rows[0].LastMessage.Body)
	assert.Equal(t, reply.ID, rows[0].LastMessage.ID)
	assert.Equal(t, 2, rows[0].UnreadCount)

	rows, err = Aggregate(db, "C")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].PeerID)
	assert.Equal(t, reply.ID, rows[0].LastMessage.ID)
	assert.Equal(t, 1, rows[0].UnreadCount)
}
