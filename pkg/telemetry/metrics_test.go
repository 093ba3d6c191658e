package telemetry

import (
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pebbleSource struct{ db *pebble.DB }

func (p pebbleSource) Metrics() *pebble.Metrics { return p.db.Metrics() }

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(MessagesAppended.WithLabelValues("channel"))
	MessagesAppended.WithLabelValues("channel").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(MessagesAppended.WithLabelValues("channel")))

	ObserveSince(AggregateDuration, time.Now())
	assert.Equal(t, 1, testutil.CollectAndCount(AggregateDuration))
}

func TestPebbleGaugesFollowStore(t *testing.T) {
	SetStore(nil)
	assert.Zero(t, testutil.ToFloat64(diskUsage))

	db, err := pebble.Open("m", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Set([]byte("k"), []byte("v"), pebble.Sync))
	require.NoError(t, db.Flush())

	SetStore(pebbleSource{db: db})
	defer SetStore(nil)
	assert.Greater(t, testutil.ToFloat64(diskUsage), 0.0)
}
