package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolsel/livetv/pkg/config"
	"github.com/dolsel/livetv/pkg/store"
	"github.com/dolsel/livetv/pkg/timeutil"
)

func TestTakeSnapshotAndPrune(t *testing.T) {
	base := t.TempDir()
	db, err := store.Open(filepath.Join(base, "db"), store.Options{NoSync: true})
	require.NoError(t, err)
	defer db.Close()
	_, err = db.AppendChannelMessage("lobby", "ann", store.Content{Body: "keep me"})
	require.NoError(t, err)

	timeutil.SetNow(timeutil.Stepper(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Minute))
	defer timeutil.Reset()

	m := New(config.SnapshotConfig{Dir: filepath.Join(base, "snaps"), Keep: 2}, db)
	var paths []string
	for i := 0; i < 3; i++ {
		p, err := m.TakeSnapshot()
		require.NoError(t, err)
		paths = append(paths, p)
	}

	list, err := m.List()
	require.NoError(t, err)
	assert.Equal(t, []string{paths[2], paths[1]}, list)
	_, err = os.Stat(paths[0])
	assert.True(t, os.IsNotExist(err))

	snap, err := store.Open(paths[2], store.Options{})
	require.NoError(t, err)
	defer snap.Close()
	msgs, err := snap.ListChannelMessages("lobby", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "keep me", msgs[0].Body)
}

type failing struct{}

func (failing) Checkpoint(string) error { return os.ErrPermission }

func TestTakeSnapshotError(t *testing.T) {
	m := New(config.SnapshotConfig{Dir: t.TempDir(), Keep: 1}, failing{})
	_, err := m.TakeSnapshot()
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestStartDisabledReturns(t *testing.T) {
	m := New(config.SnapshotConfig{Enabled: false}, failing{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	list, err := New(config.SnapshotConfig{Dir: filepath.Join(t.TempDir(), "none")}, failing{}).List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

type blocking struct {
	entered chan struct{}
	release chan struct{}
}

func (b blocking) Checkpoint(string) error {
	close(b.entered)
	<-b.release
	return nil
}

func TestStopWaitsForRunningCheckpoint(t *testing.T) {
	// the schedule fires every second; the checkpoint then blocks until released
	b := blocking{entered: make(chan struct{}), release: make(chan struct{})}
	m := New(config.SnapshotConfig{Enabled: true, Cron: "* * * * * *", Dir: t.TempDir(), Keep: 1}, b)
	m.Start(context.Background())

	select {
	case <-b.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled checkpoint never started")
	}

	stopped := make(chan struct{})
	go func() {
		m.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a checkpoint was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(b.release)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after the checkpoint finished")
	}
	m.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	m := New(config.SnapshotConfig{Enabled: false}, failing{})
	m.Start(context.Background())
	m.Stop()
	m.Stop()
}
