package cli

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	build.Version, build.Commit = "1.2.3", "abc"
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chatd 1.2.3")
	assert.Contains(t, out, "commit: abc")
}

func TestInspectPrintsCountsAndMessage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := store.Open(path, store.Options{NoSync: true})
	require.NoError(t, err)
	m, err := db.AppendChannelMessage("lobby", "ann", store.Content{Body: "hello"})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := run(t, "inspect", path)
	require.NoError(t, err)
	assert.Contains(t, out, "channel messages: 1")
	assert.Contains(t, out, "activity records: 1")

	out, err = run(t, "inspect", path, "--message", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"body": "hello"`)
	assert.Equal(t, uint64(1), m.ID)
}

func TestTailRequiresTarget(t *testing.T) {
	_, err := run(t, "tail", "--user", "ann")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--channel")
}

func TestBodyFormatsGifts(t *testing.T) {
	assert.Equal(t, "hi", body(models.KindText, "hi", ""))
	assert.Equal(t, "[gift rose] thanks", body(models.KindGift, "thanks", "rose"))

	var buf bytes.Buffer
	printChannel(&buf, models.ChannelMessageView{ChannelMessage: models.ChannelMessage{
		ChannelID: "lobby", AuthorID: "ann", Body: "hey", Kind: models.KindText,
		CreatedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}})
	assert.Equal(t, "2024-01-02T03:04:05Z #lobby <ann> hey\n", buf.String())
}
