package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindNormalize(t *testing.T) {
	assert.Equal(t, KindText, Kind("").Normalize())
	assert.Equal(t, KindGift, KindGift.Normalize())
	assert.True(t, KindText.Valid())
	assert.False(t, Kind("sticker").Valid())
	assert.False(t, Kind("").Valid())
}

func TestPeer(t *testing.T) {
	m := PrivateMessage{SenderID: "a", RecipientID: "b"}
	assert.Equal(t, "b", m.Peer("a"))
	assert.Equal(t, "a", m.Peer("b"))
}

func TestGiftRefOmittedForText(t *testing.T) {
	b, err := json.Marshal(ChannelMessage{ID: 1, Body: "hi", Kind: KindText})
	require.NoError(t, err)
	assert.NotContains(t, string(b), "gift_ref")
}

func TestViewFlattensEmbedded(t *testing.T) {
	v := ChannelMessageView{ChannelMessage: ChannelMessage{ID: 3, AuthorID: "u1"}, Username: "ann"}
	b, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"author_id":"u1"`)
	assert.Contains(t, string(b), `"username":"ann"`)
}

func TestPatches(t *testing.T) {
	name := "ann"
	id := Identity{UserID: "u1", Username: "old", ProfileImage: "p.png"}
	p := IdentityPatch{Username: &name}
	assert.False(t, p.Empty())
	p.Apply(&id)
	assert.Equal(t, "ann", id.Username)
	assert.Equal(t, "p.png", id.ProfileImage)

	off := false
	c := Channel{ChannelID: "c1", IsActive: true}
	ChannelPatch{IsActive: &off}.Apply(&c)
	assert.False(t, c.IsActive)
	assert.True(t, ChannelPatch{}.Empty())
}
