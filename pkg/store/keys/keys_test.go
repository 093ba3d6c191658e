package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeysSortLexicographically(t *testing.T) {
	a := GenChannelMessageKey("lobby", 9, 100)
	b := GenChannelMessageKey("lobby", 10, 2)
	c := GenChannelMessageKey("lobby", 10, 3)
	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.True(t, strings.HasPrefix(a, GenChannelMessagesPrefix("lobby")))
	assert.Equal(t, "cm:lobby:00000000000000000009:00000000000000000100", a)
}

func TestPrivateKeyIsOrderIndependent(t *testing.T) {
	assert.Equal(t, GenPrivateMessageKey("bob", "ann", 1, 1), GenPrivateMessageKey("ann", "bob", 1, 1))
	assert.Equal(t, "pm:ann:bob:", GenPrivateThreadPrefix("bob", "ann"))
}

func TestPrefixesDoNotOverlapOnSharedStems(t *testing.T) {
	k := GenUnreadIndexKey("ann.b", "bob", 1, 1)
	assert.False(t, strings.HasPrefix(k, GenUnreadPrefix("ann")))
}

func TestPrefixUpperBound(t *testing.T) {
	assert.Equal(t, []byte("cm:lobby;"), PrefixUpperBound("cm:lobby:"))
	assert.Nil(t, PrefixUpperBound(string([]byte{0xff, 0xff})))
	assert.Equal(t, []byte{'a', 0x01}, PrefixUpperBound(string([]byte{'a', 0x00, 0xff})))
}

func TestParseIndexKey(t *testing.T) {
	p, err := ParseIndexKey(GenUnreadIndexKey("ann", "bob", 42, 7))
	require.NoError(t, err)
	assert.Equal(t, IndexParts{Owner: "ann", Other: "bob", TS: 42, ID: 7}, p)

	p, err = ParseIndexKey(GenParticipationKey("bob", "ann", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, "ann", p.Other)

	_, err = ParseIndexKey("pmu:ann:bob:x:1")
	assert.Error(t, err)
	_, err = ParseIndexKey("cm:a:1:1")
	assert.Error(t, err)
}

func TestParseMessageIDKey(t *testing.T) {
	id, err := ParseMessageIDKey(GenMessageIDKey(12345))
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), id)

	_, err = ParseMessageIDKey("mid:abc")
	assert.Error(t, err)
}

func TestValidateIDs(t *testing.T) {
	assert.NoError(t, ValidateUserID("user_1.a-b"))
	assert.Error(t, ValidateUserID(""))
	assert.Error(t, ValidateUserID("a:b"))
	assert.Error(t, ValidateChannelID(strings.Repeat("x", 257)))
	assert.NoError(t, ValidateChannelID("42"))
}

func TestParseMessageStamp(t *testing.T) {
	ts, id, err := ParseMessageStamp(GenPrivateMessageKey("a", "b", 77, 8))
	require.NoError(t, err)
	assert.Equal(t, int64(77), ts)
	assert.Equal(t, uint64(8), id)

	ts, id, err = ParseMessageStamp(GenChannelMessageKey("c", 5, 6))
	require.NoError(t, err)
	assert.Equal(t, int64(5), ts)
	assert.Equal(t, uint64(6), id)

	_, _, err = ParseMessageStamp("act:c:u")
	assert.Error(t, err)
}
