package keys

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// notation dictionary for key formats:
	// cm  = channel message
	// pm  = private message
	// pmu = private message unread index
	// pmp = private message participation index
	// act = activity record
	// mid = message id registry
	// dir = directory replica (u = user, c = channel)
	// All keys are lowercase; segments are separated by ":"
	// <...> = variable segment

	ChannelMessageKey = "cm:%s:%0*d:%0*d"       // cm:<channel>:<ts>:<id>
	PrivateMessageKey = "pm:%s:%s:%0*d:%0*d"    // pm:<lo>:<hi>:<ts>:<id>
	UnreadIndexKey    = "pmu:%s:%s:%0*d:%0*d"   // pmu:<recipient>:<sender>:<ts>:<id>
	ParticipationKey  = "pmp:%s:%s:%0*d:%0*d"   // pmp:<user>:<peer>:<ts>:<id>
	ActivityKey       = "act:%s:%s"             // act:<channel>:<user>
	MessageIDKey      = "mid:%0*d"              // mid:<id>
	DirectoryUserKey  = "dir:u:%s"              // dir:u:<user>
	DirectoryChanKey  = "dir:c:%s"              // dir:c:<channel>

	ChannelMessagePrefix = "cm:"
	PrivateMessagePrefix = "pm:"
	UnreadPrefix         = "pmu:"
	ParticipationPrefix  = "pmp:"
	ActivityPrefix       = "act:"
	MessageIDPrefix      = "mid:"
	DirectoryUserPrefix  = "dir:u:"
	DirectoryChanPrefix  = "dir:c:"

	// padding widths (fixed for lexicographic ordering)
	TSPadWidth = 20
	IDPadWidth = 20
)

// SortedPair orders two user ids so a private thread has one key space.
func SortedPair(a, b string) (lo, hi string) {
	if a <= b {
		return a, b
	}
	return b, a
}

func GenChannelMessageKey(channel string, ts int64, id uint64) string {
	return fmt.Sprintf(ChannelMessageKey, channel, TSPadWidth, ts, IDPadWidth, id)
}

func GenPrivateMessageKey(a, b string, ts int64, id uint64) string {
	lo, hi := SortedPair(a, b)
	return fmt.Sprintf(PrivateMessageKey, lo, hi, TSPadWidth, ts, IDPadWidth, id)
}

func GenUnreadIndexKey(recipient, sender string, ts int64, id uint64) string {
	return fmt.Sprintf(UnreadIndexKey, recipient, sender, TSPadWidth, ts, IDPadWidth, id)
}

func GenParticipationKey(user, peer string, ts int64, id uint64) string {
	return fmt.Sprintf(ParticipationKey, user, peer, TSPadWidth, ts, IDPadWidth, id)
}

func GenActivityKey(channel, user string) string {
	return fmt.Sprintf(ActivityKey, channel, user)
}

func GenMessageIDKey(id uint64) string {
	return fmt.Sprintf(MessageIDKey, IDPadWidth, id)
}

func GenDirectoryUserKey(user string) string    { return fmt.Sprintf(DirectoryUserKey, user) }
func GenDirectoryChannelKey(ch string) string   { return fmt.Sprintf(DirectoryChanKey, ch) }
func GenChannelMessagesPrefix(ch string) string { return ChannelMessagePrefix + ch + ":" }
func GenActivityChannelPrefix(ch string) string { return ActivityPrefix + ch + ":" }

func GenPrivateThreadPrefix(a, b string) string {
	lo, hi := SortedPair(a, b)
	return PrivateMessagePrefix + lo + ":" + hi + ":"
}

func GenUnreadPrefix(recipient string) string { return UnreadPrefix + recipient + ":" }

func GenUnreadFromPrefix(recipient, sender string) string {
	return UnreadPrefix + recipient + ":" + sender + ":"
}

func GenParticipationPrefix(user string) string { return ParticipationPrefix + user + ":" }

// PrefixUpperBound returns the smallest key greater than every key with prefix.
func PrefixUpperBound(prefix string) []byte {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return b[:i+1]
		}
	}
	return nil
}

// IndexParts is the decoded form of a pmu: or pmp: key.
type IndexParts struct {
	Owner string
	Other string
	TS    int64
	ID    uint64
}

// ParseIndexKey decodes "<prefix><owner>:<other>:<ts>:<id>" keys.
func ParseIndexKey(key string) (IndexParts, error) {
	var rest string
	switch {
	case strings.HasPrefix(key, UnreadPrefix):
		rest = key[len(UnreadPrefix):]
	case strings.HasPrefix(key, ParticipationPrefix):
		rest = key[len(ParticipationPrefix):]
	default:
		return IndexParts{}, fmt.Errorf("invalid index key format: %q", key)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 4 {
		return IndexParts{}, fmt.Errorf("invalid index key format: %q", key)
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return IndexParts{}, fmt.Errorf("invalid index key timestamp: %q", key)
	}
	id, err := strconv.ParseUint(parts[3], 10, 64)
	if err != nil {
		return IndexParts{}, fmt.Errorf("invalid index key id: %q", key)
	}
	return IndexParts{Owner: parts[0], Other: parts[1], TS: ts, ID: id}, nil
}

// ParseMessageIDKey returns the id encoded in a mid: key.
func ParseMessageIDKey(key string) (uint64, error) {
	if !strings.HasPrefix(key, MessageIDPrefix) {
		return 0, fmt.Errorf("invalid message id key format: %q", key)
	}
	id, err := strconv.ParseUint(key[len(MessageIDPrefix):], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid message id key format: %q", key)
	}
	return id, nil
}

// ParseMessageStamp returns the trailing <ts>:<id> of a primary message key.
func ParseMessageStamp(key string) (int64, uint64, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 4 || (parts[0] != "cm" && parts[0] != "pm") {
		return 0, 0, fmt.Errorf("invalid message key format: %q", key)
	}
	ts, err := strconv.ParseInt(parts[len(parts)-2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message key timestamp: %q", key)
	}
	id, err := strconv.ParseUint(parts[len(parts)-1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid message key id: %q", key)
	}
	return ts, id, nil
}
