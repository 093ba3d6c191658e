package store

import (
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store/keys"
)

// Stats counts rows per key family. It is a full scan and meant for admin use.
func (s *DB) Stats() (models.Stats, error) {
	var st models.Stats
	release, err := s.acquire("stats")
	if err != nil {
		return st, err
	}
	defer release()
	families := []struct {
		prefix string
		dst    *uint64
	}{
		{keys.ChannelMessagePrefix, &st.ChannelMessages},
		{keys.PrivateMessagePrefix, &st.PrivateMessages},
		{keys.UnreadPrefix, &st.UnreadMessages},
		{keys.ActivityPrefix, &st.ActivityRecords},
		{keys.DirectoryUserPrefix, &st.Users},
		{keys.DirectoryChanPrefix, &st.Channels},
	}
	for _, f := range families {
		n, err := s.count(f.prefix)
		if err != nil {
			return st, err
		}
		*f.dst = n
	}
	st.LastID = s.seq.last()
	return st, nil
}

func (s *DB) count(prefix string) (uint64, error) {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	var n uint64
	for valid := iter.First(); valid; valid = iter.Next() {
		n++
	}
	return n, iter.Error()
}
