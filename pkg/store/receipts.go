package store

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store/keys"
)

// MarkThreadRead flips every unread message from sender to recipient to
// read and drops their unread index entries in one batch. It returns the
// number of messages flipped; a second call with nothing new returns 0.
func (s *DB) MarkThreadRead(recipient, sender string) (int, error) {
	if err := ValidatePair("recipient_id", recipient, "sender_id", sender); err != nil {
		return 0, err
	}
	release, err := s.acquire("mark thread read")
	if err != nil {
		return 0, err
	}
	defer release()
	return s.markThreadRead(recipient, sender)
}

func (s *DB) markThreadRead(recipient, sender string) (int, error) {
	iter, err := s.prefixIter(keys.GenUnreadFromPrefix(recipient, sender))
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := s.db.NewBatch()
	defer b.Close()
	n := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		idxKey := append([]byte(nil), iter.Key()...)
		primary := string(iter.Value())

		var m models.PrivateMessage
		if err := s.getJSON(primary, &m); err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				logger.Warn("index_dangling", "key", string(idxKey), "primary", primary)
				_ = b.Delete(idxKey, nil)
				continue
			}
			return 0, err
		}
		if !m.Read {
			m.Read = true
			_ = b.Set([]byte(primary), marshal(m), nil)
			n++
		}
		_ = b.Delete(idxKey, nil)
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if b.Empty() {
		return 0, nil
	}
	if err := s.commit(b, "mark thread read"); err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Debug("thread_marked_read", "recipient", recipient, "sender", sender, "count", n)
	}
	return n, nil
}

// UnreadCountsBySender groups the unread messages addressed to user by sender.
func (s *DB) UnreadCountsBySender(user string) (map[string]int, error) {
	if err := validateUser("user_id", user); err != nil {
		return nil, err
	}
	release, err := s.acquire("unread counts")
	if err != nil {
		return nil, err
	}
	defer release()
	iter, err := s.prefixIter(keys.GenUnreadPrefix(user))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[string]int)
	for valid := iter.First(); valid; valid = iter.Next() {
		p, err := keys.ParseIndexKey(string(iter.Key()))
		if err != nil {
			logger.Warn("index_key_invalid", "key", string(iter.Key()), "error", err)
			continue
		}
		out[p.Other]++
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastMessagesByPeer returns, per correspondent of user, the message with
// the greatest (created_at, id). It seeks to the tail of each peer's
// participation range instead of scanning every entry.
func (s *DB) LastMessagesByPeer(user string) (map[string]models.PrivateMessage, error) {
	if err := validateUser("user_id", user); err != nil {
		return nil, err
	}
	release, err := s.acquire("last messages")
	if err != nil {
		return nil, err
	}
	defer release()
	iter, err := s.prefixIter(keys.GenParticipationPrefix(user))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	primaries := make(map[string]string)
	for valid := iter.First(); valid; {
		p, err := keys.ParseIndexKey(string(iter.Key()))
		if err != nil {
			logger.Warn("index_key_invalid", "key", string(iter.Key()), "error", err)
			valid = iter.Next()
			continue
		}
		peerEnd := keys.PrefixUpperBound(keys.GenParticipationPrefix(user) + p.Other + ":")
		if !iter.SeekLT(peerEnd) {
			break
		}
		primaries[p.Other] = string(iter.Value())
		valid = iter.SeekGE(peerEnd)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	out := make(map[string]models.PrivateMessage, len(primaries))
	for peer, primary := range primaries {
		var m models.PrivateMessage
		if err := s.getJSON(primary, &m); err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				logger.Warn("index_dangling", "primary", primary)
				continue
			}
			return nil, err
		}
		out[peer] = m
	}
	return out, nil
}

