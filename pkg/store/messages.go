package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/cockroachdb/pebble"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store/keys"
	"github.com/dolsel/livetv/pkg/timeutil"
)

// AppendChannelMessage stores a channel message and refreshes the author's
// activity record in the same batch.
func (s *DB) AppendChannelMessage(channelID, authorID string, c Content) (models.ChannelMessage, error) {
	if err := validateChannel(channelID); err != nil {
		return models.ChannelMessage{}, err
	}
	if err := validateUser("author_id", authorID); err != nil {
		return models.ChannelMessage{}, err
	}
	c, err := c.Normalize()
	if err != nil {
		return models.ChannelMessage{}, err
	}
	release, err := s.acquire("append channel message")
	if err != nil {
		return models.ChannelMessage{}, err
	}
	defer release()

	at, id := s.seq.next(timeutil.Now())
	msg := models.ChannelMessage{
		ID:        id,
		ChannelID: channelID,
		AuthorID:  authorID,
		Body:      c.Body,
		Kind:      c.Kind,
		GiftRef:   c.GiftRef,
		CreatedAt: at,
	}
	primary := keys.GenChannelMessageKey(channelID, at.UnixNano(), id)

	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte(primary), marshal(msg), nil)
	_ = b.Set([]byte(keys.GenMessageIDKey(id)), []byte(primary), nil)
	touchActivity(b, authorID, channelID, at)
	if err := s.commit(b, "append channel message"); err != nil {
		return models.ChannelMessage{}, err
	}

	logger.Debug("message_appended", "namespace", "channel", "channel", channelID, "id", id)
	return msg, nil
}

// AppendPrivateMessage stores an unread private message together with its
// unread and participation index entries.
func (s *DB) AppendPrivateMessage(senderID, recipientID string, c Content) (models.PrivateMessage, error) {
	if err := ValidatePair("sender_id", senderID, "recipient_id", recipientID); err != nil {
		return models.PrivateMessage{}, err
	}
	c, err := c.Normalize()
	if err != nil {
		return models.PrivateMessage{}, err
	}
	release, err := s.acquire("append private message")
	if err != nil {
		return models.PrivateMessage{}, err
	}
	defer release()

	at, id := s.seq.next(timeutil.Now())
	ts := at.UnixNano()
	msg := models.PrivateMessage{
		ID:          id,
		SenderID:    senderID,
		RecipientID: recipientID,
		Body:        c.Body,
		Kind:        c.Kind,
		GiftRef:     c.GiftRef,
		Read:        false,
		CreatedAt:   at,
	}
	primary := []byte(keys.GenPrivateMessageKey(senderID, recipientID, ts, id))

	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set(primary, marshal(msg), nil)
	_ = b.Set([]byte(keys.GenUnreadIndexKey(recipientID, senderID, ts, id)), primary, nil)
	_ = b.Set([]byte(keys.GenParticipationKey(senderID, recipientID, ts, id)), primary, nil)
	_ = b.Set([]byte(keys.GenParticipationKey(recipientID, senderID, ts, id)), primary, nil)
	_ = b.Set([]byte(keys.GenMessageIDKey(id)), primary, nil)
	if err := s.commit(b, "append private message"); err != nil {
		return models.PrivateMessage{}, err
	}

	logger.Debug("message_appended", "namespace", "private", "sender", senderID, "recipient", recipientID, "id", id)
	return msg, nil
}

// ListChannelMessages returns the newest limit messages of a channel in
// ascending creation order. limit <= 0 selects the default window.
func (s *DB) ListChannelMessages(channelID string, limit int) ([]models.ChannelMessage, error) {
	if err := validateChannel(channelID); err != nil {
		return nil, err
	}
	release, err := s.acquire("list channel messages")
	if err != nil {
		return nil, err
	}
	defer release()
	out := make([]models.ChannelMessage, 0)
	err = s.window(keys.GenChannelMessagesPrefix(channelID), s.clampLimit(limit), func(v []byte) error {
		var m models.ChannelMessage
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

// ListPrivateThread marks every unread message from peer to user as read,
// then returns the newest limit messages between them in ascending order.
// The returned marked count is zero when nothing was unread.
func (s *DB) ListPrivateThread(user, peer string, limit int) ([]models.PrivateMessage, int, error) {
	if err := ValidatePair("user_id", user, "peer_id", peer); err != nil {
		return nil, 0, err
	}
	release, err := s.acquire("list private thread")
	if err != nil {
		return nil, 0, err
	}
	defer release()
	marked, err := s.markThreadRead(user, peer)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.PrivateMessage, 0)
	err = s.window(keys.GenPrivateThreadPrefix(user, peer), s.clampLimit(limit), func(v []byte) error {
		var m models.PrivateMessage
		if err := json.Unmarshal(v, &m); err != nil {
			return err
		}
		out = append(out, m)
		return nil
	})
	if err != nil {
		return nil, marked, err
	}
	slices.Reverse(out)
	return out, marked, nil
}

// GetMessage resolves a message of either namespace by id.
func (s *DB) GetMessage(id uint64) (models.Envelope, error) {
	release, err := s.acquire("get message")
	if err != nil {
		return models.Envelope{}, err
	}
	defer release()
	b, err := s.getRaw(keys.GenMessageIDKey(id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Envelope{}, apperr.NotFound("message %d not found", id)
		}
		return models.Envelope{}, err
	}
	primary := string(b)
	switch {
	case strings.HasPrefix(primary, keys.ChannelMessagePrefix):
		var m models.ChannelMessage
		if err := s.getJSON(primary, &m); err != nil {
			return models.Envelope{}, s.missingPrimary(primary, err)
		}
		return models.Envelope{Namespace: "channel", Channel: &m}, nil
	case strings.HasPrefix(primary, keys.PrivateMessagePrefix):
		var m models.PrivateMessage
		if err := s.getJSON(primary, &m); err != nil {
			return models.Envelope{}, s.missingPrimary(primary, err)
		}
		return models.Envelope{Namespace: "private", Private: &m}, nil
	}
	return models.Envelope{}, fmt.Errorf("id %d points at unknown key %q", id, primary)
}

func (s *DB) missingPrimary(key string, err error) error {
	if errors.Is(err, pebble.ErrNotFound) {
		logger.Warn("index_dangling", "key", key)
		return apperr.NotFound("message record %s missing", key)
	}
	return err
}

// window visits up to limit values under prefix, newest first.
func (s *DB) window(prefix string, limit int, visit func(v []byte) error) error {
	iter, err := s.prefixIter(prefix)
	if err != nil {
		return err
	}
	defer iter.Close()
	n := 0
	for valid := iter.Last(); valid && n < limit; valid = iter.Prev() {
		if err := visit(iter.Value()); err != nil {
			return fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		n++
	}
	if err := iter.Error(); err != nil {
		return apperr.Transient(err, "iterate "+prefix)
	}
	return nil
}
