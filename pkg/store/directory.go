package store

import (
	"errors"

	"github.com/cockroachdb/pebble"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store/keys"
)

// Directory records are replicas of the external identity provider and
// channel directory. They share the store so a checkpoint captures both.

func (s *DB) PutIdentity(id models.Identity) error {
	if err := validateUser("user_id", id.UserID); err != nil {
		return err
	}
	return s.put(keys.GenDirectoryUserKey(id.UserID), id, "put identity")
}

func (s *DB) GetIdentity(userID string) (models.Identity, error) {
	var id models.Identity
	if err := validateUser("user_id", userID); err != nil {
		return id, err
	}
	release, err := s.acquire("get identity")
	if err != nil {
		return id, err
	}
	defer release()
	if err := s.getJSON(keys.GenDirectoryUserKey(userID), &id); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return id, apperr.NotFound("user %q not found", userID)
		}
		return id, err
	}
	return id, nil
}

func (s *DB) PutChannel(ch models.Channel) error {
	if err := validateChannel(ch.ChannelID); err != nil {
		return err
	}
	return s.put(keys.GenDirectoryChannelKey(ch.ChannelID), ch, "put channel")
}

func (s *DB) GetChannel(channelID string) (models.Channel, error) {
	var ch models.Channel
	if err := validateChannel(channelID); err != nil {
		return ch, err
	}
	release, err := s.acquire("get channel")
	if err != nil {
		return ch, err
	}
	defer release()
	if err := s.getJSON(keys.GenDirectoryChannelKey(channelID), &ch); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ch, apperr.NotFound("channel %q not found", channelID)
		}
		return ch, err
	}
	return ch, nil
}

func (s *DB) put(key string, v any, op string) error {
	release, err := s.acquire(op)
	if err != nil {
		return err
	}
	defer release()
	b := s.db.NewBatch()
	defer b.Close()
	_ = b.Set([]byte(key), marshal(v), nil)
	return s.commit(b, op)
}
