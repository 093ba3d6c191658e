package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store/keys"
	"github.com/dolsel/livetv/pkg/timeutil"
)

func touchActivity(b *pebble.Batch, user, channel string, at time.Time) {
	rec := models.ActivityRecord{UserID: user, ChannelID: channel, LastSeenAt: at, Online: true}
	_ = b.Set([]byte(keys.GenActivityKey(channel, user)), marshal(rec), nil)
}

// Touch upserts the activity record for (user, channel) with the current
// time. Concurrent touches resolve last-writer-wins.
func (s *DB) Touch(user, channel string) (models.ActivityRecord, error) {
	if err := validateUser("user_id", user); err != nil {
		return models.ActivityRecord{}, err
	}
	if err := validateChannel(channel); err != nil {
		return models.ActivityRecord{}, err
	}
	release, err := s.acquire("touch activity")
	if err != nil {
		return models.ActivityRecord{}, err
	}
	defer release()
	at := timeutil.Now()
	b := s.db.NewBatch()
	defer b.Close()
	touchActivity(b, user, channel, at)
	if err := s.commit(b, "touch activity"); err != nil {
		return models.ActivityRecord{}, err
	}
	return models.ActivityRecord{UserID: user, ChannelID: channel, LastSeenAt: at, Online: true}, nil
}

func (s *DB) GetActivity(user, channel string) (models.ActivityRecord, error) {
	var rec models.ActivityRecord
	release, err := s.acquire("get activity")
	if err != nil {
		return rec, err
	}
	defer release()
	if err := s.getJSON(keys.GenActivityKey(channel, user), &rec); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return rec, apperr.NotFound("no activity for user %q in channel %q", user, channel)
		}
		return rec, err
	}
	return rec, nil
}

// ListChannelActivity returns every activity record of a channel, most
// recently seen first.
func (s *DB) ListChannelActivity(channel string) ([]models.ActivityRecord, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}
	release, err := s.acquire("list channel activity")
	if err != nil {
		return nil, err
	}
	defer release()
	iter, err := s.prefixIter(keys.GenActivityChannelPrefix(channel))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make([]models.ActivityRecord, 0)
	for valid := iter.First(); valid; valid = iter.Next() {
		var rec models.ActivityRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastSeenAt.Equal(out[j].LastSeenAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].LastSeenAt.After(out[j].LastSeenAt)
	})
	return out, nil
}
