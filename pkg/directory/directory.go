// Package directory resolves user identities and channels for the gateway.
//
// Both are owned by external systems. Replica keeps a local copy in the
// message store that a backend caller syncs through upserts.
package directory

import (
	"strings"
	"sync"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/logger"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/timeutil"
)

// Identities resolves users. Missing users yield apperr.NotFound.
type Identities interface {
	LookupUser(userID string) (models.Identity, error)
}

// Channels resolves channels. Missing or inactive channels yield apperr.NotFound.
type Channels interface {
	LookupChannel(channelID string) (models.Channel, error)
}

// Backend is the storage a Replica needs.
type Backend interface {
	PutIdentity(models.Identity) error
	GetIdentity(userID string) (models.Identity, error)
	PutChannel(models.Channel) error
	GetChannel(channelID string) (models.Channel, error)
}

type Replica struct {
	mu sync.Mutex
	be Backend
}

func NewReplica(be Backend) *Replica {
	return &Replica{be: be}
}

func (r *Replica) LookupUser(userID string) (models.Identity, error) {
	return r.be.GetIdentity(userID)
}

func (r *Replica) LookupChannel(channelID string) (models.Channel, error) {
	ch, err := r.be.GetChannel(channelID)
	if err != nil {
		return ch, err
	}
	if !ch.IsActive {
		return models.Channel{}, apperr.NotFound("channel %q not found", channelID)
	}
	return ch, nil
}

// GetChannel returns a channel regardless of its active flag.
func (r *Replica) GetChannel(channelID string) (models.Channel, error) {
	return r.be.GetChannel(channelID)
}

// UpsertUser applies patch to the stored identity, creating it when absent.
// A new identity requires a username.
func (r *Replica) UpsertUser(userID string, patch models.IdentityPatch) (models.Identity, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.be.GetIdentity(userID)
	created := false
	switch {
	case apperr.IsNotFound(err):
		if patch.Username == nil || strings.TrimSpace(*patch.Username) == "" {
			return models.Identity{}, false, apperr.Validation("username is required for a new user")
		}
		id = models.Identity{UserID: userID}
		created = true
	case err != nil:
		return models.Identity{}, false, err
	case patch.Empty():
		return id, false, nil
	}
	patch.Apply(&id)
	id.UpdatedAt = timeutil.Now()
	if err := r.be.PutIdentity(id); err != nil {
		return models.Identity{}, false, err
	}
	logger.Info("directory_user_synced", "user_id", userID, "created", created)
	return id, created, nil
}

// UpsertChannel applies patch to the stored channel, creating it when
// absent. New channels default to active.
func (r *Replica) UpsertChannel(channelID string, patch models.ChannelPatch) (models.Channel, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, err := r.be.GetChannel(channelID)
	created := false
	switch {
	case apperr.IsNotFound(err):
		ch = models.Channel{ChannelID: channelID, IsActive: true}
		created = true
	case err != nil:
		return models.Channel{}, false, err
	case patch.Empty():
		return ch, false, nil
	}
	patch.Apply(&ch)
	ch.UpdatedAt = timeutil.Now()
	if err := r.be.PutChannel(ch); err != nil {
		return models.Channel{}, false, err
	}
	logger.Info("directory_channel_synced", "channel_id", channelID, "created", created)
	return ch, created, nil
}

// Seed writes the given records, overwriting existing copies.
func (r *Replica) Seed(users []models.Identity, channels []models.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := timeutil.Now()
	for _, u := range users {
		u.UpdatedAt = now
		if err := r.be.PutIdentity(u); err != nil {
			return err
		}
	}
	for _, c := range channels {
		c.UpdatedAt = now
		if err := r.be.PutChannel(c); err != nil {
			return err
		}
	}
	if len(users)+len(channels) > 0 {
		logger.Info("directory_seeded", "users", len(users), "channels", len(channels))
	}
	return nil
}
