package models

import "time"

// Identity is the replica of a user as known to the identity provider.
type Identity struct {
	UserID       string    `json:"user_id" yaml:"user_id"`
	Username     string    `json:"username" yaml:"username"`
	ProfileImage string    `json:"profile_image,omitempty" yaml:"profile_image"`
	IsAdmin      bool      `json:"is_admin" yaml:"is_admin"`
	UpdatedAt    time.Time `json:"updated_at" yaml:"-"`
}

type Channel struct {
	ChannelID string    `json:"channel_id" yaml:"channel_id"`
	Name      string    `json:"name" yaml:"name"`
	IsActive  bool      `json:"is_active" yaml:"is_active"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// IdentityPatch carries only the fields a sync call wants to change.
type IdentityPatch struct {
	Username     *string `json:"username,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	IsAdmin      *bool   `json:"is_admin,omitempty"`
}

// Apply copies the set fields of p onto id.
func (p IdentityPatch) Apply(id *Identity) {
	if p.Username != nil {
		id.Username = *p.Username
	}
	if p.ProfileImage != nil {
		id.ProfileImage = *p.ProfileImage
	}
	if p.IsAdmin != nil {
		id.IsAdmin = *p.IsAdmin
	}
}

func (p IdentityPatch) Empty() bool {
	return p.Username == nil && p.ProfileImage == nil && p.IsAdmin == nil
}

type ChannelPatch struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (p ChannelPatch) Apply(c *Channel) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
}

func (p ChannelPatch) Empty() bool {
	return p.Name == nil && p.IsActive == nil
}
