package store

import (
	"strings"

	"github.com/dolsel/livetv/pkg/apperr"
	"github.com/dolsel/livetv/pkg/models"
	"github.com/dolsel/livetv/pkg/store/keys"
)

// Content is the caller-supplied part of a new message.
type Content struct {
	Body    string
	Kind    models.Kind
	GiftRef string
}

// Normalize defaults the kind and validates the body and gift invariants.
// The body is stored as given; only the emptiness check trims it.
func (c Content) Normalize() (Content, error) {
	c.Kind = c.Kind.Normalize()
	if !c.Kind.Valid() {
		return c, apperr.Validation("unknown message kind %q", c.Kind)
	}
	if strings.TrimSpace(c.Body) == "" {
		return c, apperr.Validation("message body must not be empty")
	}
	switch c.Kind {
	case models.KindGift:
		if strings.TrimSpace(c.GiftRef) == "" {
			return c, apperr.Validation("gift messages require gift_ref")
		}
	case models.KindText:
		if c.GiftRef != "" {
			return c, apperr.Validation("text messages must not carry gift_ref")
		}
	}
	return c, nil
}

func validateUser(field, id string) error {
	if err := keys.ValidateUserID(id); err != nil {
		return apperr.Validation("%s: %v", field, err)
	}
	return nil
}

func validateChannel(id string) error {
	if err := keys.ValidateChannelID(id); err != nil {
		return apperr.Validation("channel_id: %v", err)
	}
	return nil
}

// ValidatePair checks two distinct, well-formed user ids.
func ValidatePair(aField, a, bField, b string) error {
	if err := validateUser(aField, a); err != nil {
		return err
	}
	if err := validateUser(bField, b); err != nil {
		return err
	}
	if a == b {
		return apperr.Validation("%s and %s must differ", aField, bField)
	}
	return nil
}

// ValidateUserID and ValidateChannelID expose id checks to callers that
// validate before touching the store.
func ValidateUserID(field, id string) error { return validateUser(field, id) }
func ValidateChannelID(id string) error     { return validateChannel(id) }
