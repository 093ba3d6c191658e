package keys

import (
	"errors"
	"fmt"
	"regexp"
)

// conservative ID validation: letters, digits, dot, underscore, dash,
// bounded to protect DB key shapes. ":" is the segment separator and
// must never appear inside an id.
var idRegexp = regexp.MustCompile(`^[A-Za-z0-9._-]{1,256}$`)

func ValidateUserID(id string) error {
	if id == "" {
		return errors.New("user id empty")
	}
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid user id: %q", id)
	}
	return nil
}

func ValidateChannelID(id string) error {
	if id == "" {
		return errors.New("channel id empty")
	}
	if !idRegexp.MatchString(id) {
		return fmt.Errorf("invalid channel id: %q", id)
	}
	return nil
}
