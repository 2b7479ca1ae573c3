package domain

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d{10}$`)
)

// Validate checks the identity fields and returns the first failing rule:
// email, then name, then phone. Only one error is reported at a time so the
// client can show a single inline message.
func (i Identity) Validate() error {
	if !emailPattern.MatchString(i.Email) {
		return ErrEmailInvalid
	}
	if strings.TrimSpace(i.Name) == "" {
		return ErrNameRequired
	}
	if !phonePattern.MatchString(i.Phone) {
		return ErrPhoneInvalid
	}
	return nil
}
