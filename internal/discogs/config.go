// Package discogs is a rate-governed client for the Discogs collection API.
package discogs

import (
	"errors"
	"strings"
)

// ErrMissingCredentials is returned when the token or username is unset.
var ErrMissingCredentials = errors.New("missing Discogs credentials (DISCOGS_TOKEN, DISCOGS_USERNAME)")

// Config holds Discogs API credentials.
type Config struct {
	Token    string
	Username string
}

// Validate returns ErrMissingCredentials when either credential is empty
// or still holds a template placeholder such as YOUR_DISCOGS_TOKEN_HERE.
func (c Config) Validate() error {
	if isPlaceholder(c.Token) || isPlaceholder(c.Username) {
		return ErrMissingCredentials
	}
	return nil
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	return strings.HasPrefix(v, "YOUR_") && strings.HasSuffix(v, "_HERE")
}
