package registry

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe identity from a display name:
// "My Cool App!!" becomes "my-cool-app". A name with no usable characters
// falls back to a random 8-character hex identifier.
func Slugify(name string) string {
	return slugify(name, randomID)
}

func slugify(name string, fallback func(n int) string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return fallback(8)
	}
	return s
}

// randomID returns n lowercase hex characters taken from a random UUID.
func randomID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}

// stableID returns n lowercase hex characters that depend only on seed.
func stableID(seed string, n int) string {
	id := strings.ReplaceAll(uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
