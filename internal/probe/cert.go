package probe

import (
	"crypto/tls"
	"math"
	"time"
)

// certDaysLeft returns the whole days until the leaf certificate of state
// expires, negative once expired. Nil for plain-HTTP responses.
func certDaysLeft(state *tls.ConnectionState, now time.Time) *int {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil
	}
	leaf := state.PeerCertificates[0]
	days := int(math.Floor(leaf.NotAfter.Sub(now).Hours() / 24))
	return &days
}
