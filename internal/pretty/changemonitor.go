// Package pretty keeps repeated log lines quiet. When the scheduler fires
// every few minutes the same unplannable tasks come back run after run, and
// logging each drop every time buries anything useful.
package pretty

import (
	"time"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/patrickmn/go-cache"
)

// ChangeMonitor remembers a hash per key and reports whether the value behind
// the key changed since it was last seen. Entries expire so a stable value
// still gets logged again eventually, which matters when earlier logs have
// rotated away.
type ChangeMonitor struct {
	lastSeen *cache.Cache
}

// NewChangeMonitor returns a monitor whose entries expire after the given
// timeout. A zero timeout defaults to 24 hours.
func NewChangeMonitor(timeout time.Duration) *ChangeMonitor {
	if timeout == 0 {
		timeout = 24 * time.Hour
	}
	return &ChangeMonitor{
		lastSeen: cache.New(timeout, timeout/2),
	}
}

// HasChanged hashes the value and returns true if the hash differs from the
// one recorded under key, or if the key has never been seen (or has expired).
func (c *ChangeMonitor) HasChanged(key string, value any) bool {
	hv, _ := hashstructure.Hash(value, hashstructure.FormatV2, &hashstructure.HashOptions{SlicesAsSets: true})
	existing, ok := c.lastSeen.Get(key)
	var existingHash uint64
	if ok {
		existingHash = existing.(uint64)
	}
	if !ok || existingHash != hv {
		c.lastSeen.SetDefault(key, hv)
		return true
	}
	return false
}
