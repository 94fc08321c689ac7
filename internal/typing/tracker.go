// Package typing records who is currently typing. The record is
// observational: entries expire after a TTL but expiry never emits events.
package typing

import (
	"sort"
	"sync"
	"time"
)

const DefaultTTL = 3 * time.Second

type Tracker struct {
	mu      sync.Mutex
	ttl     time.Duration
	started map[string]time.Time
}

func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		ttl:     ttl,
		started: make(map[string]time.Time),
	}
}

// Start marks identity as typing at now. Repeated starts refresh the entry.
func (t *Tracker) Start(identity string, now time.Time) {
	if identity == "" {
		return
	}
	t.mu.Lock()
	t.started[identity] = now
	t.mu.Unlock()
}

func (t *Tracker) Stop(identity string) {
	t.mu.Lock()
	delete(t.started, identity)
	t.mu.Unlock()
}

// Active returns identities whose last start is within the TTL, sorted.
// Expired entries are pruned.
func (t *Tracker) Active(now time.Time) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := []string{}
	for id, at := range t.started {
		if now.Sub(at) > t.ttl {
			delete(t.started, id)
			continue
		}
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}
