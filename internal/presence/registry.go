// Package presence tracks which user identities are currently online.
package presence

import (
	"fmt"
	"sort"
)

// Mode selects how repeated identities are counted.
type Mode string

const (
	// ModeSet keeps a plain set: closing any session bound to a name takes the
	// name offline, even if another session still claims it.
	ModeSet Mode = "set"

	// ModeRefcount keeps a name online until the last session bound to it closes.
	ModeRefcount Mode = "refcount"
)

// ParseMode validates a configured presence mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSet:
		return ModeSet, nil
	case ModeRefcount:
		return ModeRefcount, nil
	}
	return "", fmt.Errorf("unknown presence mode %q (want %q or %q)", s, ModeSet, ModeRefcount)
}

// Registry is the set of online identities. It is not safe for concurrent
// use; the owning hub serializes access.
type Registry struct {
	mode  Mode
	users map[string]int
}

func NewRegistry(mode Mode) *Registry {
	if mode == "" {
		mode = ModeSet
	}
	return &Registry{
		mode:  mode,
		users: make(map[string]int),
	}
}

func (r *Registry) Mode() Mode {
	return r.mode
}

// Add inserts identity. In set mode repeated adds are no-ops.
func (r *Registry) Add(identity string) {
	if identity == "" {
		return
	}
	if r.mode == ModeRefcount {
		r.users[identity]++
		return
	}
	r.users[identity] = 1
}

// Remove deletes identity and reports whether it went offline.
func (r *Registry) Remove(identity string) bool {
	n, ok := r.users[identity]
	if !ok {
		return false
	}
	if r.mode == ModeRefcount && n > 1 {
		r.users[identity] = n - 1
		return false
	}
	delete(r.users, identity)
	return true
}

func (r *Registry) Contains(identity string) bool {
	_, ok := r.users[identity]
	return ok
}

func (r *Registry) Len() int {
	return len(r.users)
}

// Snapshot returns the online identities, sorted. Never nil.
func (r *Registry) Snapshot() []string {
	users := make([]string, 0, len(r.users))
	for u := range r.users {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
