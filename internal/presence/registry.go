// Package presence tracks connected participants. Each entry binds a
// connection handle to an identity; an identity may hold several simultaneous
// connections (multi-device). The registry owns presence state exclusively;
// other components only read it.
package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/consilience/collab-chat/internal/metrics"
)

// Entry is one live connection's presence record.
type Entry struct {
	Identity   string
	Handle     string
	LastSeenAt time.Time
}

// Registry is a goroutine-safe presence registry keyed by connection handle,
// with a per-identity index for O(1) online-set queries.
type Registry struct {
	mu         sync.RWMutex
	byHandle   map[string]*Entry
	byIdentity map[string]map[string]*Entry // identity -> handle -> entry
}

// NewRegistry creates an empty presence registry.
func NewRegistry() *Registry {
	return &Registry{
		byHandle:   make(map[string]*Entry),
		byIdentity: make(map[string]map[string]*Entry),
	}
}

// Register records a connection for an identity. Registering the same handle
// again is idempotent: the identity binding is refreshed and LastSeenAt is
// updated, but no second entry is created.
func (r *Registry) Register(handle, identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byHandle[handle]; ok {
		if prev.Identity != identity {
			r.removeIndexLocked(prev)
			r.indexLocked(&Entry{Identity: identity, Handle: handle, LastSeenAt: time.Now()})
		} else {
			prev.LastSeenAt = time.Now()
		}
		return
	}

	r.indexLocked(&Entry{Identity: identity, Handle: handle, LastSeenAt: time.Now()})
	metrics.OnlineIdentities.Set(float64(len(r.byIdentity)))
}

// Touch updates LastSeenAt for a handle. Unknown handles are ignored.
func (r *Registry) Touch(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.byHandle[handle]; ok {
		e.LastSeenAt = time.Now()
	}
}

// Unregister removes a connection. Removing an unknown or already-removed
// handle has no observable effect.
func (r *Registry) Unregister(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byHandle[handle]
	if !ok {
		return
	}
	r.removeIndexLocked(e)
	metrics.OnlineIdentities.Set(float64(len(r.byIdentity)))
}

// Get returns a copy of the entry for a handle, or false if not registered.
func (r *Registry) Get(handle string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byHandle[handle]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// OnlineIdentities returns the distinct identities with at least one live
// connection, sorted for deterministic output.
func (r *Registry) OnlineIdentities() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byIdentity))
	for identity := range r.byIdentity {
		out = append(out, identity)
	}
	sort.Strings(out)
	return out
}

// HandlesFor returns the connection handles currently held by an identity,
// sorted for deterministic output. Empty when the identity is offline.
func (r *Registry) HandlesFor(identity string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.byIdentity[identity]
	out := make([]string, 0, len(handles))
	for h := range handles {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// OnlineCount returns the number of distinct online identities.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byIdentity)
}

// ConnectionCount returns the number of live connections across identities.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byHandle)
}

func (r *Registry) indexLocked(e *Entry) {
	r.byHandle[e.Handle] = e
	handles, ok := r.byIdentity[e.Identity]
	if !ok {
		handles = make(map[string]*Entry)
		r.byIdentity[e.Identity] = handles
	}
	handles[e.Handle] = e
}

func (r *Registry) removeIndexLocked(e *Entry) {
	delete(r.byHandle, e.Handle)
	if handles, ok := r.byIdentity[e.Identity]; ok {
		delete(handles, e.Handle)
		if len(handles) == 0 {
			delete(r.byIdentity, e.Identity)
		}
	}
}
