package hub

import (
	"sync"
)

// Entry records a single live connection for a user. The registry holds
// at most one entry per user id; a reconnect replaces the previous entry
// without closing the superseded connection.
type Entry struct {
	UserId   string
	Username string
	Client   *Client
}

// Registry is the process-wide record of which users currently have a
// live connection. Every operation is a single critical section.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Upsert inserts or replaces the entry for entry.UserId.
func (r *Registry) Upsert(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.UserId] = entry
}

// Remove drops the entry for userId if present.
func (r *Registry) Remove(userId string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userId)
}

// RemoveConn drops the entry for userId only if it still points at c.
// A superseded connection's eventual disconnect must not evict the
// connection that replaced it.
func (r *Registry) RemoveConn(userId string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userId]
	if !ok || entry.Client != c {
		return false
	}

	delete(r.entries, userId)
	return true
}

func (r *Registry) Find(userId string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[userId]
	return entry, ok
}

// SnapshotAll returns all current entries. Order is unspecified;
// consumers treat the result as a set.
func (r *Registry) SnapshotAll() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}

	return entries
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
