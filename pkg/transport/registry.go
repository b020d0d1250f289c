package transport

import (
	"sort"
	"sync"

	"upsock/pkg/protocol"
)

// Registry maps topic fingerprints to listeners. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[protocol.Fingerprint]entry
}

type entry struct {
	topic    protocol.UUri
	listener Listener
}

func NewRegistry() *Registry { return &Registry{entries: make(map[protocol.Fingerprint]entry)} }

// Register binds l to topic. It reports whether an earlier listener for the
// same topic was replaced.
func (r *Registry) Register(topic protocol.UUri, l Listener) (replaced bool) {
	fp := protocol.FingerprintOf(topic)
	r.mu.Lock()
	defer r.mu.Unlock()
	_, replaced = r.entries[fp]
	r.entries[fp] = entry{topic: topic, listener: l}
	return replaced
}

// Unregister removes the listener for topic and reports whether one existed.
func (r *Registry) Unregister(topic protocol.UUri) bool {
	fp := protocol.FingerprintOf(topic)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[fp]; !ok {
		return false
	}
	delete(r.entries, fp)
	return true
}

// Lookup returns the listener bound to fp.
func (r *Registry) Lookup(fp protocol.Fingerprint) (Listener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[fp]
	return e.listener, ok
}

// Dispatch runs the listener for m's source topic on the calling goroutine.
// It reports false when no listener is registered.
func (r *Registry) Dispatch(m *protocol.Message) bool {
	l, ok := r.Lookup(protocol.FingerprintOf(m.Topic()))
	if !ok {
		return false
	}
	l(m)
	return true
}

// Topics returns the registered topics in canonical string order.
func (r *Registry) Topics() []protocol.UUri {
	r.mu.RLock()
	out := make([]protocol.UUri, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.topic)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	clear(r.entries)
	r.mu.Unlock()
}
