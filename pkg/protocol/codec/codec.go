package codec

import "sync"

// Codec marshals typed payload values. Implementations must be deterministic
// so that equal values produce equal payload bytes on both peers.
type Codec interface {
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// Registry maps content types to codecs. Safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Codec
}

// NewRegistry constructs a registry preloaded with JSON and Protobuf. CBOR
// needs option setup that can fail, so it is added with Register(CBOR()) or
// by using Default.
func NewRegistry() *Registry {
	r := &Registry{byType: make(map[string]Codec)}
	r.Register(JSON())
	r.Register(Proto())
	return r
}

// Default returns a registry holding every built-in codec.
func Default() (*Registry, error) {
	r := NewRegistry()
	c, err := CBOR()
	if err != nil {
		return nil, err
	}
	r.Register(c)
	return r, nil
}

// Register adds or replaces a codec.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	r.byType[c.ContentType()] = c
	r.mu.Unlock()
}

// Get returns a codec by content type, or nil.
func (r *Registry) Get(contentType string) Codec {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byType[contentType]
}
