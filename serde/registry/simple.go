package registry

import (
	"sync"

	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

// SimpleRegistry is a default implementation of the Registry interface. It is
// safe for concurrent use.
//
// - implements registry.Registry
type SimpleRegistry struct {
	sync.RWMutex
	store map[serde.Format]serde.FormatEngine
}

// NewSimpleRegistry returns a new empty registry.
func NewSimpleRegistry() *SimpleRegistry {
	return &SimpleRegistry{
		store: make(map[serde.Format]serde.FormatEngine),
	}
}

// Register implements registry.Registry. It registers the engine for the given
// format, replacing any previous one.
func (r *SimpleRegistry) Register(name serde.Format, f serde.FormatEngine) {
	r.Lock()
	r.store[name] = f
	r.Unlock()
}

// Get implements registry.Registry. It returns the format engine associated
// with the format if it exists, otherwise it returns an empty format.
func (r *SimpleRegistry) Get(name serde.Format) serde.FormatEngine {
	r.RLock()
	defer r.RUnlock()

	engine := r.store[name]
	if engine == nil {
		return emptyFormat{name: name}
	}

	return engine
}

// emptyFormat is returned for unknown formats and fails every request.
//
// - implements serde.FormatEngine
type emptyFormat struct {
	name serde.Format
}

// Encode implements serde.FormatEngine. It always returns an error.
func (f emptyFormat) Encode(serde.Context, serde.Message) ([]byte, error) {
	return nil, xerrors.Errorf("format '%s' is not implemented", f.name)
}

// Decode implements serde.FormatEngine. It always returns an error.
func (f emptyFormat) Decode(serde.Context, []byte) (serde.Message, error) {
	return nil, xerrors.Errorf("format '%s' is not implemented", f.name)
}
