// Package mem implements in-memory states of the store.
package mem

import (
	"sync"

	"go.dedis.ch/duet/core/store"
)

// Trie is an in-memory implementation of a store trie. Staging a trie records
// the updates in a buffer, then folds them into a new independent trie so
// that the chain of states never grows.
//
// - implements store.Trie
type Trie struct {
	sync.RWMutex
	values map[string][]byte
}

// NewTrie returns a new empty trie.
func NewTrie() *Trie {
	return &Trie{
		values: make(map[string][]byte),
	}
}

// Get implements store.Readable. It returns the value of the key, or nil if it
// does not exist.
func (t *Trie) Get(key []byte) ([]byte, error) {
	t.RLock()
	defer t.RUnlock()

	value, found := t.values[string(key)]
	if !found {
		return nil, nil
	}

	return append([]byte{}, value...), nil
}

// Len returns the number of keys in the trie.
func (t *Trie) Len() int {
	t.RLock()
	defer t.RUnlock()

	return len(t.values)
}

// Stage implements store.Trie. It runs the callback over a buffered snapshot
// and applies the changes to a copy of the trie.
func (t *Trie) Stage(fn func(store.Snapshot) error) (store.Trie, error) {
	buffer := NewBuffer(t)

	err := fn(buffer)
	if err != nil {
		return nil, err
	}

	t.RLock()

	next := &Trie{
		values: make(map[string][]byte, len(t.values)),
	}

	for k, v := range t.values {
		next.values[k] = v
	}

	t.RUnlock()

	buffer.fold(next.values)

	return next, nil
}
