// Package store defines the primitives of a simple key/value storage used as
// the state of the ledger.
//
// A missing key is never an error: reading it returns a nil value.
package store

// Readable is the interface for a readable store.
type Readable interface {
	Get(key []byte) ([]byte, error)
}

// Writable is the interface for a writable store.
type Writable interface {
	Set(key []byte, value []byte) error

	Delete(key []byte) error
}

// Snapshot is a state of the store that can be read and written
// independently. A write is applied only to the snapshot reference.
type Snapshot interface {
	Readable
	Writable
}

// Trie is a read-only state that can be staged to produce the next state.
type Trie interface {
	Readable

	// Stage runs the callback on a writable snapshot of the trie and returns
	// the resulting trie. The current trie is left untouched, and no trie is
	// returned if the callback fails.
	Stage(fn func(Snapshot) error) (Trie, error)
}

// Transaction is a generic interface that store implementations can use to
// provide atomicity.
type Transaction interface {
	// OnCommit adds a callback to be executed after the transaction
	// successfully commits.
	OnCommit(func())
}
