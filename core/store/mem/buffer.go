package mem

import (
	"sort"

	"go.dedis.ch/duet/core/store"
	"golang.org/x/xerrors"
)

// Buffer is a snapshot that records the writes on top of a readable parent.
// The parent is never updated until the buffer is applied, which allows a
// caller to discard the changes of a failed transaction.
//
// - implements store.Snapshot
type Buffer struct {
	parent  store.Readable
	updates map[string][]byte
	deleted map[string]struct{}
}

// NewBuffer returns a new empty buffer on top of the parent.
func NewBuffer(parent store.Readable) *Buffer {
	return &Buffer{
		parent:  parent,
		updates: make(map[string][]byte),
		deleted: make(map[string]struct{}),
	}
}

// Get implements store.Readable. It returns the buffered value if any, then
// falls back to the parent.
func (b *Buffer) Get(key []byte) ([]byte, error) {
	str := string(key)

	value, found := b.updates[str]
	if found {
		return append([]byte{}, value...), nil
	}

	_, found = b.deleted[str]
	if found {
		return nil, nil
	}

	value, err := b.parent.Get(key)
	if err != nil {
		return nil, xerrors.Errorf("parent: %v", err)
	}

	return value, nil
}

// Set implements store.Writable. It buffers the value for the key.
func (b *Buffer) Set(key, value []byte) error {
	str := string(key)

	b.updates[str] = append([]byte{}, value...)
	delete(b.deleted, str)

	return nil
}

// Delete implements store.Writable. It buffers the deletion of the key.
func (b *Buffer) Delete(key []byte) error {
	str := string(key)

	delete(b.updates, str)
	b.deleted[str] = struct{}{}

	return nil
}

// Len returns the number of buffered updates and deletions.
func (b *Buffer) Len() int {
	return len(b.updates) + len(b.deleted)
}

// Apply writes the buffered changes to the store in a deterministic order,
// deletions first.
func (b *Buffer) Apply(w store.Writable) error {
	deleted := make([]string, 0, len(b.deleted))
	for key := range b.deleted {
		deleted = append(deleted, key)
	}

	sort.Strings(deleted)

	for _, key := range deleted {
		err := w.Delete([]byte(key))
		if err != nil {
			return xerrors.Errorf("failed to delete '%x': %v", key, err)
		}
	}

	updated := make([]string, 0, len(b.updates))
	for key := range b.updates {
		updated = append(updated, key)
	}

	sort.Strings(updated)

	for _, key := range updated {
		err := w.Set([]byte(key), b.updates[key])
		if err != nil {
			return xerrors.Errorf("failed to set '%x': %v", key, err)
		}
	}

	return nil
}

func (b *Buffer) fold(values map[string][]byte) {
	for key := range b.deleted {
		delete(values, key)
	}

	for key, value := range b.updates {
		values[key] = value
	}
}
