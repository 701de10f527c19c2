// Package blockstore defines and implements the storage of the blocks of the
// development ledger.
package blockstore

import (
	"errors"

	"go.dedis.ch/duet/core/ordering/devnet/types"
)

// ErrNoBlock is the error message returned when the block is unknown.
var ErrNoBlock = errors.New("no block")

// BlockStore is the interface to store and get blocks.
type BlockStore interface {
	// Len must return the length of the store.
	Len() uint64

	// Store must store the block only if it follows the latest block,
	// otherwise it must return an error.
	Store(types.Block) error

	// Get must return the block associated to the digest, otherwise an error.
	Get(id types.Digest) (types.Block, error)

	// GetByIndex must return the block at the index, otherwise an error.
	GetByIndex(index uint64) (types.Block, error)

	// Last must return the latest block in the store.
	Last() (types.Block, error)
}
