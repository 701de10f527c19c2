// Package ordering defines the interface of the ordering service. The
// high-level purpose of this service is to order the transactions from the
// pool into blocks and to apply them to the state of the ledger.
package ordering

import (
	"context"

	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/validation"
)

// Event is the event triggered after a round of the ordering service.
type Event struct {
	// Index is the index of the block that has been committed.
	Index uint64

	// Transactions is the list of results of the round, in the order of the
	// block.
	Transactions []validation.TransactionResult
}

// Service is the interface of an ordering service. It provides the primitives
// to order transactions from a pool.
type Service interface {
	// GetStore returns the current state of the ledger.
	GetStore() store.Readable

	// Watch returns a channel populated with the events of the service. The
	// channel is closed when the context is done.
	Watch(ctx context.Context) <-chan Event

	// Close stops the service.
	Close() error
}
