// Package pool defines the interface for a transaction pool. It holds the
// transactions submitted by the participants of a session until the ordering
// service gathers them into a block.
package pool

import (
	"context"

	"go.dedis.ch/duet/core/txn"
)

// Config is the set of parameters that allows one to change the behavior of
// the gathering process.
type Config struct {
	// Min is the minimum number of transactions the gatherer waits for.
	Min int

	// Callback is called once the gatherer starts to wait for transactions.
	Callback func()
}

// Pool is the maintainer of the list of transactions.
type Pool interface {
	// Len returns the length of the pool.
	Len() int

	// Add adds the transaction to the pool.
	Add(txn.Transaction) error

	// Remove removes the transaction from the pool.
	Remove(txn.Transaction) error

	// Gather is a blocking function to gather transactions from the pool. The
	// configuration allows one to specify criterion before returning. The
	// function returns nil if the context is done first.
	Gather(ctx context.Context, cfg Config) []txn.Transaction

	// Close closes the pool and cleans the resources.
	Close() error
}
