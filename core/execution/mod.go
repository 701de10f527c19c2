// Package execution defines the service that executes the transactions of a
// block against the state of the ledger.
package execution

import (
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
)

// Step is a context of execution. It contains the transactions of the block
// that were accepted before the current one.
type Step struct {
	Previous []txn.Transaction
	Current  txn.Transaction
}

// Result is the result of a transaction execution.
type Result struct {
	// Accepted is the success state of the transaction.
	Accepted bool

	// Message gives a chance to the execution to explain why a transaction
	// has failed.
	Message string
}

// Service is the execution service that defines the primitives to execute a
// transaction.
type Service interface {
	// Execute must apply the transaction to the snapshot and return the
	// result of it. An error is returned only when the execution cannot
	// complete for a reason that is unrelated to the transaction.
	Execute(snap store.Snapshot, step Step) (Result, error)
}
