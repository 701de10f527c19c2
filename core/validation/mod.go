// Package validation defines the validator of the transactions gathered by an
// ordering service into a block.
package validation

import (
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/serde"
)

// TransactionResult is the result of a transaction execution.
type TransactionResult interface {
	serde.Message

	// GetTransaction returns the transaction associated to the result.
	GetTransaction() txn.Transaction

	// GetStatus returns the status of the execution. It returns true if the
	// transaction has been accepted, otherwise false with a message to explain
	// the reason.
	GetStatus() (bool, string)
}

// Result is the result of a validation.
type Result interface {
	serde.Message
	serde.Fingerprinter

	// GetTransactionResults returns the results ordered as the batch.
	GetTransactionResults() []TransactionResult
}

// ResultFactory is the interface of the validation result factory.
type ResultFactory interface {
	serde.Factory

	ResultOf(serde.Context, []byte) (Result, error)
}

// Service is the validation service that will process a batch of transactions
// into a validated result that can be used as a payload of a block.
type Service interface {
	// GetFactory returns the result factory.
	GetFactory() ResultFactory

	// GetNonce returns the nonce associated with the identity. The value
	// returned should be used for the next transaction to be valid.
	GetNonce(store.Readable, access.Identity) (uint64, error)

	// Validate executes the transactions and returns the result. The
	// snapshot is updated with the accepted transactions only.
	Validate(store.Snapshot, []txn.Transaction) (Result, error)
}
