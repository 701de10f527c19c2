// Package simple implements a validation service that executes the
// transactions one after the other.
//
// A transaction is accepted only if its nonce is the next one of its identity
// and the execution succeeds. A transaction with the right nonce that fails to
// execute is refused, none of its changes are kept, but its nonce is consumed
// so that the identity can keep submitting.
package simple

import (
	"encoding/binary"

	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/store/mem"
	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/validation"
	"go.dedis.ch/duet/crypto"
	"golang.org/x/xerrors"
)

// Service is a standard validation service that will process the batch and
// update the snapshot accordingly.
//
// - implements validation.Service
type Service struct {
	execution execution.Service
	fac       validation.ResultFactory
	hashFac   crypto.HashFactory
}

// NewService creates a new validation service.
func NewService(exec execution.Service, f txn.Factory) Service {
	return Service{
		execution: exec,
		fac:       NewResultFactory(f),
		hashFac:   crypto.NewSha256Factory(),
	}
}

// GetFactory implements validation.Service. It returns the result factory.
func (s Service) GetFactory() validation.ResultFactory {
	return s.fac
}

// GetNonce implements validation.Service. It returns the next nonce expected
// for the identity.
func (s Service) GetNonce(store store.Readable, ident access.Identity) (uint64, error) {
	key, err := s.keyFromIdentity(ident)
	if err != nil {
		return 0, xerrors.Errorf("key: %v", err)
	}

	value, err := store.Get(key)
	if err != nil {
		return 0, xerrors.Errorf("store: %v", err)
	}

	if len(value) != 8 {
		return 0, nil
	}

	return binary.LittleEndian.Uint64(value) + 1, nil
}

// Validate implements validation.Service. It processes the list of transactions
// while updating the snapshot then returns a bundle of the transaction results.
func (s Service) Validate(snap store.Snapshot, txs []txn.Transaction) (validation.Result, error) {
	results := make([]TransactionResult, len(txs))
	accepted := make([]txn.Transaction, 0, len(txs))

	for i, tx := range txs {
		res, err := s.validateTx(snap, accepted, tx)
		if err != nil {
			id := tx.GetID()
			if len(id) > 4 {
				id = id[:4]
			}

			return nil, xerrors.Errorf("tx %#x: %v", id, err)
		}

		results[i] = res

		if res.accepted {
			accepted = append(accepted, tx)
		}
	}

	return NewResult(results), nil
}

func (s Service) validateTx(snap store.Snapshot, prev []txn.Transaction, tx txn.Transaction) (TransactionResult, error) {
	nonce, err := s.GetNonce(snap, tx.GetIdentity())
	if err != nil {
		return TransactionResult{}, xerrors.Errorf("nonce: %v", err)
	}

	if nonce != tx.GetNonce() {
		reason := xerrors.Errorf("nonce '%d' != '%d'", tx.GetNonce(), nonce)

		return NewTransactionResult(tx, false, reason.Error()), nil
	}

	buffer := mem.NewBuffer(snap)

	step := execution.Step{
		Previous: prev,
		Current:  tx,
	}

	res, err := s.execution.Execute(buffer, step)
	if err != nil {
		return TransactionResult{}, xerrors.Errorf("failed to execute tx: %v", err)
	}

	if res.Accepted {
		err = buffer.Apply(snap)
		if err != nil {
			return TransactionResult{}, xerrors.Errorf("failed to apply: %v", err)
		}
	}

	err = s.set(snap, tx.GetIdentity(), tx.GetNonce())
	if err != nil {
		return TransactionResult{}, xerrors.Errorf("failed to set nonce: %v", err)
	}

	return NewTransactionResult(tx, res.Accepted, res.Message), nil
}

func (s Service) set(snap store.Snapshot, ident access.Identity, nonce uint64) error {
	key, err := s.keyFromIdentity(ident)
	if err != nil {
		return xerrors.Errorf("key: %v", err)
	}

	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, nonce)

	err = snap.Set(key, buffer)
	if err != nil {
		return xerrors.Errorf("store: %v", err)
	}

	return nil
}

func (s Service) keyFromIdentity(ident access.Identity) ([]byte, error) {
	if ident == nil {
		return nil, xerrors.New("missing identity in transaction")
	}

	data, err := ident.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	h := s.hashFac.New()
	_, err = h.Write(data)
	if err != nil {
		return nil, xerrors.Errorf("failed to write identity: %v", err)
	}

	return h.Sum(nil), nil
}
