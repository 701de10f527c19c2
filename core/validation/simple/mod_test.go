package simple

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/txn/signed"
	"go.dedis.ch/duet/crypto"
	"go.dedis.ch/duet/internal/testing/fake"
)

func TestService_GetFactory(t *testing.T) {
	srvc := NewService(fakeExec{}, nil)
	require.NotNil(t, srvc.GetFactory())
}

func TestService_GetNonce(t *testing.T) {
	srvc := NewService(fakeExec{}, nil)

	snap := fake.NewSnapshot()

	nonce, err := srvc.GetNonce(snap, fake.PublicKey{})
	require.NoError(t, err)
	require.Equal(t, uint64(0), nonce)

	require.NoError(t, srvc.set(snap, fake.PublicKey{}, 2))

	nonce, err = srvc.GetNonce(snap, fake.PublicKey{})
	require.NoError(t, err)
	require.Equal(t, uint64(3), nonce)

	_, err = srvc.GetNonce(snap, fake.NewBadPublicKey())
	require.EqualError(t, err, fake.Err("key: failed to marshal identity"))

	_, err = srvc.GetNonce(snap, nil)
	require.EqualError(t, err, "key: missing identity in transaction")

	_, err = srvc.GetNonce(fake.NewBadSnapshot(), fake.PublicKey{})
	require.EqualError(t, err, fake.Err("store"))
}

func TestService_Validate(t *testing.T) {
	srvc := NewService(fakeExec{accepted: true}, nil)

	snap := fake.NewSnapshot()

	res, err := srvc.Validate(snap, []txn.Transaction{newTx(t, 0), newTx(t, 1)})
	require.NoError(t, err)
	require.Len(t, res.GetTransactionResults(), 2)

	for _, txres := range res.GetTransactionResults() {
		accepted, reason := txres.GetStatus()
		require.True(t, accepted)
		require.Empty(t, reason)
	}

	value, err := snap.Get([]byte("counter"))
	require.NoError(t, err)
	require.Equal(t, []byte{2}, value)

	// Replay of an already consumed nonce.
	res, err = srvc.Validate(snap, []txn.Transaction{newTx(t, 1)})
	require.NoError(t, err)

	accepted, reason := res.GetTransactionResults()[0].GetStatus()
	require.False(t, accepted)
	require.Equal(t, "nonce '1' != '2'", reason)

	_, err = srvc.Validate(snap, []txn.Transaction{fakeTx{}})
	require.EqualError(t, err, "tx 0x0a0b0c0d: nonce: key: missing identity in transaction")

	srvc.hashFac = fake.NewHashFactory(fake.NewBadHash())
	err = srvc.set(snap, fake.PublicKey{}, 0)
	require.EqualError(t, err, fake.Err("key: failed to write identity"))

	srvc.hashFac = crypto.NewSha256Factory()

	bad := fake.NewSnapshot()
	bad.ErrWrite = fake.GetError()
	_, err = srvc.Validate(bad, []txn.Transaction{newTx(t, 0)})
	require.Error(t, err)
	require.Contains(t, err.Error(), fake.Err("failed to apply: failed to set '636f756e746572'"))

	srvc.execution = fakeExec{err: fake.GetError()}
	_, err = srvc.Validate(fake.NewSnapshot(), []txn.Transaction{newTx(t, 0)})
	require.Error(t, err)
	require.Contains(t, err.Error(), fake.Err("failed to execute tx"))
}

func TestService_ValidateRefused(t *testing.T) {
	srvc := NewService(fakeExec{accepted: false}, nil)

	snap := fake.NewSnapshot()

	res, err := srvc.Validate(snap, []txn.Transaction{newTx(t, 0)})
	require.NoError(t, err)

	accepted, reason := res.GetTransactionResults()[0].GetStatus()
	require.False(t, accepted)
	require.Equal(t, "refused", reason)

	// Changes of a refused transaction are discarded.
	value, err := snap.Get([]byte("counter"))
	require.NoError(t, err)
	require.Nil(t, value)

	// The nonce is consumed anyway.
	nonce, err := srvc.GetNonce(snap, fake.PublicKey{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), nonce)
}

func TestService_ValidatePrevious(t *testing.T) {
	exec := &recordExec{}
	srvc := NewService(exec, nil)

	txs := []txn.Transaction{newTx(t, 0), newTx(t, 5), newTx(t, 1)}

	_, err := srvc.Validate(fake.NewSnapshot(), txs)
	require.NoError(t, err)
	require.Len(t, exec.steps, 2)
	require.Empty(t, exec.steps[0].Previous)
	require.Equal(t, []txn.Transaction{txs[0]}, exec.steps[1].Previous)
}

// -----------------------------------------------------------------------------
// Utility functions

func newTx(t *testing.T, nonce uint64) txn.Transaction {
	tx, err := signed.NewTransaction(nonce, fake.PublicKey{})
	require.NoError(t, err)

	return tx
}

type fakeExec struct {
	accepted bool
	err      error
}

func (e fakeExec) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	if e.err != nil {
		return execution.Result{}, e.err
	}

	value, err := snap.Get([]byte("counter"))
	if err != nil {
		return execution.Result{}, err
	}

	counter := byte(0)
	if len(value) == 1 {
		counter = value[0]
	}

	err = snap.Set([]byte("counter"), []byte{counter + 1})
	if err != nil {
		return execution.Result{}, err
	}

	if !e.accepted {
		return execution.Result{Message: "refused"}, nil
	}

	return execution.Result{Accepted: true}, nil
}

type recordExec struct {
	steps []execution.Step
}

func (e *recordExec) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	e.steps = append(e.steps, step)

	return execution.Result{Accepted: true}, nil
}

type fakeTx struct {
	txn.Transaction
}

func (fakeTx) GetID() []byte {
	return []byte{0xa, 0xb, 0xc, 0xd, 0xe}
}

func (fakeTx) GetNonce() uint64 {
	return 0
}

func (fakeTx) GetIdentity() access.Identity {
	return nil
}
