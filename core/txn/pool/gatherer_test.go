package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/core/txn"
)

func TestKey_String(t *testing.T) {
	key := Key{0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	require.Equal(t, "0xaabbccdd", key.String())
}

func TestSimpleGatherer_Add(t *testing.T) {
	gatherer := NewSimpleGatherer().(*simpleGatherer)

	err := gatherer.Add(fakeTx{})
	require.NoError(t, err)
	require.Equal(t, 1, gatherer.Len())

	// Adding the same pending transaction again does not duplicate it.
	err = gatherer.Add(fakeTx{})
	require.NoError(t, err)
	require.Len(t, gatherer.order, 1)

	err = gatherer.Add(fakeTx{id: make([]byte, 33)})
	require.EqualError(t, err, "tx identifier is too long: 33 > 32")

	gatherer.history[Key{}] = struct{}{}
	err = gatherer.Add(fakeTx{})
	require.EqualError(t, err, "tx 0x00000000 already exists")
}

func TestSimpleGatherer_Remove(t *testing.T) {
	gatherer := NewSimpleGatherer().(*simpleGatherer)
	require.NoError(t, gatherer.Add(fakeTx{}))

	err := gatherer.Remove(fakeTx{})
	require.NoError(t, err)
	require.Equal(t, 0, gatherer.Len())
	require.Empty(t, gatherer.order)

	err = gatherer.Remove(fakeTx{})
	require.EqualError(t, err, "transaction 0x00000000 not found")

	err = gatherer.Remove(fakeTx{id: make([]byte, 33)})
	require.EqualError(t, err, "tx identifier is too long: 33 > 32")
}

func TestSimpleGatherer_Wait(t *testing.T) {
	gatherer := NewSimpleGatherer().(*simpleGatherer)

	ctx := context.Background()

	cb := func() {
		gatherer.Lock()
		require.Len(t, gatherer.queue, 1)
		gatherer.Unlock()

		require.NoError(t, gatherer.Add(fakeTx{}))
	}

	txs := gatherer.Wait(ctx, Config{Min: 1, Callback: cb})
	require.Len(t, txs, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs = gatherer.Wait(ctx, Config{Min: 1})
	require.Len(t, txs, 1)

	txs = gatherer.Wait(ctx, Config{Min: 2})
	require.Nil(t, txs)
	require.Empty(t, gatherer.queue)
}

func TestSimpleGatherer_WaitOrder(t *testing.T) {
	gatherer := NewSimpleGatherer()

	require.NoError(t, gatherer.Add(fakeTx{id: []byte{3}}))
	require.NoError(t, gatherer.Add(fakeTx{id: []byte{1}}))
	require.NoError(t, gatherer.Add(fakeTx{id: []byte{2}}))

	txs := gatherer.Wait(context.Background(), Config{Min: 3})
	require.Len(t, txs, 3)
	require.Equal(t, []byte{3}, txs[0].GetID())
	require.Equal(t, []byte{1}, txs[1].GetID())
	require.Equal(t, []byte{2}, txs[2].GetID())
}

func TestSimpleGatherer_Close(t *testing.T) {
	gatherer := NewSimpleGatherer()

	require.NoError(t, gatherer.Add(fakeTx{}))

	cb := func() {
		gatherer.Close()
	}

	txs := gatherer.Wait(context.Background(), Config{Min: 2, Callback: cb})
	require.Nil(t, txs)
	require.Equal(t, 0, gatherer.Len())
}

// Utility functions -----------------------------------------------------------

type fakeTx struct {
	txn.Transaction

	id []byte
}

func (tx fakeTx) GetID() []byte {
	return tx.id
}
