package blockstore

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/core/ordering/devnet/types"
	"go.dedis.ch/duet/core/validation/simple"
	"golang.org/x/xerrors"
)

func TestInMemory_Len(t *testing.T) {
	store := NewInMemory()
	require.Equal(t, uint64(0), store.Len())

	store.blocks = append(store.blocks, types.Block{})
	require.Equal(t, uint64(1), store.Len())
}

func TestInMemory_Store(t *testing.T) {
	store := NewInMemory()

	first := makeBlock(t, 0, types.Digest{})
	require.NoError(t, store.Store(first))

	second := makeBlock(t, 1, first.GetHash())
	require.NoError(t, store.Store(second))

	err := store.Store(makeBlock(t, 1, second.GetHash()))
	require.EqualError(t, err, "invalid index 1 != 2")

	err = store.Store(makeBlock(t, 2, types.Digest{}))
	require.EqualError(t, err, "mismatch previous '00000000' != '"+second.GetHash().String()+"'")

	err = NewInMemory().Store(second)
	require.EqualError(t, err, "invalid index 1 != 0")
}

func TestInMemory_Get(t *testing.T) {
	store := NewInMemory()

	block := makeBlock(t, 0, types.Digest{})
	require.NoError(t, store.Store(block))

	found, err := store.Get(block.GetHash())
	require.NoError(t, err)
	require.Equal(t, block, found)

	_, err = store.Get(types.Digest{})
	require.True(t, xerrors.Is(err, ErrNoBlock))
	require.EqualError(t, err, "'00000000' not found: no block")
}

func TestInMemory_GetByIndex(t *testing.T) {
	store := NewInMemory()

	block := makeBlock(t, 0, types.Digest{})
	require.NoError(t, store.Store(block))

	found, err := store.GetByIndex(0)
	require.NoError(t, err)
	require.Equal(t, block, found)

	_, err = store.GetByIndex(1)
	require.EqualError(t, err, "index 1 not found: no block")
}

func TestInMemory_Last(t *testing.T) {
	store := NewInMemory()

	_, err := store.Last()
	require.EqualError(t, err, "store empty: no block")
	require.True(t, xerrors.Is(err, ErrNoBlock))

	block := makeBlock(t, 0, types.Digest{})
	require.NoError(t, store.Store(block))

	last, err := store.Last()
	require.NoError(t, err)
	require.Equal(t, block, last)
}

// -----------------------------------------------------------------------------
// Utility functions

func makeBlock(t *testing.T, index uint64, previous types.Digest) types.Block {
	block, err := types.NewBlock(simple.NewResult(nil),
		types.WithIndex(index), types.WithPrevious(previous))
	require.NoError(t, err)

	return block
}
