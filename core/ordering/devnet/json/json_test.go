package json

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/core/ordering/devnet/types"
	"go.dedis.ch/duet/core/txn/signed"
	_ "go.dedis.ch/duet/core/txn/signed/json"
	"go.dedis.ch/duet/core/validation"
	"go.dedis.ch/duet/core/validation/simple"
	_ "go.dedis.ch/duet/core/validation/simple/json"
	"go.dedis.ch/duet/crypto/ed25519"
	_ "go.dedis.ch/duet/crypto/ed25519/json"
	"go.dedis.ch/duet/internal/testing/fake"
	"go.dedis.ch/duet/serde"
	sjson "go.dedis.ch/duet/serde/json"
)

func TestBlockFormat_EncodeDecode(t *testing.T) {
	signer := ed25519.NewSigner()

	tx, err := signed.NewTransaction(0, signer.GetPublicKey(), signed.WithArg("A", []byte{1}))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(signer))

	res := simple.NewResult([]simple.TransactionResult{
		simple.NewTransactionResult(tx, true, ""),
	})

	block, err := types.NewBlock(res, types.WithIndex(3), types.WithPrevious(types.Digest{1, 2}))
	require.NoError(t, err)

	ctx := sjson.NewContext()

	data, err := block.Serialize(ctx)
	require.NoError(t, err)

	fac := types.NewBlockFactory(simple.NewResultFactory(signed.NewTransactionFactory()))

	decoded, err := fac.BlockOf(ctx, data)
	require.NoError(t, err)
	require.Equal(t, block.GetHash(), decoded.GetHash())
	require.Equal(t, uint64(3), decoded.GetIndex())
	require.Equal(t, types.Digest{1, 2}, decoded.GetPrevious())
	require.Len(t, decoded.GetTransactions(), 1)
}

func TestBlockFormat_Encode(t *testing.T) {
	format := blockFormat{}

	_, err := format.Encode(fake.NewContext(), fake.Message{})
	require.EqualError(t, err, "unsupported message 'fake.Message'")

	block, err := types.NewBlock(badResult{})
	require.NoError(t, err)

	_, err = format.Encode(fake.NewContext(), block)
	require.EqualError(t, err, fake.Err("failed to serialize result"))

	block, err = types.NewBlock(simple.NewResult(nil))
	require.NoError(t, err)

	_, err = format.Encode(fake.NewBadContext(), block)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to serialize result: ")
}

func TestBlockFormat_Decode(t *testing.T) {
	format := blockFormat{}

	_, err := format.Decode(fake.NewBadContext(), []byte(`{}`))
	require.EqualError(t, err, fake.Err("failed to unmarshal"))

	_, err = format.Decode(sjson.NewContext(), []byte(`{}`))
	require.EqualError(t, err, "invalid result factory '<nil>'")

	ctx := serde.WithFactory(sjson.NewContext(), types.ResultKey{}, badResultFactory{})
	_, err = format.Decode(ctx, []byte(`{}`))
	require.EqualError(t, err, fake.Err("failed to deserialize result"))
}

// -----------------------------------------------------------------------------
// Utility functions

type badResult struct {
	validation.Result
}

func (badResult) Fingerprint(w io.Writer) error {
	return nil
}

func (badResult) Serialize(serde.Context) ([]byte, error) {
	return nil, fake.GetError()
}

type badResultFactory struct {
	validation.ResultFactory
}

func (badResultFactory) ResultOf(serde.Context, []byte) (validation.Result, error) {
	return nil, fake.GetError()
}
