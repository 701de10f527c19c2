package json

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/core/txn/signed"
	"go.dedis.ch/duet/crypto"
	"go.dedis.ch/duet/crypto/ed25519"
	_ "go.dedis.ch/duet/crypto/ed25519/json"
	"go.dedis.ch/duet/internal/testing/fake"
	"go.dedis.ch/duet/serde"
	sjson "go.dedis.ch/duet/serde/json"
)

func TestTxFormat_Encode(t *testing.T) {
	format := txFormat{}

	ctx := sjson.NewContext()

	tx := makeTx(t, 1, fake.PublicKey{}, signed.WithArg("A", []byte{1}))

	data, err := format.Encode(ctx, tx)
	require.NoError(t, err)
	require.Equal(t, `{"Nonce":1,"Args":{"A":"AQ=="},"PublicKey":{},"Signature":{}}`, string(data))

	_, err = format.Encode(ctx, fake.Message{})
	require.EqualError(t, err, "unsupported message of type 'fake.Message'")

	badTx := makeTx(t, 0, fake.PublicKey{}, signed.WithSignature(fake.NewBadSignature()))
	_, err = format.Encode(ctx, badTx)
	require.EqualError(t, err, fake.Err("failed to encode signature"))

	_, err = format.Encode(fake.NewBadContext(), tx)
	require.EqualError(t, err, fake.Err("failed to marshal"))

	tx = makeTx(t, 0, badPublicKey{})
	_, err = format.Encode(ctx, tx)
	require.EqualError(t, err, fake.Err("failed to encode public key"))
}

func TestTxFormat_EncodeDecode(t *testing.T) {
	format := txFormat{}
	signer := ed25519.NewSigner()

	tx, err := signed.NewTransaction(3, signer.GetPublicKey(), signed.WithArg("B", []byte{1}))
	require.NoError(t, err)
	require.NoError(t, tx.Sign(signer))

	data, err := format.Encode(sjson.NewContext(), tx)
	require.NoError(t, err)

	msg, err := format.Decode(newContext(), data)
	require.NoError(t, err)
	require.Equal(t, tx.GetID(), msg.(*signed.Transaction).GetID())
	require.True(t, tx.GetSignature().Equal(msg.(*signed.Transaction).GetSignature()))

	// A signature that does not match the content is refused.
	forged := []byte(`{"Nonce":4` + string(data[len(`{"Nonce":3`):]))
	_, err = format.Decode(newContext(), forged)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to create tx: invalid signature: ")
}

func TestTxFormat_Decode(t *testing.T) {
	format := txFormat{}

	signer := ed25519.NewSigner()

	pubkey, err := signer.GetPublicKey().Serialize(sjson.NewContext())
	require.NoError(t, err)

	data := []byte(`{"Nonce":2,"Args":{"B":"AQ=="},"PublicKey":` + string(pubkey) + `}`)

	msg, err := format.Decode(newContext(), data)
	require.NoError(t, err)

	expected, err := signed.NewTransaction(2, signer.GetPublicKey(), signed.WithArg("B", []byte{1}))
	require.NoError(t, err)
	require.Equal(t, expected.GetID(), msg.(*signed.Transaction).GetID())
	require.Nil(t, msg.(*signed.Transaction).GetSignature())

	_, err = format.Decode(fake.NewBadContext(), []byte(`{}`))
	require.EqualError(t, err, fake.Err("failed to unmarshal"))

	format.hashFactory = fake.NewHashFactory(fake.NewBadHash())
	_, err = format.Decode(newContext(), data)
	require.EqualError(t, err,
		fake.Err("failed to create tx: couldn't fingerprint tx: couldn't write nonce"))

	format.hashFactory = nil

	badCtx := serde.WithFactory(newContext(), signed.PublicKeyFac{}, nil)
	_, err = format.Decode(badCtx, data)
	require.EqualError(t, err, "invalid public key factory '<nil>'")

	badCtx = serde.WithFactory(newContext(), signed.PublicKeyFac{}, badPublicKeyFactory{})
	_, err = format.Decode(badCtx, data)
	require.EqualError(t, err, fake.Err("failed to decode public key"))

	withSig := []byte(`{"Nonce":2,"PublicKey":` + string(pubkey) + `,"Signature":{}}`)

	badCtx = serde.WithFactory(newContext(), signed.SignatureFac{}, nil)
	_, err = format.Decode(badCtx, withSig)
	require.EqualError(t, err, "invalid signature factory '<nil>'")

	badCtx = serde.WithFactory(newContext(), signed.SignatureFac{}, badSignatureFactory{})
	_, err = format.Decode(badCtx, withSig)
	require.EqualError(t, err, fake.Err("failed to decode signature"))

	// An empty signature never matches.
	_, err = format.Decode(newContext(), withSig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to create tx: invalid signature: ")
}

// -----------------------------------------------------------------------------
// Utility functions

func newContext() serde.Context {
	ctx := sjson.NewContext()
	ctx = serde.WithFactory(ctx, signed.PublicKeyFac{}, ed25519.NewPublicKeyFactory())
	ctx = serde.WithFactory(ctx, signed.SignatureFac{}, ed25519.NewSignatureFactory())

	return ctx
}

func makeTx(t *testing.T, nonce uint64,
	pk crypto.PublicKey, opts ...signed.TransactionOption) *signed.Transaction {

	opts = append([]signed.TransactionOption{signed.WithSignature(fake.Signature{})}, opts...)

	tx, err := signed.NewTransaction(nonce, pk, opts...)
	require.NoError(t, err)

	return tx
}

type badPublicKey struct {
	fake.PublicKey
}

func (badPublicKey) Serialize(serde.Context) ([]byte, error) {
	return nil, fake.GetError()
}

type badSignatureFactory struct {
	crypto.SignatureFactory
}

func (badSignatureFactory) SignatureOf(serde.Context, []byte) (crypto.Signature, error) {
	return nil, fake.GetError()
}

type badPublicKeyFactory struct {
	crypto.PublicKeyFactory
}

func (badPublicKeyFactory) PublicKeyOf(serde.Context, []byte) (crypto.PublicKey, error) {
	return nil, fake.GetError()
}
