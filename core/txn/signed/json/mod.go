package json

import (
	"encoding/json"

	"go.dedis.ch/duet/core/txn/signed"
	"go.dedis.ch/duet/crypto"
	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

func init() {
	signed.RegisterTransactionFormat(serde.FormatJSON, txFormat{})
}

// TransactionJSON is the JSON message of a transaction.
type TransactionJSON struct {
	Nonce     uint64
	Args      map[string][]byte
	PublicKey json.RawMessage
	Signature json.RawMessage
}

// TxFormat is the JSON format engine for transactions.
//
// - implements serde.FormatEngine
type txFormat struct {
	hashFactory crypto.HashFactory
}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// provided transaction if appropriate, otherwise it returns an error.
func (fmt txFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	tx, ok := msg.(*signed.Transaction)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	args := map[string][]byte{}
	for _, arg := range tx.GetArgs() {
		args[arg] = tx.GetArg(arg)
	}

	pubkey, err := tx.GetPublicKey().Serialize(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to encode public key: %v", err)
	}

	var sig []byte
	if tx.GetSignature() != nil {
		sig, err = tx.GetSignature().Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to encode signature: %v", err)
		}
	}

	m := TransactionJSON{
		Nonce:     tx.GetNonce(),
		Args:      args,
		PublicKey: pubkey,
		Signature: sig,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It returns the transaction from the
// JSON data if appropriate, otherwise it returns an error.
func (fmt txFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := TransactionJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	fac := ctx.GetFactory(signed.PublicKeyFac{})

	factory, ok := fac.(crypto.PublicKeyFactory)
	if !ok {
		return nil, xerrors.Errorf("invalid public key factory '%T'", fac)
	}

	pubkey, err := factory.PublicKeyOf(ctx, m.PublicKey)
	if err != nil {
		return nil, xerrors.Errorf("failed to decode public key: %v", err)
	}

	opts := make([]signed.TransactionOption, 0, len(m.Args)+2)
	for key, value := range m.Args {
		opts = append(opts, signed.WithArg(key, value))
	}

	if len(m.Signature) > 0 {
		fac = ctx.GetFactory(signed.SignatureFac{})

		sigFactory, ok := fac.(crypto.SignatureFactory)
		if !ok {
			return nil, xerrors.Errorf("invalid signature factory '%T'", fac)
		}

		sig, err := sigFactory.SignatureOf(ctx, m.Signature)
		if err != nil {
			return nil, xerrors.Errorf("failed to decode signature: %v", err)
		}

		opts = append(opts, signed.WithSignature(sig))
	}

	if fmt.hashFactory != nil {
		opts = append(opts, signed.WithHashFactory(fmt.hashFactory))
	}

	tx, err := signed.NewTransaction(m.Nonce, pubkey, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to create tx: %v", err)
	}

	return tx, nil
}
