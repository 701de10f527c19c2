// Package json defines the JSON messages for the Ed25519 public keys and
// signatures.
package json

import (
	"go.dedis.ch/duet/crypto/ed25519"
	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

func init() {
	ed25519.RegisterPublicKeyFormat(serde.FormatJSON, pubkeyFormat{})
	ed25519.RegisterSignatureFormat(serde.FormatJSON, sigFormat{})
}

// Algorithm is a JSON message to identify the curve of a key or signature.
type Algorithm struct {
	Name string
}

// PublicKey is a JSON message for a public key.
type PublicKey struct {
	Algorithm
	Data []byte
}

// Signature is a JSON message for a signature.
type Signature struct {
	Algorithm
	Data []byte
}

// pubkeyFormat is the engine to encode and decode public keys in JSON.
//
// - implements serde.FormatEngine
type pubkeyFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the public
// key if appropriate, otherwise an error.
func (f pubkeyFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	pubkey, ok := msg.(ed25519.PublicKey)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	buffer, err := pubkey.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal point: %v", err)
	}

	m := PublicKey{
		Algorithm: Algorithm{Name: ed25519.Algorithm},
		Data:      buffer,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the public key from the
// JSON data if appropriate, otherwise it returns an error.
func (f pubkeyFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := PublicKey{}

	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal public key: %v", err)
	}

	pubkey, err := ed25519.NewPublicKey(m.Data)
	if err != nil {
		return nil, xerrors.Errorf("couldn't create public key: %v", err)
	}

	return pubkey, nil
}

// sigFormat is the engine to encode and decode signatures in JSON.
//
// - implements serde.FormatEngine
type sigFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// signature if appropriate, otherwise an error.
func (f sigFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	signature, ok := msg.(ed25519.Signature)
	if !ok {
		return nil, xerrors.Errorf("unsupported message of type '%T'", msg)
	}

	raw, _ := signature.MarshalBinary()

	m := Signature{
		Algorithm: Algorithm{Name: ed25519.Algorithm},
		Data:      raw,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the signature from the
// JSON data if appropriate, otherwise it returns an error.
func (f sigFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := Signature{}

	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("couldn't unmarshal signature: %v", err)
	}

	return ed25519.NewSignature(m.Data), nil
}
