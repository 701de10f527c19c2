package fake

import (
	"bytes"

	"go.dedis.ch/duet/crypto"
	"go.dedis.ch/duet/serde"
)

// PublicKey is a fake implementation of crypto.PublicKey.
//
// - implements crypto.PublicKey
type PublicKey struct {
	Data      []byte
	err       error
	verifyErr error
}

// NewBadPublicKey returns a public key that fails to marshal.
func NewBadPublicKey() PublicKey {
	return PublicKey{err: fakeErr}
}

// NewInvalidPublicKey returns a public key that marshals but refuses every
// signature.
func NewInvalidPublicKey() PublicKey {
	return PublicKey{verifyErr: fakeErr}
}

// Verify implements crypto.PublicKey.
func (pk PublicKey) Verify([]byte, crypto.Signature) error {
	return pk.verifyErr
}

// Equal implements crypto.PublicKey.
func (pk PublicKey) Equal(other interface{}) bool {
	o, ok := other.(PublicKey)
	return ok && bytes.Equal(o.Data, pk.Data)
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (pk PublicKey) MarshalBinary() ([]byte, error) {
	return append([]byte{}, pk.Data...), pk.err
}

// MarshalText implements encoding.TextMarshaler.
func (pk PublicKey) MarshalText() ([]byte, error) {
	return []byte("fake.PublicKey"), pk.err
}

// Serialize implements serde.Message.
func (pk PublicKey) Serialize(serde.Context) ([]byte, error) {
	return []byte("{}"), pk.err
}

// String implements fmt.Stringer.
func (pk PublicKey) String() string {
	return "fake.PublicKey"
}

// Signature is a fake implementation of crypto.Signature.
//
// - implements crypto.Signature
type Signature struct {
	err error
}

// NewBadSignature returns a signature that fails to marshal.
func NewBadSignature() Signature {
	return Signature{err: fakeErr}
}

// Equal implements crypto.Signature.
func (s Signature) Equal(other crypto.Signature) bool {
	_, ok := other.(Signature)
	return ok
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (s Signature) MarshalBinary() ([]byte, error) {
	return []byte{}, s.err
}

// Serialize implements serde.Message.
func (s Signature) Serialize(serde.Context) ([]byte, error) {
	return []byte("{}"), s.err
}

// Signer is a fake implementation of crypto.Signer.
//
// - implements crypto.Signer
type Signer struct {
	PublicKey PublicKey
	err       error
}

// NewBadSigner returns a signer that fails to sign.
func NewBadSigner() Signer {
	return Signer{err: fakeErr}
}

// GetPublicKey implements crypto.Signer.
func (s Signer) GetPublicKey() crypto.PublicKey {
	return s.PublicKey
}

// Sign implements crypto.Signer.
func (s Signer) Sign([]byte) (crypto.Signature, error) {
	return Signature{}, s.err
}
