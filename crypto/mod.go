// Package crypto defines the cryptographic primitives used to identify the
// accounts of a session and to sign their transactions.
package crypto

import (
	"encoding"
	"fmt"
	"hash"

	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/serde"
)

// HashFactory is an interface to produce a hash digest.
type HashFactory interface {
	New() hash.Hash
}

// PublicKey is a public identity that can be used to verify a signature.
type PublicKey interface {
	access.Identity
	fmt.Stringer

	// Verify returns nil if the signature matches the message, otherwise an
	// error.
	Verify(msg []byte, sig Signature) error
}

// PublicKeyFactory is a factory to deserialize public keys.
type PublicKeyFactory interface {
	serde.Factory

	PublicKeyOf(serde.Context, []byte) (PublicKey, error)

	// FromBytes returns the public key unmarshaled from the binary form.
	FromBytes(data []byte) (PublicKey, error)
}

// Signature is a verifiable element for a unique message.
type Signature interface {
	serde.Message
	encoding.BinaryMarshaler

	Equal(other Signature) bool
}

// SignatureFactory is a factory to deserialize signatures.
type SignatureFactory interface {
	serde.Factory

	SignatureOf(serde.Context, []byte) (Signature, error)
}

// Signer provides the primitives to sign messages.
type Signer interface {
	GetPublicKey() PublicKey

	Sign(msg []byte) (Signature, error)
}
