package crypto

import (
	"crypto/sha256"
	"hash"

	"golang.org/x/crypto/sha3"
)

// HashAlgorithm is the identifier of a supported hash function.
type HashAlgorithm int

const (
	// Sha256 is the SHA-2 256 bits algorithm. It is used for transaction
	// identifiers.
	Sha256 HashAlgorithm = iota

	// Sha3_256 is the SHA-3 256 bits algorithm. It is used for block digests.
	Sha3_256
)

// hashFactory is a hash factory that is using SHA algorithms.
//
// - implements crypto.HashFactory
type hashFactory struct {
	hashType HashAlgorithm
}

// NewSha256Factory returns a new instance of the factory for SHA-2 256.
func NewSha256Factory() HashFactory {
	return hashFactory{Sha256}
}

// NewHashFactory returns a new instance of the factory for the algorithm.
func NewHashFactory(a HashAlgorithm) HashFactory {
	return hashFactory{a}
}

// New implements crypto.HashFactory. It returns a new Hash instance.
func (f hashFactory) New() hash.Hash {
	switch f.hashType {
	case Sha256:
		return sha256.New()
	case Sha3_256:
		return sha3.New256()
	default:
		panic("unknown hash type")
	}
}
