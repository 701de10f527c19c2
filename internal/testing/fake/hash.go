package fake

import (
	"hash"

	"go.dedis.ch/duet/crypto"
)

// Hash is a fake implementation of hash.Hash that can fail after a given
// number of writes.
//
// - implements hash.Hash
type Hash struct {
	hash.Hash
	delay int
	err   error
	Call  *Call
}

// NewBadHash returns a hash that fails at the first write.
func NewBadHash() *Hash {
	return &Hash{err: fakeErr}
}

// NewBadHashWithDelay returns a hash that fails after the given number of
// successful writes.
func NewBadHashWithDelay(delay int) *Hash {
	return &Hash{err: fakeErr, delay: delay}
}

// Write implements hash.Hash.
func (h *Hash) Write(data []byte) (int, error) {
	h.Call.Add(data)

	if h.delay > 0 {
		h.delay--
		return len(data), nil
	}

	if h.err != nil {
		return 0, h.err
	}

	return len(data), nil
}

// Size implements hash.Hash.
func (h *Hash) Size() int {
	return 32
}

// Sum implements hash.Hash.
func (h *Hash) Sum([]byte) []byte {
	return make([]byte, 32)
}

// HashFactory is a fake implementation of crypto.HashFactory.
//
// - implements crypto.HashFactory
type HashFactory struct {
	hash *Hash
}

// NewHashFactory returns a factory that always returns the given hash.
func NewHashFactory(h *Hash) HashFactory {
	return HashFactory{hash: h}
}

// New implements crypto.HashFactory.
func (f HashFactory) New() hash.Hash {
	return f.hash
}

var _ crypto.HashFactory = HashFactory{}
