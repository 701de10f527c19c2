package crypto

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/xerrors"
)

// CryptographicRandomGenerator is cryptographically secure random generator.
//
// - implements io.Reader
type CryptographicRandomGenerator struct{}

// Read implements io.Reader. It fills the given buffer at its capacity as long
// as no error occurred.
func (crg CryptographicRandomGenerator) Read(buffer []byte) (int, error) {
	return rand.Read(buffer)
}

// RandomUint64 reads an unsigned 64 bits integer from the generator.
func RandomUint64(rand io.Reader) (uint64, error) {
	buffer := make([]byte, 8)

	_, err := io.ReadFull(rand, buffer)
	if err != nil {
		return 0, xerrors.Errorf("failed to read random bytes: %v", err)
	}

	return binary.LittleEndian.Uint64(buffer), nil
}
