// Package access defines the abstraction of the identities that sign the
// transactions of a session, and the helpers to compare and print them.
package access

import (
	"encoding"
	"encoding/hex"
	"strings"

	"go.dedis.ch/duet/serde"
)

// Identity is an abstraction to uniquely identify a signer. An account of a
// session is represented on the ledger by its identity.
type Identity interface {
	serde.Message
	encoding.TextMarshaler
	encoding.BinaryMarshaler

	// Equal returns true when the other object is the same identity.
	Equal(other interface{}) bool
}

// Compile returns a compacted rule or key from the string segments.
func Compile(segments ...string) string {
	return strings.Join(segments, ":")
}

// Address returns a printable address of the identity, or "unknown" when the
// identity cannot be marshaled.
func Address(ident Identity) string {
	if ident == nil {
		return "unknown"
	}

	data, err := ident.MarshalBinary()
	if err != nil {
		return "unknown"
	}

	return hex.EncodeToString(data)
}
