package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/internal/testing/fake"
	"go.dedis.ch/duet/serde"
)

const (
	badFormat  = serde.Format("BAD")
	typeFormat = serde.Format("BAD_TYPE")
)

func init() {
	RegisterInfoFormat(serde.FormatJSON, fake.Format{Msg: ConnectionInfo{}, Result: []byte("{}")})
	RegisterInfoFormat(badFormat, fake.NewBadFormat())
	RegisterInfoFormat(typeFormat, fake.Format{Msg: fake.Message{}})
}

func TestConnectionInfo_Getters(t *testing.T) {
	info := NewConnectionInfo("example", []byte{1, 2})

	require.Equal(t, "example", info.GetBackend())
	require.Equal(t, []byte{1, 2}, info.GetInstance())
}

func TestConnectionInfo_String(t *testing.T) {
	info := NewConnectionInfo("go.dedis.ch/duet.NFT", []byte{0xab, 0xcd})

	require.Equal(t, "go.dedis.ch/duet.NFT@abcd", info.String())

	parsed, err := ParseConnectionInfo(info.String())
	require.NoError(t, err)
	require.Equal(t, info, parsed)
}

func TestParseConnectionInfo(t *testing.T) {
	_, err := ParseConnectionInfo("abcd")
	require.EqualError(t, err, "malformed connection info 'abcd'")

	_, err = ParseConnectionInfo("@abcd")
	require.EqualError(t, err, "malformed connection info '@abcd'")

	_, err = ParseConnectionInfo("example@zz")
	require.EqualError(t, err, "invalid instance: encoding/hex: invalid byte: U+007A 'z'")

	_, err = ParseConnectionInfo("example@")
	require.EqualError(t, err, "invalid instance: empty")
}

func TestConnectionInfo_Serialize(t *testing.T) {
	info := NewConnectionInfo("example", []byte{1})

	data, err := info.Serialize(fake.NewContext())
	require.NoError(t, err)
	require.Equal(t, []byte("{}"), data)

	_, err = info.Serialize(newContext(badFormat))
	require.EqualError(t, err, fake.Err("encoding failed"))
}

func TestInfoFactory_Deserialize(t *testing.T) {
	factory := NewInfoFactory()

	msg, err := factory.Deserialize(fake.NewContext(), nil)
	require.NoError(t, err)
	require.IsType(t, ConnectionInfo{}, msg)

	_, err = factory.Deserialize(newContext(badFormat), nil)
	require.EqualError(t, err, fake.Err("decoding failed"))

	_, err = factory.Deserialize(newContext(typeFormat), nil)
	require.EqualError(t, err, "invalid connection info 'fake.Message'")
}

// -----------------------------------------------------------------------------
// Utility functions

func newContext(format serde.Format) serde.Context {
	return serde.NewContext(fake.ContextEngine{Format: format})
}
