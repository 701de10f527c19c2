package backend

import (
	"encoding/hex"
	"strings"

	"go.dedis.ch/duet/serde"
	"go.dedis.ch/duet/serde/registry"
	"golang.org/x/xerrors"
)

var infoFormats = registry.NewSimpleRegistry()

// RegisterInfoFormat registers the engine for the provided format.
func RegisterInfoFormat(f serde.Format, e serde.FormatEngine) {
	infoFormats.Register(f, e)
}

// ConnectionInfo is the descriptor of an instance that a participant hands
// over to the others so that they can attach to it.
//
// - implements serde.Message
// - implements fmt.Stringer
type ConnectionInfo struct {
	backend  string
	instance []byte
}

// NewConnectionInfo returns the connection info of the instance of the
// backend.
func NewConnectionInfo(backend string, instance []byte) ConnectionInfo {
	return ConnectionInfo{
		backend:  backend,
		instance: instance,
	}
}

// ParseConnectionInfo returns the connection info from its text form.
func ParseConnectionInfo(text string) (ConnectionInfo, error) {
	sep := strings.LastIndex(text, "@")
	if sep <= 0 {
		return ConnectionInfo{}, xerrors.Errorf("malformed connection info '%s'", text)
	}

	instance, err := hex.DecodeString(text[sep+1:])
	if err != nil {
		return ConnectionInfo{}, xerrors.Errorf("invalid instance: %v", err)
	}

	if len(instance) == 0 {
		return ConnectionInfo{}, xerrors.New("invalid instance: empty")
	}

	return NewConnectionInfo(text[:sep], instance), nil
}

// GetBackend returns the name of the backend of the instance.
func (info ConnectionInfo) GetBackend() string {
	return info.backend
}

// GetInstance returns the identifier of the instance.
func (info ConnectionInfo) GetInstance() []byte {
	return append([]byte{}, info.instance...)
}

// Serialize implements serde.Message. It returns the serialized data of the
// connection info.
func (info ConnectionInfo) Serialize(ctx serde.Context) ([]byte, error) {
	format := infoFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, info)
	if err != nil {
		return nil, xerrors.Errorf("encoding failed: %v", err)
	}

	return data, nil
}

// String implements fmt.Stringer. It returns the text form of the connection
// info, which can be parsed back.
func (info ConnectionInfo) String() string {
	return info.backend + "@" + hex.EncodeToString(info.instance)
}

// InfoFactory is a factory to deserialize connection infos.
//
// - implements serde.Factory
type InfoFactory struct{}

// NewInfoFactory returns a new factory.
func NewInfoFactory() InfoFactory {
	return InfoFactory{}
}

// Deserialize implements serde.Factory. It populates the connection info from
// the data if appropriate, otherwise it returns an error.
func (f InfoFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.InfoOf(ctx, data)
}

// InfoOf returns the connection info from the data if appropriate, otherwise it
// returns an error.
func (f InfoFactory) InfoOf(ctx serde.Context, data []byte) (ConnectionInfo, error) {
	format := infoFormats.Get(ctx.GetFormat())

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return ConnectionInfo{}, xerrors.Errorf("decoding failed: %v", err)
	}

	info, ok := msg.(ConnectionInfo)
	if !ok {
		return ConnectionInfo{}, xerrors.Errorf("invalid connection info '%T'", msg)
	}

	return info, nil
}
