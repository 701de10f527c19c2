// Package json defines the JSON message of the connection info of an instance.
package json

import (
	"go.dedis.ch/duet/backend"
	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

func init() {
	backend.RegisterInfoFormat(serde.FormatJSON, infoFormat{})
}

// ConnectionInfoJSON is the JSON message of a connection info.
type ConnectionInfoJSON struct {
	Backend  string
	Instance []byte
}

// infoFormat is the engine to encode and decode connection infos.
//
// - implements serde.FormatEngine
type infoFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// connection info if appropriate, otherwise an error.
func (infoFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	info, ok := msg.(backend.ConnectionInfo)
	if !ok {
		return nil, xerrors.Errorf("unsupported message '%T'", msg)
	}

	m := ConnectionInfoJSON{
		Backend:  info.GetBackend(),
		Instance: info.GetInstance(),
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the connection info from
// the JSON data if appropriate, otherwise an error.
func (infoFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := ConnectionInfoJSON{}

	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	if m.Backend == "" || len(m.Instance) == 0 {
		return nil, xerrors.New("incomplete connection info")
	}

	return backend.NewConnectionInfo(m.Backend, m.Instance), nil
}
