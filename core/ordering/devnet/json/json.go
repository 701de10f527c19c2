// Package json defines the JSON messages of the development ledger blocks.
package json

import (
	"encoding/json"

	"go.dedis.ch/duet/core/ordering/devnet/types"
	"go.dedis.ch/duet/core/validation"
	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

func init() {
	types.RegisterBlockFormat(serde.FormatJSON, blockFormat{})
}

// BlockJSON is the JSON message of a block.
type BlockJSON struct {
	Index    uint64
	Previous []byte
	Result   json.RawMessage
}

// blockFormat is the format engine to encode and decode blocks.
//
// - implements serde.FormatEngine
type blockFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the block
// if appropriate, otherwise an error.
func (f blockFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	block, ok := msg.(types.Block)
	if !ok {
		return nil, xerrors.Errorf("unsupported message '%T'", msg)
	}

	res, err := block.GetResult().Serialize(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to serialize result: %v", err)
	}

	previous := block.GetPrevious()

	m := BlockJSON{
		Index:    block.GetIndex(),
		Previous: previous[:],
		Result:   res,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the block from the JSON
// data if appropriate, otherwise an error. The digest is computed again from
// the content.
func (f blockFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := BlockJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	factory := ctx.GetFactory(types.ResultKey{})

	fac, ok := factory.(validation.ResultFactory)
	if !ok {
		return nil, xerrors.Errorf("invalid result factory '%T'", factory)
	}

	res, err := fac.ResultOf(ctx, m.Result)
	if err != nil {
		return nil, xerrors.Errorf("failed to deserialize result: %v", err)
	}

	previous := types.Digest{}
	copy(previous[:], m.Previous)

	block, err := types.NewBlock(res, types.WithIndex(m.Index), types.WithPrevious(previous))
	if err != nil {
		return nil, xerrors.Errorf("failed to create block: %v", err)
	}

	return block, nil
}
