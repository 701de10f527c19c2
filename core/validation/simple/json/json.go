// Package json defines the JSON messages of the validation results, as they
// are stored in the blocks.
package json

import (
	"encoding/json"

	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/validation/simple"
	"go.dedis.ch/duet/serde"
	"golang.org/x/xerrors"
)

func init() {
	simple.RegisterTransactionResultFormat(serde.FormatJSON, txResFormat{})
	simple.RegisterResultFormat(serde.FormatJSON, resFormat{})
}

// TransactionResultJSON is the JSON message for transaction results.
type TransactionResultJSON struct {
	Transaction json.RawMessage
	Accepted    bool
	Reason      string `json:",omitempty"`
}

// ResultJSON is the JSON message for results.
type ResultJSON struct {
	Results []json.RawMessage
}

// txResFormat is the engine to encode and decode transaction results.
//
// - implements serde.FormatEngine
type txResFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the
// transaction result if appropriate, otherwise an error.
func (f txResFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	txres, ok := msg.(simple.TransactionResult)
	if !ok {
		return nil, xerrors.Errorf("unsupported message '%T'", msg)
	}

	tx, err := txres.GetTransaction().Serialize(ctx)
	if err != nil {
		return nil, xerrors.Errorf("failed to serialize tx: %v", err)
	}

	accepted, reason := txres.GetStatus()

	m := TransactionResultJSON{
		Transaction: tx,
		Accepted:    accepted,
		Reason:      reason,
	}

	data, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return data, nil
}

// Decode implements serde.FormatEngine. It populates the transaction result
// from the JSON data if appropriate, otherwise an error.
func (f txResFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := TransactionResultJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	factory := ctx.GetFactory(simple.TransactionKey{})

	fac, ok := factory.(txn.Factory)
	if !ok {
		return nil, xerrors.Errorf("invalid transaction factory '%T'", factory)
	}

	tx, err := fac.TransactionOf(ctx, m.Transaction)
	if err != nil {
		return nil, xerrors.Errorf("failed to deserialize tx: %v", err)
	}

	res := simple.NewTransactionResult(tx, m.Accepted, m.Reason)

	return res, nil
}

// resFormat is the engine to encode and decode validation results.
//
// - implements serde.FormatEngine
type resFormat struct{}

// Encode implements serde.FormatEngine. It returns the JSON data of the result
// if appropriate, otherwise an error.
func (f resFormat) Encode(ctx serde.Context, msg serde.Message) ([]byte, error) {
	res, ok := msg.(simple.Result)
	if !ok {
		return nil, xerrors.Errorf("unsupported message '%T'", msg)
	}

	results := res.GetTransactionResults()
	raws := make([]json.RawMessage, len(results))

	for i, res := range results {
		buffer, err := res.Serialize(ctx)
		if err != nil {
			return nil, xerrors.Errorf("failed to serialize tx result: %v", err)
		}

		raws[i] = buffer
	}

	m := ResultJSON{
		Results: raws,
	}

	buffer, err := ctx.Marshal(m)
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal: %v", err)
	}

	return buffer, nil
}

// Decode implements serde.FormatEngine. It populates the result from the JSON
// data if appropriate, otherwise an error.
func (f resFormat) Decode(ctx serde.Context, data []byte) (serde.Message, error) {
	m := ResultJSON{}
	err := ctx.Unmarshal(data, &m)
	if err != nil {
		return nil, xerrors.Errorf("failed to unmarshal: %v", err)
	}

	factory := ctx.GetFactory(simple.ResultKey{})
	if factory == nil {
		return nil, xerrors.New("missing transaction result factory")
	}

	results := make([]simple.TransactionResult, len(m.Results))
	for i, raw := range m.Results {
		msg, err := factory.Deserialize(ctx, raw)
		if err != nil {
			return nil, xerrors.Errorf("failed to deserialize tx result: %v", err)
		}

		res, ok := msg.(simple.TransactionResult)
		if !ok {
			return nil, xerrors.Errorf("invalid transaction result '%T'", msg)
		}

		results[i] = res
	}

	return simple.NewResult(results), nil
}
