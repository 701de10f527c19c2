package simple

import (
	"encoding/binary"
	"io"

	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/validation"
	"go.dedis.ch/duet/serde"
	"go.dedis.ch/duet/serde/registry"
	"golang.org/x/xerrors"
)

var (
	txResFormats = registry.NewSimpleRegistry()
	resFormats   = registry.NewSimpleRegistry()
)

// RegisterTransactionResultFormat registers the engine for the provided format.
func RegisterTransactionResultFormat(f serde.Format, e serde.FormatEngine) {
	txResFormats.Register(f, e)
}

// RegisterResultFormat registers the engine for the provided format.
func RegisterResultFormat(f serde.Format, e serde.FormatEngine) {
	resFormats.Register(f, e)
}

// TransactionResult is the outcome of a transaction in a block. A refused
// transaction keeps the reason given by the contract so that the participant
// that submitted it can report it.
//
// - implements validation.TransactionResult
type TransactionResult struct {
	tx       txn.Transaction
	accepted bool
	reason   string
}

// NewTransactionResult returns the result of the transaction.
func NewTransactionResult(tx txn.Transaction, accepted bool, reason string) TransactionResult {
	return TransactionResult{
		tx:       tx,
		accepted: accepted,
		reason:   reason,
	}
}

// GetTransaction implements validation.TransactionResult.
func (res TransactionResult) GetTransaction() txn.Transaction {
	return res.tx
}

// GetStatus implements validation.TransactionResult. The reason is empty for an
// accepted transaction.
func (res TransactionResult) GetStatus() (bool, string) {
	return res.accepted, res.reason
}

// Serialize implements serde.Message.
func (res TransactionResult) Serialize(ctx serde.Context) ([]byte, error) {
	format := txResFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, res)
	if err != nil {
		return nil, xerrors.Errorf("encoding failed: %v", err)
	}

	return data, nil
}

// TransactionKey is the key of the transaction factory.
type TransactionKey struct{}

// TransactionResultFactory deserializes the transaction results.
//
// - implements serde.Factory
type TransactionResultFactory struct {
	fac txn.Factory
}

// NewTransactionResultFactory returns a factory that decodes the transactions
// with the given factory.
func NewTransactionResultFactory(f txn.Factory) TransactionResultFactory {
	return TransactionResultFactory{
		fac: f,
	}
}

// Deserialize implements serde.Factory.
func (f TransactionResultFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	format := txResFormats.Get(ctx.GetFormat())

	ctx = serde.WithFactory(ctx, TransactionKey{}, f.fac)

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("decoding failed: %v", err)
	}

	return msg, nil
}

// Result is the payload of a block: the results of its transactions in the
// order of the block.
//
// - implements validation.Result
type Result struct {
	txs []TransactionResult
}

// NewResult returns the result of a block.
func NewResult(results []TransactionResult) Result {
	return Result{
		txs: results,
	}
}

// GetTransactionResults implements validation.Result.
func (r Result) GetTransactionResults() []validation.TransactionResult {
	res := make([]validation.TransactionResult, len(r.txs))
	for i, txres := range r.txs {
		res[i] = txres
	}

	return res
}

// Fingerprint implements serde.Fingerprinter. The refusal reasons are part of
// the fingerprint so that the digest of a block covers what was reported to
// the participants.
func (r Result) Fingerprint(w io.Writer) error {
	for _, res := range r.txs {
		err := res.tx.Fingerprint(w)
		if err != nil {
			return xerrors.Errorf("couldn't fingerprint tx: %v", err)
		}

		if res.accepted {
			_, err = w.Write([]byte{1})
			if err != nil {
				return xerrors.Errorf("couldn't write accepted: %v", err)
			}

			continue
		}

		buffer := make([]byte, 5, 5+len(res.reason))
		binary.LittleEndian.PutUint32(buffer[1:], uint32(len(res.reason)))
		buffer = append(buffer, res.reason...)

		_, err = w.Write(buffer)
		if err != nil {
			return xerrors.Errorf("couldn't write refusal: %v", err)
		}
	}

	return nil
}

// Serialize implements serde.Message.
func (r Result) Serialize(ctx serde.Context) ([]byte, error) {
	format := resFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, r)
	if err != nil {
		return nil, xerrors.Errorf("encoding failed: %v", err)
	}

	return data, nil
}

// Refused returns the results of the refused transactions of a block result.
func Refused(res validation.Result) []validation.TransactionResult {
	if res == nil {
		return nil
	}

	var refused []validation.TransactionResult

	for _, txres := range res.GetTransactionResults() {
		accepted, _ := txres.GetStatus()
		if !accepted {
			refused = append(refused, txres)
		}
	}

	return refused
}

// ResultKey is the key of the transaction result factory.
type ResultKey struct{}

// ResultFactory deserializes the block results.
//
// - implements validation.ResultFactory
type ResultFactory struct {
	fac serde.Factory
}

// NewResultFactory returns a factory that decodes the transactions with the
// given factory.
func NewResultFactory(f txn.Factory) ResultFactory {
	return ResultFactory{
		fac: NewTransactionResultFactory(f),
	}
}

// Deserialize implements serde.Factory.
func (f ResultFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.ResultOf(ctx, data)
}

// ResultOf implements validation.ResultFactory.
func (f ResultFactory) ResultOf(ctx serde.Context, data []byte) (validation.Result, error) {
	format := resFormats.Get(ctx.GetFormat())

	ctx = serde.WithFactory(ctx, ResultKey{}, f.fac)

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return nil, xerrors.Errorf("decoding failed: %v", err)
	}

	res, ok := msg.(Result)
	if !ok {
		return nil, xerrors.Errorf("invalid result type '%T'", msg)
	}

	return res, nil
}
