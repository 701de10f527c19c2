// Package types defines the block produced by the development ledger.
package types

import (
	"encoding/binary"
	"fmt"
	"io"

	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/validation"
	"go.dedis.ch/duet/crypto"
	"go.dedis.ch/duet/serde"
	"go.dedis.ch/duet/serde/registry"
	"golang.org/x/xerrors"
)

var blockFormats = registry.NewSimpleRegistry()

// RegisterBlockFormat registers the engine for the provided format.
func RegisterBlockFormat(f serde.Format, e serde.FormatEngine) {
	blockFormats.Register(f, e)
}

// Digest defines the result of a fingerprint. It expects a digest of 256 bits.
type Digest [32]byte

// String implements fmt.Stringer. It returns a short hexadecimal form of the
// digest.
func (d Digest) String() string {
	return fmt.Sprintf("%x", d[:])[:8]
}

// Block is a block of the chain. It links to the previous one with its digest
// and holds the result of the validation of its transactions.
//
// - implements serde.Message
// - implements serde.Fingerprinter
type Block struct {
	digest   Digest
	index    uint64
	previous Digest
	result   validation.Result
}

type blockTemplate struct {
	Block
	hashFactory crypto.HashFactory
}

// BlockOption is the type of option to set some fields of a block.
type BlockOption func(*blockTemplate)

// WithIndex is an option to set the index of the block.
func WithIndex(index uint64) BlockOption {
	return func(tmpl *blockTemplate) {
		tmpl.index = index
	}
}

// WithPrevious is an option to set the digest of the previous block.
func WithPrevious(previous Digest) BlockOption {
	return func(tmpl *blockTemplate) {
		tmpl.previous = previous
	}
}

// WithHashFactory is an option to set the hash factory used to compute the
// digest.
func WithHashFactory(fac crypto.HashFactory) BlockOption {
	return func(tmpl *blockTemplate) {
		tmpl.hashFactory = fac
	}
}

// NewBlock creates a new block with the validation result.
func NewBlock(res validation.Result, opts ...BlockOption) (Block, error) {
	tmpl := blockTemplate{
		Block: Block{
			result: res,
		},
		hashFactory: crypto.NewHashFactory(crypto.Sha3_256),
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	h := tmpl.hashFactory.New()
	err := tmpl.Fingerprint(h)
	if err != nil {
		return tmpl.Block, xerrors.Errorf("fingerprint failed: %v", err)
	}

	copy(tmpl.digest[:], h.Sum(nil))

	return tmpl.Block, nil
}

// GetHash returns the digest of the block.
func (b Block) GetHash() Digest {
	return b.digest
}

// GetIndex returns the index of the block. The first block has the index 0.
func (b Block) GetIndex() uint64 {
	return b.index
}

// GetPrevious returns the digest of the previous block.
func (b Block) GetPrevious() Digest {
	return b.previous
}

// GetResult returns the validation result of the block.
func (b Block) GetResult() validation.Result {
	return b.result
}

// GetTransactions is a helper to extract the transactions from the validation
// result.
func (b Block) GetTransactions() []txn.Transaction {
	results := b.result.GetTransactionResults()
	txs := make([]txn.Transaction, len(results))

	for i, res := range results {
		txs[i] = res.GetTransaction()
	}

	return txs
}

// Fingerprint implements serde.Fingerprinter. It deterministically writes a
// binary representation of the block into the writer.
func (b Block) Fingerprint(w io.Writer) error {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, b.index)

	_, err := w.Write(buffer)
	if err != nil {
		return xerrors.Errorf("couldn't write index: %v", err)
	}

	_, err = w.Write(b.previous[:])
	if err != nil {
		return xerrors.Errorf("couldn't write previous: %v", err)
	}

	err = b.result.Fingerprint(w)
	if err != nil {
		return xerrors.Errorf("result fingerprint failed: %v", err)
	}

	return nil
}

// Serialize implements serde.Message. It returns the serialized data of the
// block.
func (b Block) Serialize(ctx serde.Context) ([]byte, error) {
	format := blockFormats.Get(ctx.GetFormat())

	data, err := format.Encode(ctx, b)
	if err != nil {
		return nil, xerrors.Errorf("encoding failed: %v", err)
	}

	return data, nil
}

// ResultKey is the key for the validation result factory.
type ResultKey struct{}

// BlockFactory is a factory to deserialize block messages.
//
// - implements serde.Factory
type BlockFactory struct {
	resFac validation.ResultFactory
}

// NewBlockFactory creates a new block factory.
func NewBlockFactory(fac validation.ResultFactory) BlockFactory {
	return BlockFactory{
		resFac: fac,
	}
}

// Deserialize implements serde.Factory. It populates the block from the data if
// appropriate, otherwise it returns an error.
func (f BlockFactory) Deserialize(ctx serde.Context, data []byte) (serde.Message, error) {
	return f.BlockOf(ctx, data)
}

// BlockOf returns the block populated from the data if appropriate, otherwise
// it returns an error.
func (f BlockFactory) BlockOf(ctx serde.Context, data []byte) (Block, error) {
	format := blockFormats.Get(ctx.GetFormat())

	ctx = serde.WithFactory(ctx, ResultKey{}, f.resFac)

	msg, err := format.Decode(ctx, data)
	if err != nil {
		return Block{}, xerrors.Errorf("decoding failed: %v", err)
	}

	block, ok := msg.(Block)
	if !ok {
		return Block{}, xerrors.Errorf("invalid block '%T'", msg)
	}

	return block, nil
}
