package blockstore

import (
	"sync"

	"go.dedis.ch/duet/core/ordering/devnet/types"
	"golang.org/x/xerrors"
)

// InMemory is a block store that only stores the blocks in-memory which means
// they won't persist.
//
// - implements blockstore.BlockStore
type InMemory struct {
	sync.Mutex
	blocks []types.Block
}

// NewInMemory returns a new empty in-memory block store.
func NewInMemory() *InMemory {
	return &InMemory{
		blocks: make([]types.Block, 0),
	}
}

// Len implements blockstore.BlockStore. It returns the length of the store.
func (s *InMemory) Len() uint64 {
	s.Lock()
	defer s.Unlock()

	return uint64(len(s.blocks))
}

// Store implements blockstore.BlockStore. It stores the block only if it
// follows the latest block.
func (s *InMemory) Store(block types.Block) error {
	s.Lock()
	defer s.Unlock()

	err := checkNext(s.lastOrNil(), block)
	if err != nil {
		return err
	}

	s.blocks = append(s.blocks, block)

	return nil
}

// Get implements blockstore.BlockStore. It returns the block with the digest
// if it exists, otherwise an error.
func (s *InMemory) Get(id types.Digest) (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	for _, block := range s.blocks {
		if block.GetHash() == id {
			return block, nil
		}
	}

	return types.Block{}, xerrors.Errorf("'%v' not found: %w", id, ErrNoBlock)
}

// GetByIndex implements blockstore.BlockStore. It returns the block at the
// index if it exists, otherwise an error.
func (s *InMemory) GetByIndex(index uint64) (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	if index >= uint64(len(s.blocks)) {
		return types.Block{}, xerrors.Errorf("index %d not found: %w", index, ErrNoBlock)
	}

	return s.blocks[index], nil
}

// Last implements blockstore.BlockStore. It returns the latest block of the
// store.
func (s *InMemory) Last() (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	last := s.lastOrNil()
	if last == nil {
		return types.Block{}, xerrors.Errorf("store empty: %w", ErrNoBlock)
	}

	return *last, nil
}

func (s *InMemory) lastOrNil() *types.Block {
	if len(s.blocks) == 0 {
		return nil
	}

	return &s.blocks[len(s.blocks)-1]
}

// checkNext returns an error if the block does not follow the last one, or if
// it is not the first block when the last one is nil.
func checkNext(last *types.Block, block types.Block) error {
	if last == nil {
		if block.GetIndex() != 0 {
			return xerrors.Errorf("invalid index %d != 0", block.GetIndex())
		}

		return nil
	}

	if block.GetIndex() != last.GetIndex()+1 {
		return xerrors.Errorf("invalid index %d != %d", block.GetIndex(), last.GetIndex()+1)
	}

	if block.GetPrevious() != last.GetHash() {
		return xerrors.Errorf("mismatch previous '%v' != '%v'",
			block.GetPrevious(), last.GetHash())
	}

	return nil
}
