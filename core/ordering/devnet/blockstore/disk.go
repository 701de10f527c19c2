// This file contains the implementation of a persistent block store. It stores
// the blocks to a key/value database so that the history of a session can be
// inspected after the process ends.

package blockstore

import (
	"encoding/binary"
	"sync"

	"go.dedis.ch/duet/core/ordering/devnet/types"
	"go.dedis.ch/duet/core/store/kv"
	"go.dedis.ch/duet/serde"
	"go.dedis.ch/duet/serde/json"
	"golang.org/x/xerrors"
)

type cachedData struct {
	sync.Mutex

	length  uint64
	last    *types.Block
	indices map[types.Digest]uint64
}

// InDisk is a persistent storage implementation for the blocks.
//
// - implements blockstore.BlockStore
type InDisk struct {
	*cachedData

	db      kv.DB
	bucket  []byte
	context serde.Context
	fac     types.BlockFactory
}

// NewDiskStore creates a new persistent storage. Load must be called to
// populate the cache when the database already contains blocks.
func NewDiskStore(db kv.DB, fac types.BlockFactory) *InDisk {
	return &InDisk{
		db:      db,
		bucket:  []byte("blocks"),
		context: json.NewContext(),
		fac:     fac,
		cachedData: &cachedData{
			indices: make(map[types.Digest]uint64),
		},
	}
}

// Len implements blockstore.BlockStore. It returns the number of blocks stored
// in the database.
func (s *InDisk) Len() uint64 {
	s.Lock()
	defer s.Unlock()

	return s.length
}

// Load reads the database to rebuild the cache.
func (s *InDisk) Load() error {
	s.Lock()
	defer s.Unlock()

	return s.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(s.bucket)
		if bucket == nil {
			return nil
		}

		err := bucket.Scan([]byte{}, func(key, value []byte) error {
			block, err := s.fac.BlockOf(s.context, value)
			if err != nil {
				return xerrors.Errorf("malformed block: %v", err)
			}

			s.length++
			s.last = &block
			s.indices[block.GetHash()] = block.GetIndex()

			return nil
		})

		if err != nil {
			return xerrors.Errorf("while scanning: %v", err)
		}

		return nil
	})
}

// Store implements blockstore.BlockStore. It stores the block in the database
// if it follows the latest block.
func (s *InDisk) Store(block types.Block) error {
	s.Lock()
	last := s.last
	s.Unlock()

	err := checkNext(last, block)
	if err != nil {
		return err
	}

	data, err := block.Serialize(s.context)
	if err != nil {
		return xerrors.Errorf("failed to serialize: %v", err)
	}

	return s.db.Update(func(tx kv.WritableTx) error {
		bucket, err := tx.GetBucketOrCreate(s.bucket)
		if err != nil {
			return xerrors.Errorf("bucket failed: %v", err)
		}

		index := block.GetIndex()

		err = bucket.Set(makeKey(index), data)
		if err != nil {
			return xerrors.Errorf("while writing: %v", err)
		}

		tx.OnCommit(func() {
			s.Lock()

			s.length++
			s.last = &block
			s.indices[block.GetHash()] = index

			s.Unlock()
		})

		return nil
	})
}

// Get implements blockstore.BlockStore. It loads the block with the given
// identifier if it exists, otherwise it returns an error.
func (s *InDisk) Get(id types.Digest) (types.Block, error) {
	s.Lock()
	index, found := s.indices[id]
	s.Unlock()

	if !found {
		return types.Block{}, xerrors.Errorf("'%v' not found: %w", id, ErrNoBlock)
	}

	return s.GetByIndex(index)
}

// GetByIndex implements blockstore.BlockStore. It returns the block associated
// to the index if it exists, otherwise it returns an error.
func (s *InDisk) GetByIndex(index uint64) (block types.Block, err error) {
	err = s.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(s.bucket)
		if bucket == nil {
			return xerrors.Errorf("index %d not found: %w", index, ErrNoBlock)
		}

		value := bucket.Get(makeKey(index))
		if len(value) == 0 {
			return xerrors.Errorf("index %d not found: %w", index, ErrNoBlock)
		}

		var err error
		block, err = s.fac.BlockOf(s.context, value)
		if err != nil {
			return xerrors.Errorf("malformed block: %v", err)
		}

		return nil
	})

	return
}

// Last implements blockstore.BlockStore. It returns the last block stored in
// the database.
func (s *InDisk) Last() (types.Block, error) {
	s.Lock()
	defer s.Unlock()

	if s.last == nil {
		return types.Block{}, xerrors.Errorf("store is empty: %w", ErrNoBlock)
	}

	return *s.last, nil
}

// makeKey returns the big-endian representation of the index so that the scan
// of the bucket follows the order of the chain.
func makeKey(index uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, index)

	return key
}
