// Package devnet implements a single-node ordering service for development.
//
// The service runs one loop that gathers the transactions of the pool,
// validates them on a staged copy of the state, stores the resulting block and
// then commits the new state before notifying the watchers. There is no
// consensus and no network: every participant of a session lives in the same
// process and submits its transactions directly.
package devnet

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/duet"
	"go.dedis.ch/duet/core"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/ordering"
	"go.dedis.ch/duet/core/ordering/devnet/blockstore"
	"go.dedis.ch/duet/core/ordering/devnet/types"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/store/mem"
	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/txn/pool"
	"go.dedis.ch/duet/core/validation"
	"go.dedis.ch/duet/core/validation/simple"
	"golang.org/x/xerrors"
)

// DefaultGatherTimeout is the default amount of time the service waits for
// more transactions once the first one of a round has arrived.
const DefaultGatherTimeout = 5 * time.Millisecond

// ErrClosed is returned when the service is closed while a caller waits for a
// transaction to be included.
var ErrClosed = xerrors.New("service closed")

var (
	promBlocks = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duet_devnet_blocks_total",
		Help: "total number of blocks",
	})

	promTxs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "duet_devnet_transactions_block",
		Help:    "total number of transactions in the last block",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20, 30, 50, 100},
	})

	promRejectedTxs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "duet_devnet_transactions_rejected_block",
		Help:    "total number of rejected transactions in the last block",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20, 30, 50, 100},
	})
)

func init() {
	duet.PromCollectors = append(duet.PromCollectors, promBlocks, promTxs,
		promRejectedTxs)
}

// Service is a single-node ordering service.
//
// - implements ordering.Service
type Service struct {
	sync.RWMutex

	logger        zerolog.Logger
	pool          pool.Pool
	val           validation.Service
	blocks        blockstore.BlockStore
	tree          store.Trie
	watcher       core.Observable
	gatherTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type serviceTemplate struct {
	blocks        blockstore.BlockStore
	tree          store.Trie
	gatherTimeout time.Duration
}

// ServiceOption is the type of option to set some fields of the service.
type ServiceOption func(*serviceTemplate)

// WithBlockStore is an option to set the block store. Blocks are only kept in
// memory by default.
func WithBlockStore(bs blockstore.BlockStore) ServiceOption {
	return func(tmpl *serviceTemplate) {
		tmpl.blocks = bs
	}
}

// WithTree is an option to set the initial state of the ledger.
func WithTree(tree store.Trie) ServiceOption {
	return func(tmpl *serviceTemplate) {
		tmpl.tree = tree
	}
}

// WithGatherTimeout is an option to set the amount of time the service waits
// for more transactions after the first one of a round.
func WithGatherTimeout(d time.Duration) ServiceOption {
	return func(tmpl *serviceTemplate) {
		tmpl.gatherTimeout = d
	}
}

// NewService creates a new service and starts the block production loop. The
// service must be closed to stop the loop.
func NewService(p pool.Pool, val validation.Service, opts ...ServiceOption) *Service {
	tmpl := serviceTemplate{
		blocks:        blockstore.NewInMemory(),
		tree:          mem.NewTrie(),
		gatherTimeout: DefaultGatherTimeout,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Service{
		logger:        duet.Logger.With().Str("service", "devnet").Logger(),
		pool:          p,
		val:           val,
		blocks:        tmpl.blocks,
		tree:          tmpl.tree,
		watcher:       core.NewWatcher(),
		gatherTimeout: tmpl.gatherTimeout,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	promBlocks.Set(float64(s.blocks.Len()))

	go s.main()

	return s
}

// GetStore implements ordering.Service. It returns the current state of the
// ledger. The state returned never changes, a new block produces a new one.
func (s *Service) GetStore() store.Readable {
	s.RLock()
	defer s.RUnlock()

	return s.tree
}

// GetBlocks returns the block store of the service.
func (s *Service) GetBlocks() blockstore.BlockStore {
	return s.blocks
}

// GetNonce returns the next nonce expected for the identity. It implements the
// client of the signed transaction manager.
func (s *Service) GetNonce(ident access.Identity) (uint64, error) {
	nonce, err := s.val.GetNonce(s.GetStore(), ident)
	if err != nil {
		return 0, xerrors.Errorf("validation: %v", err)
	}

	return nonce, nil
}

// Watch implements ordering.Service. It returns a channel populated with the
// events of the new blocks. The channel is closed when the context is done.
func (s *Service) Watch(ctx context.Context) <-chan ordering.Event {
	obs := &observer{
		ctx: ctx,
		ch:  make(chan ordering.Event, 1),
	}

	s.watcher.Add(obs)

	go func() {
		<-ctx.Done()
		s.watcher.Remove(obs)
		close(obs.ch)
	}()

	return obs.ch
}

// Submit adds the transaction to the pool and waits for it to be included in a
// block. It returns the result of the transaction, which can be a refusal.
func (s *Service) Submit(ctx context.Context, tx txn.Transaction) (validation.TransactionResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if ctx.Err() != nil {
		return nil, xerrors.Errorf("transaction not included: %w", ctx.Err())
	}

	events := s.Watch(ctx)

	err := s.pool.Add(tx)
	if err != nil {
		return nil, xerrors.Errorf("pool: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, xerrors.Errorf("transaction not included: %w", ctx.Err())
		case <-s.done:
			return nil, xerrors.Errorf("transaction not included: %w", ErrClosed)
		case evt := <-events:
			for _, res := range evt.Transactions {
				if bytes.Equal(res.GetTransaction().GetID(), tx.GetID()) {
					return res, nil
				}
			}
		}
	}
}

// Done returns a channel closed once the block production loop has stopped.
func (s *Service) Done() <-chan struct{} {
	return s.done
}

// Close implements ordering.Service. It stops the block production loop and
// waits for the current round to end.
func (s *Service) Close() error {
	s.cancel()

	err := s.pool.Close()
	if err != nil {
		return xerrors.Errorf("pool: %v", err)
	}

	<-s.done

	return nil
}

func (s *Service) main() {
	defer close(s.done)

	s.logger.Info().Uint64("blocks", s.blocks.Len()).Msg("ledger has started")

	for {
		txs := s.pool.Gather(s.ctx, pool.Config{Min: 1})
		if s.ctx.Err() != nil {
			s.logger.Info().Msg("ledger has stopped")
			return
		}

		if len(txs) == 0 {
			continue
		}

		if s.gatherTimeout > 0 {
			select {
			case <-time.After(s.gatherTimeout):
			case <-s.ctx.Done():
				return
			}

			// Pick the transactions that arrived in the meantime.
			txs = s.pool.Gather(s.ctx, pool.Config{Min: 1})
		}

		err := s.doRound(txs)
		if err != nil {
			s.logger.Err(err).Msg("round failed")
		}
	}
}

func (s *Service) doRound(txs []txn.Transaction) error {
	sortTransactions(txs)

	s.Lock()

	block, tree, err := s.prepareBlock(txs)
	if err != nil {
		s.Unlock()

		s.refuse(txs, err)

		return xerrors.Errorf("failed to prepare block: %v", err)
	}

	err = s.blocks.Store(block)
	if err != nil {
		s.Unlock()

		s.refuse(txs, err)

		return xerrors.Errorf("failed to store block: %v", err)
	}

	s.tree = tree

	s.Unlock()

	s.removeAll(txs)

	results := block.GetResult().GetTransactionResults()

	refused := simple.Refused(block.GetResult())
	for _, res := range refused {
		_, reason := res.GetStatus()

		s.logger.Debug().
			Hex("tx", res.GetTransaction().GetID()).
			Str("reason", reason).
			Msg("transaction refused")
	}

	promBlocks.Inc()
	promTxs.Observe(float64(len(results)))
	promRejectedTxs.Observe(float64(len(refused)))

	s.logger.Debug().
		Uint64("index", block.GetIndex()).
		Stringer("hash", block.GetHash()).
		Int("txs", len(results)).
		Int("rejected", len(refused)).
		Msg("block committed")

	s.watcher.Notify(ordering.Event{
		Index:        block.GetIndex(),
		Transactions: results,
	})

	return nil
}

func (s *Service) prepareBlock(txs []txn.Transaction) (types.Block, store.Trie, error) {
	var res validation.Result

	tree, err := s.tree.Stage(func(snap store.Snapshot) error {
		var err error
		res, err = s.val.Validate(snap, txs)
		if err != nil {
			return xerrors.Errorf("validation failed: %v", err)
		}

		return nil
	})
	if err != nil {
		return types.Block{}, nil, xerrors.Errorf("staging failed: %v", err)
	}

	opts := []types.BlockOption{types.WithIndex(0)}

	last, err := s.blocks.Last()
	if err == nil {
		opts = []types.BlockOption{
			types.WithIndex(last.GetIndex() + 1),
			types.WithPrevious(last.GetHash()),
		}
	} else if !xerrors.Is(err, blockstore.ErrNoBlock) {
		return types.Block{}, nil, xerrors.Errorf("failed to read last block: %v", err)
	}

	block, err := types.NewBlock(res, opts...)
	if err != nil {
		return types.Block{}, nil, xerrors.Errorf("failed to create block: %v", err)
	}

	return block, tree, nil
}

// refuse notifies the watchers that the transactions of a failed round are
// refused so that the callers do not wait forever.
func (s *Service) refuse(txs []txn.Transaction, reason error) {
	s.removeAll(txs)

	results := make([]validation.TransactionResult, len(txs))
	for i, tx := range txs {
		results[i] = simple.NewTransactionResult(tx, false, reason.Error())
	}

	s.watcher.Notify(ordering.Event{
		Index:        s.blocks.Len(),
		Transactions: results,
	})
}

// removeAll removes the transactions of a round from the pool. They cannot be
// submitted again afterwards.
func (s *Service) removeAll(txs []txn.Transaction) {
	for _, tx := range txs {
		err := s.pool.Remove(tx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to remove tx")
		}
	}
}

// sortTransactions orders the transactions by identity and then by nonce so
// that the transactions of an identity are applied in sequence.
func sortTransactions(txs []txn.Transaction) {
	type entry struct {
		addr string
		tx   txn.Transaction
	}

	entries := make([]entry, len(txs))
	for i, tx := range txs {
		entries[i] = entry{addr: access.Address(tx.GetIdentity()), tx: tx}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].addr != entries[j].addr {
			return entries[i].addr < entries[j].addr
		}

		return entries[i].tx.GetNonce() < entries[j].tx.GetNonce()
	})

	for i, e := range entries {
		txs[i] = e.tx
	}
}

// observer forwards the events to a channel until the context is done.
//
// - implements core.Observer
type observer struct {
	ctx context.Context
	ch  chan ordering.Event
}

// NotifyCallback implements core.Observer. It forwards the event to the
// channel.
func (o *observer) NotifyCallback(event interface{}) {
	evt, ok := event.(ordering.Event)
	if !ok {
		return
	}

	select {
	case o.ch <- evt:
	case <-o.ctx.Done():
	}
}
