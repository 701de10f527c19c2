// Package sdk implements the tools a script uses to run a two-party session on
// a development ledger.
//
// A session loads the standard library, creates funded test accounts, deploys
// an instance of a backend with one account and attaches the other accounts
// to it with the connection info. The role entry points of the participants
// then run concurrently and are joined.
//
//	stdlib, err := sdk.Load()
//	alice, err := stdlib.NewTestAccount(ctx, balance)
//	ctc, err := alice.Deploy(ctx, nft.NewBackend())
//	err = sdk.Join(ctx, ...)
package sdk

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/duet"
	_ "go.dedis.ch/duet/backend/json"
	"go.dedis.ch/duet/contracts/coin"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution/native"
	"go.dedis.ch/duet/core/ordering/devnet"
	"go.dedis.ch/duet/core/ordering/devnet/blockstore"
	_ "go.dedis.ch/duet/core/ordering/devnet/json"
	"go.dedis.ch/duet/core/ordering/devnet/types"
	"go.dedis.ch/duet/core/store/kv"
	"go.dedis.ch/duet/core/txn/pool/mem"
	"go.dedis.ch/duet/core/txn/signed"
	_ "go.dedis.ch/duet/core/txn/signed/json"
	"go.dedis.ch/duet/core/validation/simple"
	_ "go.dedis.ch/duet/core/validation/simple/json"
	"go.dedis.ch/duet/crypto"
	"go.dedis.ch/duet/crypto/ed25519"
	_ "go.dedis.ch/duet/crypto/ed25519/json"
	"golang.org/x/xerrors"
)

var promAccounts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "duet_sdk_accounts_total",
	Help: "total number of test accounts created",
})

func init() {
	duet.PromCollectors = append(duet.PromCollectors, promAccounts)
}

// Stdlib is the standard library of a session. It owns the development
// ledger and the faucet that funds the test accounts.
type Stdlib struct {
	logger   zerolog.Logger
	exec     *native.Service
	ordering *devnet.Service
	db       kv.DB
	faucet   *Account
}

type stdlibTemplate struct {
	env    map[string]string
	db     string
	logger zerolog.Logger
}

// Option is the type of option to load the standard library.
type Option func(*stdlibTemplate)

// WithEnv is an option to provide a bundle of environment variables. The
// bundle overrides the variables of the process.
func WithEnv(bundle map[string]string) Option {
	return func(tmpl *stdlibTemplate) {
		tmpl.env = bundle
	}
}

// WithBlockStore is an option to store the blocks in a database at the path.
// It overrides the DUET_DB variable.
func WithBlockStore(path string) Option {
	return func(tmpl *stdlibTemplate) {
		tmpl.db = path
	}
}

// WithLogger is an option to set the logger of the session.
func WithLogger(logger zerolog.Logger) Option {
	return func(tmpl *stdlibTemplate) {
		tmpl.logger = logger
	}
}

// Load creates the standard library of a session and starts its ledger. It
// must be closed to release the resources.
func Load(opts ...Option) (*Stdlib, error) {
	tmpl := stdlibTemplate{
		logger: duet.Logger,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	cfg, err := loadConfig(tmpl.env)
	if err != nil {
		return nil, xerrors.Errorf("config: %v", err)
	}

	if tmpl.db != "" {
		cfg.DB = tmpl.db
	}

	faucet := ed25519.NewSigner()

	exec := native.NewExecution()
	coin.RegisterContract(exec, coin.NewContract(faucet.GetPublicKey()))

	val := simple.NewService(exec, signed.NewTransactionFactory())

	srvcOpts := []devnet.ServiceOption{devnet.WithGatherTimeout(cfg.GatherTimeout)}

	var db kv.DB

	if cfg.DB != "" {
		db, err = kv.New(cfg.DB)
		if err != nil {
			return nil, xerrors.Errorf("failed to open db: %v", err)
		}

		blocks := blockstore.NewDiskStore(db, types.NewBlockFactory(val.GetFactory()))

		err = blocks.Load()
		if err != nil {
			db.Close()
			return nil, xerrors.Errorf("failed to load blocks: %v", err)
		}

		srvcOpts = append(srvcOpts, devnet.WithBlockStore(blocks))
	}

	ordering := devnet.NewService(mem.NewPool(), val, srvcOpts...)

	stdlib := &Stdlib{
		logger:   tmpl.logger.With().Str("module", "sdk").Logger(),
		exec:     exec,
		ordering: ordering,
		db:       db,
	}

	stdlib.faucet = newAccount(stdlib, faucet)

	stdlib.logger.Info().
		Str("db", cfg.DB).
		Dur("gather", cfg.GatherTimeout).
		Msg("session loaded")

	return stdlib, nil
}

// ParseCurrency returns the amount of atomic units for the amount of whole
// units of the currency.
func (s *Stdlib) ParseCurrency(units float64) (coin.Amount, error) {
	amount, err := coin.ParseAmount(units)
	if err != nil {
		return 0, xerrors.Errorf("failed to parse currency: %v", err)
	}

	return amount, nil
}

// FormatCurrency returns the amount in whole units.
func (s *Stdlib) FormatCurrency(amount coin.Amount) string {
	return amount.String()
}

// NewTestAccount creates a new account with a fresh identity and funds it
// with the balance.
func (s *Stdlib) NewTestAccount(ctx context.Context, balance coin.Amount) (*Account, error) {
	acc := newAccount(s, ed25519.NewSigner())

	args, err := coin.NewFundArgs(acc.GetIdentity(), balance)
	if err != nil {
		return nil, xerrors.Errorf("failed to fund: %v", err)
	}

	_, err = s.faucet.submit(ctx, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to fund: %w", err)
	}

	promAccounts.Inc()

	s.logger.Info().
		Str("account", access.Address(acc.GetIdentity())).
		Stringer("balance", balance).
		Msg("test account created")

	return acc, nil
}

// RandomUInt returns a random unsigned integer.
func (s *Stdlib) RandomUInt() (uint64, error) {
	value, err := crypto.RandomUint64(crypto.CryptographicRandomGenerator{})
	if err != nil {
		return 0, xerrors.Errorf("failed to generate: %v", err)
	}

	return value, nil
}

// BalanceOf returns the balance of the identity.
func (s *Stdlib) BalanceOf(ident access.Identity) (coin.Amount, error) {
	balance, err := coin.BalanceOf(s.ordering.GetStore(), ident)
	if err != nil {
		return 0, xerrors.Errorf("failed to read balance: %v", err)
	}

	return balance, nil
}

// GetBlocks returns the blocks of the ledger.
func (s *Stdlib) GetBlocks() blockstore.BlockStore {
	return s.ordering.GetBlocks()
}

// Close stops the ledger and closes the database if any.
func (s *Stdlib) Close() error {
	err := s.ordering.Close()
	if err != nil {
		return xerrors.Errorf("failed to stop ledger: %v", err)
	}

	if s.db != nil {
		err = s.db.Close()
		if err != nil {
			return xerrors.Errorf("failed to close db: %v", err)
		}
	}

	s.logger.Info().Uint64("blocks", s.ordering.GetBlocks().Len()).Msg("session closed")

	return nil
}
