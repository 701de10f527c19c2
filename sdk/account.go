package sdk

import (
	"bytes"
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.dedis.ch/duet/backend"
	"go.dedis.ch/duet/contracts/coin"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/txn"
	"go.dedis.ch/duet/core/txn/signed"
	"go.dedis.ch/duet/crypto"
	"golang.org/x/xerrors"
)

var (
	// ErrNotFound is returned when an instance does not exist on the ledger.
	ErrNotFound = xerrors.New("instance not found")

	// ErrRefused is returned when a transaction is included in a block but
	// refused by the ledger.
	ErrRefused = xerrors.New("transaction refused")
)

// Account is an identity of a session that can sign and submit transactions.
// The transactions of an account are submitted one after the other.
type Account struct {
	sync.Mutex

	stdlib *Stdlib
	signer crypto.Signer
	mgr    txn.Manager
	logger zerolog.Logger
}

func newAccount(stdlib *Stdlib, signer crypto.Signer) *Account {
	return &Account{
		stdlib: stdlib,
		signer: signer,
		mgr:    signed.NewManager(signer, stdlib.ordering),
		logger: stdlib.logger.With().
			Str("account", access.Address(signer.GetPublicKey())).Logger(),
	}
}

// GetIdentity returns the identity of the account.
func (acc *Account) GetIdentity() access.Identity {
	return acc.signer.GetPublicKey()
}

// Balance returns the balance of the account.
func (acc *Account) Balance() (coin.Amount, error) {
	return acc.stdlib.BalanceOf(acc.GetIdentity())
}

// Transfer moves the amount of the account to the identity.
func (acc *Account) Transfer(ctx context.Context, to access.Identity, amount coin.Amount) error {
	args, err := coin.NewTransferArgs(to, amount)
	if err != nil {
		return xerrors.Errorf("failed to transfer: %v", err)
	}

	_, err = acc.submit(ctx, args...)
	if err != nil {
		return xerrors.Errorf("failed to transfer: %w", err)
	}

	return nil
}

// Deploy creates a new instance of the backend. Each deployment creates a
// distinct instance.
func (acc *Account) Deploy(ctx context.Context, b backend.Backend) (*Contract, error) {
	backend.Install(acc.stdlib.exec, b)

	tx, err := acc.submit(ctx, backend.NewDeployArgs(b)...)
	if err != nil {
		return nil, xerrors.Errorf("failed to deploy: %w", err)
	}

	ctc := newContract(acc, b, tx.GetID())

	acc.logger.Info().Stringer("info", ctc.GetInfo()).Msg("instance deployed")

	return ctc, nil
}

// Attach returns the contract of the instance described by the connection
// info. It fails if the instance does not exist or if it belongs to another
// backend.
func (acc *Account) Attach(b backend.Backend, info backend.ConnectionInfo) (*Contract, error) {
	if info.GetBackend() != b.GetName() {
		return nil, xerrors.Errorf("mismatch backend '%s' != '%s'",
			info.GetBackend(), b.GetName())
	}

	name, err := acc.stdlib.ordering.GetStore().Get(backend.HeaderKey(info.GetInstance()))
	if err != nil {
		return nil, xerrors.Errorf("failed to read instance: %v", err)
	}

	if name == nil {
		return nil, xerrors.Errorf("failed to attach to '%v': %w", info, ErrNotFound)
	}

	if !bytes.Equal(name, []byte(b.GetName())) {
		return nil, xerrors.Errorf("instance belongs to '%s'", name)
	}

	backend.Install(acc.stdlib.exec, b)

	ctc := newContract(acc, b, info.GetInstance())

	acc.logger.Info().Stringer("info", info).Msg("instance attached")

	return ctc, nil
}

// submit signs a transaction with the arguments and waits for its inclusion.
// It returns an error if the transaction is refused.
func (acc *Account) submit(ctx context.Context, args ...txn.Arg) (txn.Transaction, error) {
	acc.Lock()
	defer acc.Unlock()

	tx, err := acc.mgr.Make(args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to make tx: %v", err)
	}

	res, err := acc.stdlib.ordering.Submit(ctx, tx)
	if err != nil {
		acc.sync()

		return nil, xerrors.Errorf("failed to submit: %w", err)
	}

	accepted, reason := res.GetStatus()
	if !accepted {
		acc.sync()

		return nil, xerrors.Errorf("%w: %s", ErrRefused, reason)
	}

	acc.logger.Debug().Hex("tx", tx.GetID()).Uint64("nonce", tx.GetNonce()).Msg("tx accepted")

	return tx, nil
}

// sync resets the nonce of the account to the one of the ledger.
func (acc *Account) sync() {
	err := acc.mgr.Sync()
	if err != nil {
		acc.logger.Warn().Err(err).Msg("failed to sync nonce")
	}
}
