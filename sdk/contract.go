package sdk

import (
	"context"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/duet/backend"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/ordering/devnet"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"golang.org/x/xerrors"
)

// Contract is the handle of an account on an instance of a backend.
//
// - implements backend.Runtime
type Contract struct {
	account  *Account
	backend  backend.Backend
	instance []byte
	logger   zerolog.Logger
}

func newContract(acc *Account, b backend.Backend, instance []byte) *Contract {
	return &Contract{
		account:  acc,
		backend:  b,
		instance: instance,
		logger:   acc.logger.With().Hex("instance", instance).Logger(),
	}
}

// GetInfo returns the connection info of the instance that another account
// uses to attach to it.
func (c *Contract) GetInfo() backend.ConnectionInfo {
	return backend.NewConnectionInfo(c.backend.GetName(), c.instance)
}

// GetIdentity implements backend.Runtime. It returns the identity of the
// account.
func (c *Contract) GetIdentity() access.Identity {
	return c.account.GetIdentity()
}

// GetInstance implements backend.Runtime. It returns the identifier of the
// instance.
func (c *Contract) GetInstance() []byte {
	return append([]byte{}, c.instance...)
}

// Publish implements backend.Runtime. It submits the action and waits for it to
// be accepted.
func (c *Contract) Publish(ctx context.Context, action string, args ...txn.Arg) error {
	_, err := c.account.submit(ctx,
		backend.NewActionArgs(c.backend.GetName(), c.instance, action, args...)...)
	if err != nil {
		return xerrors.Errorf("failed to publish %s: %w", action, err)
	}

	c.logger.Debug().Str("action", action).Msg("action published")

	return nil
}

// Read implements backend.Runtime. It returns the value of the key in the
// current state of the ledger.
func (c *Contract) Read(key []byte) ([]byte, error) {
	value, err := c.account.stdlib.ordering.GetStore().Get(key)
	if err != nil {
		return nil, xerrors.Errorf("store: %v", err)
	}

	return value, nil
}

// Wait implements backend.Runtime. It evaluates the predicate on the current
// state, and again after each new block until it is true. It returns an error
// if the ledger is closed before.
func (c *Contract) Wait(ctx context.Context, predicate func(store.Readable) (bool, error)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ordering := c.account.stdlib.ordering

	// Watch before the first evaluation so that no block is missed.
	events := ordering.Watch(ctx)

	for {
		done, err := predicate(ordering.GetStore())
		if err != nil {
			return xerrors.Errorf("predicate: %v", err)
		}

		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ordering.Done():
			return xerrors.Errorf("ledger: %w", devnet.ErrClosed)
		case _, ok := <-events:
			if !ok {
				return ctx.Err()
			}
		}
	}
}

// Run returns a task that runs the role entry point on the instance. The
// logs of the role are tagged with a unique participant identifier.
func (c *Contract) Run(role string, fn func(context.Context, backend.Runtime) error) Task {
	return func(ctx context.Context) error {
		logger := c.logger.With().
			Str("role", role).
			Stringer("participant", xid.New()).
			Logger()

		logger.Info().Msg("participant started")

		err := fn(ctx, c)
		if err != nil {
			logger.Warn().Err(err).Msg("participant failed")
			return xerrors.Errorf("%s: %w", role, err)
		}

		logger.Info().Msg("participant done")

		return nil
	}
}
