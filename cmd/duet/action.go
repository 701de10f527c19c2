package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.dedis.ch/duet"
	"go.dedis.ch/duet/backend"
	"go.dedis.ch/duet/cli"
	"go.dedis.ch/duet/contracts/nft"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/validation/simple"
	"go.dedis.ch/duet/internal/metrics"
	"go.dedis.ch/duet/sdk"
	"golang.org/x/xerrors"
)

// action defines the actions of the session commands. Defining the loader
// helps in testing the commands.
type action struct {
	printer io.Writer
	load    func(...sdk.Option) (*sdk.Stdlib, error)
}

// session is a session with two funded accounts attached to the same
// instance.
type session struct {
	stdlib   *sdk.Stdlib
	metrics  *metrics.Server
	alice    *sdk.Account
	bob      *sdk.Account
	ctcAlice *sdk.Contract
	ctcBob   *sdk.Contract
}

func (a action) setupAction(flags cli.Flags) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutOf(flags))
	defer cancel()

	sess, err := a.setup(ctx, flags)
	if err != nil {
		return xerrors.Errorf("failed to setup: %v", err)
	}

	defer sess.close()

	err = sess.printAccounts(a.printer)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.printer, "Connection info: %v\n", sess.ctcAlice.GetInfo())

	return nil
}

func (a action) ownershipAction(flags cli.Flags) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutOf(flags))
	defer cancel()

	sess, err := a.setup(ctx, flags)
	if err != nil {
		return xerrors.Errorf("failed to setup: %v", err)
	}

	defer sess.close()

	id, err := sess.stdlib.RandomUInt()
	if err != nil {
		return xerrors.Errorf("failed to generate id: %v", err)
	}

	creator := nft.CreatorFunc(func() (uint64, error) {
		fmt.Fprintf(a.printer, "Alice mints the token #%d\n", id)
		return id, nil
	})

	owner := nft.OwnerFunc(func() (access.Identity, error) {
		fmt.Fprintf(a.printer, "Alice hands the token over to Bob\n")
		return sess.bob.GetIdentity(), nil
	})

	err = sdk.Join(ctx,
		sess.ctcAlice.Run("Creator", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Creator(ctx, rt, creator)
		}),
		sess.ctcAlice.Run("Owner", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Owner(ctx, rt, owner)
		}),
	)
	if err != nil {
		return xerrors.Errorf("session failed: %v", err)
	}

	state, err := nft.View(sess.ctcBob)
	if err != nil {
		return xerrors.Errorf("failed to view: %v", err)
	}

	if state.ID != id || !state.IsOwner(sess.bob.GetIdentity()) {
		return xerrors.Errorf("unexpected state: token #%d owned by %#x", state.ID, state.Owner)
	}

	fmt.Fprintf(a.printer, "Bob sees the token #%d owned by %s\n",
		state.ID, access.Address(sess.bob.GetIdentity()))

	return sess.printAccounts(a.printer)
}

func (a action) blocksAction(flags cli.Flags) error {
	stdlib, err := a.load(sdk.WithBlockStore(flags.Path("db")))
	if err != nil {
		return xerrors.Errorf("failed to load: %v", err)
	}

	defer stdlib.Close()

	blocks := stdlib.GetBlocks()

	if blocks.Len() == 0 {
		fmt.Fprintln(a.printer, "No block")
		return nil
	}

	for i := uint64(0); i < blocks.Len(); i++ {
		block, err := blocks.GetByIndex(i)
		if err != nil {
			return xerrors.Errorf("failed to read block %d: %v", i, err)
		}

		results := block.GetResult().GetTransactionResults()
		refused := simple.Refused(block.GetResult())

		fmt.Fprintf(a.printer, "#%d %v: %d transaction(s), %d refused\n",
			block.GetIndex(), block.GetHash(), len(results), len(refused))
	}

	return nil
}

// setup loads the standard library, funds Alice and Bob, deploys an instance
// with Alice and attaches Bob to it.
func (a action) setup(ctx context.Context, flags cli.Flags) (*session, error) {
	srv, err := startMetrics(flags.String("metrics"))
	if err != nil {
		return nil, xerrors.Errorf("metrics: %v", err)
	}

	stdlib, err := a.load(sdk.WithBlockStore(flags.Path("db")))
	if err != nil {
		stopMetrics(srv)
		return nil, xerrors.Errorf("failed to load: %v", err)
	}

	sess := &session{
		stdlib:  stdlib,
		metrics: srv,
	}

	err = sess.open(ctx, flags.Float64("funding"))
	if err != nil {
		sess.close()
		return nil, err
	}

	return sess, nil
}

func (s *session) open(ctx context.Context, units float64) error {
	funding, err := s.stdlib.ParseCurrency(units)
	if err != nil {
		return xerrors.Errorf("funding: %v", err)
	}

	s.alice, err = s.stdlib.NewTestAccount(ctx, funding)
	if err != nil {
		return xerrors.Errorf("failed to create Alice: %v", err)
	}

	s.bob, err = s.stdlib.NewTestAccount(ctx, funding)
	if err != nil {
		return xerrors.Errorf("failed to create Bob: %v", err)
	}

	s.ctcAlice, err = s.alice.Deploy(ctx, nft.NewBackend())
	if err != nil {
		return xerrors.Errorf("failed to deploy: %v", err)
	}

	// Bob only knows the text form of the connection info.
	info, err := backend.ParseConnectionInfo(s.ctcAlice.GetInfo().String())
	if err != nil {
		return xerrors.Errorf("failed to parse info: %v", err)
	}

	s.ctcBob, err = s.bob.Attach(nft.NewBackend(), info)
	if err != nil {
		return xerrors.Errorf("failed to attach: %v", err)
	}

	return nil
}

func (s *session) printAccounts(out io.Writer) error {
	for _, acc := range []struct {
		name    string
		account *sdk.Account
	}{{"Alice", s.alice}, {"Bob", s.bob}} {
		balance, err := acc.account.Balance()
		if err != nil {
			return xerrors.Errorf("failed to read balance: %v", err)
		}

		fmt.Fprintf(out, "%s: %s with %s\n", acc.name,
			access.Address(acc.account.GetIdentity()), s.stdlib.FormatCurrency(balance))
	}

	return nil
}

func (s *session) close() {
	err := s.stdlib.Close()
	if err != nil {
		duet.Logger.Warn().Err(err).Msg("failed to close session")
	}

	stopMetrics(s.metrics)
}

func startMetrics(addr string) (*metrics.Server, error) {
	if addr == "" {
		return nil, nil
	}

	srv := metrics.NewServer(addr)

	err := srv.Register(duet.PromCollectors...)
	if err != nil {
		return nil, err
	}

	err = srv.Start()
	if err != nil {
		return nil, err
	}

	return srv, nil
}

func stopMetrics(srv *metrics.Server) {
	if srv == nil {
		return
	}

	err := srv.Stop()
	if err != nil {
		duet.Logger.Warn().Err(err).Msg("failed to stop metrics")
	}
}

func timeoutOf(flags cli.Flags) time.Duration {
	timeout := flags.Duration("timeout")
	if timeout <= 0 {
		return defaultTimeout
	}

	return timeout
}
