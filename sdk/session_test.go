package sdk

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/backend"
	"go.dedis.ch/duet/contracts/nft"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/ordering/devnet"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"golang.org/x/xerrors"
)

func TestSession_Ownership(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	funding, err := stdlib.ParseCurrency(100)
	require.NoError(t, err)

	alice, err := stdlib.NewTestAccount(ctx, funding)
	require.NoError(t, err)

	bob, err := stdlib.NewTestAccount(ctx, funding)
	require.NoError(t, err)

	ctcAlice, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	ctcBob, err := bob.Attach(nft.NewBackend(), ctcAlice.GetInfo())
	require.NoError(t, err)
	require.Equal(t, ctcAlice.GetInstance(), ctcBob.GetInstance())

	id, err := stdlib.RandomUInt()
	require.NoError(t, err)

	creator := nft.CreatorFunc(func() (uint64, error) { return id, nil })
	owner := nft.OwnerFunc(func() (access.Identity, error) { return bob.GetIdentity(), nil })

	err = Join(ctx,
		ctcAlice.Run("Creator", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Creator(ctx, rt, creator)
		}),
		ctcAlice.Run("Owner", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Owner(ctx, rt, owner)
		}),
	)
	require.NoError(t, err)

	state, err := nft.View(ctcBob)
	require.NoError(t, err)
	require.Equal(t, nft.PhaseFinished, state.Phase)
	require.Equal(t, id, state.ID)
	require.True(t, state.IsOwner(bob.GetIdentity()))
	require.True(t, state.IsCreator(alice.GetIdentity()))
	require.Len(t, state.History, 2)

	// Deploy and actions are free of charge.
	requireBalance(t, alice, funding)
	requireBalance(t, bob, funding)
}

func TestSession_LateParticipant(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	ctc, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	// The owner starts waiting before the token exists.
	ownerDone := make(chan error, 1)
	go func() {
		ownerDone <- ctc.Run("Owner", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Owner(ctx, rt, nft.OwnerFunc(func() (access.Identity, error) {
				return alice.GetIdentity(), nil
			}))
		})(ctx)
	}()

	err = ctc.Run("Creator", func(ctx context.Context, rt backend.Runtime) error {
		return nft.Creator(ctx, rt, nft.CreatorFunc(func() (uint64, error) { return 42, nil }))
	})(ctx)
	require.NoError(t, err)
	require.NoError(t, <-ownerDone)

	state, err := nft.View(ctc)
	require.NoError(t, err)
	require.Equal(t, uint64(42), state.ID)
}

func TestSession_InteractFailure(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	ctc, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	creator := nft.CreatorFunc(func() (uint64, error) {
		return 0, xerrors.New("boom")
	})

	owner := nft.OwnerFunc(func() (access.Identity, error) {
		t.Error("owner must not be asked for a new owner")
		return nil, nil
	})

	// The owner waits for the mint and is canceled when the creator fails.
	err = Join(ctx,
		ctc.Run("Creator", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Creator(ctx, rt, creator)
		}),
		ctc.Run("Owner", func(ctx context.Context, rt backend.Runtime) error {
			return nft.Owner(ctx, rt, owner)
		}),
	)
	require.EqualError(t, err, "Creator: interact: boom")
	require.NoError(t, ctx.Err())

	state, err := nft.View(ctc)
	require.NoError(t, err)
	require.Equal(t, nft.PhaseDeployed, state.Phase)
}

func TestAccount_Deploy(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	first, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	second, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	require.False(t, bytes.Equal(first.GetInstance(), second.GetInstance()))

	state, err := nft.View(first)
	require.NoError(t, err)
	require.Equal(t, nft.PhaseDeployed, state.Phase)

	_, err = alice.Deploy(ctx, badBackend{})
	require.Error(t, err)
	require.True(t, xerrors.Is(err, ErrRefused))
	require.Contains(t, err.Error(), "deploy failed")
}

func TestAccount_Attach(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	ctc, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	// The connection info survives a round trip through its text form.
	info, err := backend.ParseConnectionInfo(ctc.GetInfo().String())
	require.NoError(t, err)

	_, err = alice.Attach(nft.NewBackend(), info)
	require.NoError(t, err)

	unknown := backend.NewConnectionInfo(nft.NewBackend().GetName(), []byte{0xaa})
	_, err = alice.Attach(nft.NewBackend(), unknown)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, ErrNotFound))

	_, err = alice.Attach(badBackend{}, info)
	require.EqualError(t, err,
		"mismatch backend 'go.dedis.ch/duet.NFT' != 'go.dedis.ch/duet.Bad'")

	forged := backend.NewConnectionInfo("go.dedis.ch/duet.Bad", info.GetInstance())
	_, err = alice.Attach(badBackend{}, forged)
	require.EqualError(t, err, "instance belongs to 'go.dedis.ch/duet.NFT'")
}

func TestContract_Publish(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	bob, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	ctcAlice, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	ctcBob, err := bob.Attach(nft.NewBackend(), ctcAlice.GetInfo())
	require.NoError(t, err)

	err = ctcBob.Publish(ctx, nft.ActionMint, txn.Arg{Key: nft.IDArg, Value: make([]byte, 8)})
	require.Error(t, err)
	require.True(t, xerrors.Is(err, ErrRefused))
	require.Contains(t, err.Error(), "only the creator can mint")

	// A refused action does not block the next ones of the account.
	err = ctcAlice.Publish(ctx, nft.ActionMint, txn.Arg{Key: nft.IDArg, Value: make([]byte, 8)})
	require.NoError(t, err)
}

func TestContract_Wait(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	ctc, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()

	err = ctc.Wait(short, func(r store.Readable) (bool, error) { return false, nil })
	require.Equal(t, context.DeadlineExceeded, err)

	err = ctc.Wait(ctx, func(r store.Readable) (bool, error) {
		return false, xerrors.New("oops")
	})
	require.EqualError(t, err, "predicate: oops")
}

func TestContract_Wait_Closed(t *testing.T) {
	stdlib := loadStdlib(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	ctc, err := alice.Deploy(ctx, nft.NewBackend())
	require.NoError(t, err)

	require.NoError(t, stdlib.Close())

	start := time.Now()

	err = ctc.Wait(ctx, func(r store.Readable) (bool, error) { return false, nil })
	require.EqualError(t, err, "ledger: service closed")
	require.True(t, xerrors.Is(err, devnet.ErrClosed))
	require.Less(t, time.Since(start), time.Second)
}

func TestJoin(t *testing.T) {
	require.NoError(t, Join(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	canceled := make(chan struct{})

	err := Join(ctx,
		func(ctx context.Context) error {
			return xerrors.New("oops")
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			close(canceled)

			return ctx.Err()
		},
	)
	require.EqualError(t, err, "oops")

	select {
	case <-canceled:
	default:
		t.Fatal("task not canceled")
	}

	count := 0
	tasks := make([]Task, 5)
	results := make(chan struct{}, len(tasks))
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			results <- struct{}{}
			return nil
		}
	}

	require.NoError(t, Join(ctx, tasks...))

	close(results)
	for range results {
		count++
	}
	require.Equal(t, 5, count)
}

// -----------------------------------------------------------------------------
// Utility functions

type badProgram struct{}

func (badProgram) Deploy(store.Snapshot, []byte, execution.Step) error {
	return xerrors.New("oops")
}

func (badProgram) Execute(store.Snapshot, []byte, string, execution.Step) error {
	return xerrors.New("oops")
}

type badBackend struct{}

func (badBackend) GetName() string {
	return "go.dedis.ch/duet.Bad"
}

func (badBackend) GetProgram() backend.Program {
	return badProgram{}
}
