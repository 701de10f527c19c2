package sdk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.dedis.ch/duet/contracts/coin"
	"go.dedis.ch/duet/crypto/ed25519"
	"golang.org/x/xerrors"
)

func TestLoad(t *testing.T) {
	stdlib := loadStdlib(t)

	require.NotNil(t, stdlib.faucet)
	require.Nil(t, stdlib.db)
	require.NoError(t, stdlib.Close())

	_, err := Load(WithEnv(map[string]string{"DUET_GATHER_TIMEOUT": "abc"}))
	require.Error(t, err)
	require.Contains(t, err.Error(), "config: failed to parse environment: ")

	_, err = Load(WithBlockStore(t.TempDir()), WithLogger(zerolog.Nop()))
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to open db: ")
}

func TestLoad_BlockStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")

	stdlib := loadStdlib(t, WithBlockStore(path))
	require.NotNil(t, stdlib.db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := stdlib.NewTestAccount(ctx, 10)
	require.NoError(t, err)

	_, err = stdlib.NewTestAccount(ctx, 10)
	require.NoError(t, err)

	count := stdlib.GetBlocks().Len()
	require.GreaterOrEqual(t, count, uint64(1))
	require.NoError(t, stdlib.Close())

	// The blocks are loaded when the session is restarted.
	stdlib = loadStdlib(t, WithEnv(map[string]string{"DUET_DB": path}))
	defer stdlib.Close()

	require.Equal(t, count, stdlib.GetBlocks().Len())

	_, err = stdlib.NewTestAccount(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, count+1, stdlib.GetBlocks().Len())
}

func TestStdlib_ParseCurrency(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	amount, err := stdlib.ParseCurrency(100)
	require.NoError(t, err)
	require.Equal(t, coin.Amount(100_000_000), amount)
	require.Equal(t, "100.000000", stdlib.FormatCurrency(amount))

	_, err = stdlib.ParseCurrency(-5)
	require.EqualError(t, err, "failed to parse currency: negative amount: -5")
}

func TestStdlib_NewTestAccount(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	balance, err := stdlib.ParseCurrency(100)
	require.NoError(t, err)

	acc, err := stdlib.NewTestAccount(ctx, balance)
	require.NoError(t, err)

	found, err := acc.Balance()
	require.NoError(t, err)
	require.GreaterOrEqual(t, uint64(found), uint64(balance))

	other, err := stdlib.NewTestAccount(ctx, balance)
	require.NoError(t, err)
	require.False(t, acc.GetIdentity().Equal(other.GetIdentity()))

	done, cancelDone := context.WithCancel(context.Background())
	cancelDone()

	_, err = stdlib.NewTestAccount(done, balance)
	require.Error(t, err)
	require.True(t, xerrors.Is(err, context.Canceled))
}

func TestStdlib_RandomUInt(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	a, err := stdlib.RandomUInt()
	require.NoError(t, err)

	b, err := stdlib.RandomUInt()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestStdlib_BalanceOf(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	balance, err := stdlib.BalanceOf(ed25519.NewSigner().GetPublicKey())
	require.NoError(t, err)
	require.Equal(t, coin.Amount(0), balance)

	_, err = stdlib.BalanceOf(nil)
	require.EqualError(t, err, "failed to read balance: key: missing identity")
}

func TestAccount_Transfer(t *testing.T) {
	stdlib := loadStdlib(t)
	defer stdlib.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	alice, err := stdlib.NewTestAccount(ctx, 100)
	require.NoError(t, err)

	bob, err := stdlib.NewTestAccount(ctx, 0)
	require.NoError(t, err)

	err = alice.Transfer(ctx, bob.GetIdentity(), 40)
	require.NoError(t, err)

	// Refused for insufficient funds, the next transfer still goes through.
	err = alice.Transfer(ctx, bob.GetIdentity(), 100)
	require.True(t, xerrors.Is(err, ErrRefused))
	require.Contains(t, err.Error(), "insufficient funds")

	err = alice.Transfer(ctx, bob.GetIdentity(), 10)
	require.NoError(t, err)

	requireBalance(t, alice, 50)
	requireBalance(t, bob, 50)

	err = alice.Transfer(ctx, nil, 10)
	require.Error(t, err)
}

// -----------------------------------------------------------------------------
// Utility functions

func loadStdlib(t *testing.T, opts ...Option) *Stdlib {
	opts = append([]Option{
		WithLogger(zerolog.Nop()),
		WithEnv(map[string]string{"DUET_GATHER_TIMEOUT": "1ms", "DUET_DB": ""}),
	}, opts...)

	stdlib, err := Load(opts...)
	require.NoError(t, err)

	return stdlib
}

func requireBalance(t *testing.T, acc *Account, expected coin.Amount) {
	balance, err := acc.Balance()
	require.NoError(t, err)
	require.Equal(t, expected, balance)
}
