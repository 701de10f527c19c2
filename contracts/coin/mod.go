// Package coin implements a native contract that holds the balances of the
// accounts of a session.
//
// Funds are created by the faucet identity only. Any account can then move its
// own funds to another account.
package coin

import (
	"encoding/binary"
	"fmt"
	"math"

	"go.dedis.ch/duet"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/execution/native"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"golang.org/x/xerrors"
)

// commands defines the commands of the coin contract. This interface helps in
// testing the contract.
type commands interface {
	fund(snap store.Snapshot, step execution.Step) error
	transfer(snap store.Snapshot, step execution.Step) error
}

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/duet.Coin"

	// CmdArg is the argument's name to indicate the kind of command we want to
	// run on the contract. Should be one of the Command type.
	CmdArg = "coin:command"

	// ToArg is the argument's name in the transaction that contains the
	// binary identity of the recipient.
	ToArg = "coin:to"

	// AmountArg is the argument's name in the transaction that contains the
	// amount in atomic units.
	AmountArg = "coin:amount"

	// Decimals is the number of decimals of the currency.
	Decimals = 6

	balancePrefix = "coin:"
)

// Command defines a type of command for the coin contract.
type Command string

const (
	// CmdFund defines the command to create funds for an account.
	CmdFund Command = "FUND"

	// CmdTransfer defines the command to move funds between two accounts.
	CmdTransfer Command = "TRANSFER"
)

// Amount is an amount of the currency in atomic units.
type Amount uint64

// ParseAmount returns the amount of atomic units for the amount of whole units.
func ParseAmount(units float64) (Amount, error) {
	if math.IsNaN(units) || math.IsInf(units, 0) {
		return 0, xerrors.Errorf("invalid amount: %v", units)
	}

	if units < 0 {
		return 0, xerrors.Errorf("negative amount: %v", units)
	}

	atomic := math.Round(units * math.Pow10(Decimals))
	if atomic >= math.MaxUint64 {
		return 0, xerrors.Errorf("amount too large: %v", units)
	}

	return Amount(atomic), nil
}

// AmountOf returns the amount encoded in the data.
func AmountOf(data []byte) (Amount, error) {
	if len(data) != 8 {
		return 0, xerrors.Errorf("invalid amount length: %d != 8", len(data))
	}

	return Amount(binary.LittleEndian.Uint64(data)), nil
}

// Bytes returns the binary encoding of the amount.
func (a Amount) Bytes() []byte {
	buffer := make([]byte, 8)
	binary.LittleEndian.PutUint64(buffer, uint64(a))

	return buffer
}

// String implements fmt.Stringer. It returns the amount in whole units.
func (a Amount) String() string {
	unit := uint64(math.Pow10(Decimals))

	return fmt.Sprintf("%d.%0*d", uint64(a)/unit, Decimals, uint64(a)%unit)
}

// NewFundArgs returns the arguments of a transaction that funds the account.
func NewFundArgs(to access.Identity, amount Amount) ([]txn.Arg, error) {
	return newArgs(CmdFund, to, amount)
}

// NewTransferArgs returns the arguments of a transaction that moves the amount
// from the signer to the account.
func NewTransferArgs(to access.Identity, amount Amount) ([]txn.Arg, error) {
	return newArgs(CmdTransfer, to, amount)
}

func newArgs(cmd Command, to access.Identity, amount Amount) ([]txn.Arg, error) {
	if to == nil {
		return nil, xerrors.New("missing recipient")
	}

	recipient, err := to.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal recipient: %v", err)
	}

	args := []txn.Arg{
		{Key: native.ContractArg, Value: []byte(ContractName)},
		{Key: CmdArg, Value: []byte(cmd)},
		{Key: ToArg, Value: recipient},
		{Key: AmountArg, Value: amount.Bytes()},
	}

	return args, nil
}

// BalanceOf returns the balance of the account in the store. An unknown
// account has an empty balance.
func BalanceOf(snap store.Readable, ident access.Identity) (Amount, error) {
	key, err := balanceKey(ident)
	if err != nil {
		return 0, xerrors.Errorf("key: %v", err)
	}

	return readBalance(snap, key)
}

// RegisterContract registers the coin contract to the given execution service.
func RegisterContract(exec *native.Service, c Contract) {
	exec.Set(ContractName, c)
}

// Contract is a native contract that handles the balances of the accounts.
//
// - implements native.Contract
type Contract struct {
	// faucet is the only identity allowed to create funds.
	faucet access.Identity

	// cmd provides the commands executions
	cmd commands
}

// NewContract creates a new coin contract with the faucet identity.
func NewContract(faucet access.Identity) Contract {
	contract := Contract{
		faucet: faucet,
	}

	contract.cmd = coinCommand{Contract: &contract}

	return contract
}

// Execute implements native.Contract. It runs the appropriate command.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	cmd := step.Current.GetArg(CmdArg)
	if len(cmd) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", CmdArg)
	}

	switch Command(cmd) {
	case CmdFund:
		err := c.cmd.fund(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to FUND: %v", err)
		}
	case CmdTransfer:
		err := c.cmd.transfer(snap, step)
		if err != nil {
			return xerrors.Errorf("failed to TRANSFER: %v", err)
		}
	default:
		return xerrors.Errorf("unknown command: %s", cmd)
	}

	return nil
}

// coinCommand implements the commands of the coin contract
//
// - implements commands
type coinCommand struct {
	*Contract
}

// fund implements commands. It performs the FUND command.
func (c coinCommand) fund(snap store.Snapshot, step execution.Step) error {
	if c.faucet == nil || !c.faucet.Equal(step.Current.GetIdentity()) {
		return xerrors.Errorf("identity not authorized: %v",
			step.Current.GetIdentity())
	}

	to, amount, err := parseArgs(step)
	if err != nil {
		return err
	}

	err = credit(snap, to, amount)
	if err != nil {
		return err
	}

	duet.Logger.Debug().
		Str("contract", "coin").
		Hex("to", step.Current.GetArg(ToArg)).
		Stringer("amount", amount).
		Msg("account funded")

	return nil
}

// transfer implements commands. It performs the TRANSFER command.
func (c coinCommand) transfer(snap store.Snapshot, step execution.Step) error {
	from, err := balanceKey(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("sender: %v", err)
	}

	to, amount, err := parseArgs(step)
	if err != nil {
		return err
	}

	balance, err := readBalance(snap, from)
	if err != nil {
		return err
	}

	if balance < amount {
		return xerrors.Errorf("insufficient funds: %v < %v", balance, amount)
	}

	err = snap.Set(from, (balance - amount).Bytes())
	if err != nil {
		return xerrors.Errorf("failed to write balance: %v", err)
	}

	return credit(snap, to, amount)
}

func parseArgs(step execution.Step) ([]byte, Amount, error) {
	to := step.Current.GetArg(ToArg)
	if len(to) == 0 {
		return nil, 0, xerrors.Errorf("'%s' not found in tx arg", ToArg)
	}

	amount, err := AmountOf(step.Current.GetArg(AmountArg))
	if err != nil {
		return nil, 0, xerrors.Errorf("'%s' is invalid: %v", AmountArg, err)
	}

	return append([]byte(balancePrefix), to...), amount, nil
}

func credit(snap store.Snapshot, key []byte, amount Amount) error {
	balance, err := readBalance(snap, key)
	if err != nil {
		return err
	}

	if balance > math.MaxUint64-amount {
		return xerrors.Errorf("balance overflow: %v + %v", balance, amount)
	}

	err = snap.Set(key, (balance + amount).Bytes())
	if err != nil {
		return xerrors.Errorf("failed to write balance: %v", err)
	}

	return nil
}

func readBalance(snap store.Readable, key []byte) (Amount, error) {
	value, err := snap.Get(key)
	if err != nil {
		return 0, xerrors.Errorf("failed to read balance: %v", err)
	}

	if value == nil {
		return 0, nil
	}

	amount, err := AmountOf(value)
	if err != nil {
		return 0, xerrors.Errorf("malformed balance: %v", err)
	}

	return amount, nil
}

func balanceKey(ident access.Identity) ([]byte, error) {
	if ident == nil {
		return nil, xerrors.New("missing identity")
	}

	data, err := ident.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	return append([]byte(balancePrefix), data...), nil
}
