// Package nft implements the backend of a non-fungible token whose ownership
// is handed over once.
//
// The creator of an instance mints the token with an identifier chosen by its
// interact object, and becomes its first owner. The owner then picks the new
// owner of the token, which finishes the instance.
package nft

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"

	"go.dedis.ch/duet"
	"go.dedis.ch/duet/backend"
	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"golang.org/x/xerrors"
)

const (
	// ContractName is the name of the contract.
	ContractName = "go.dedis.ch/duet.NFT"

	// IDArg is the argument's name in the transaction that contains the
	// identifier of the token.
	IDArg = "nft:id"

	// OwnerArg is the argument's name in the transaction that contains the
	// binary identity of the new owner.
	OwnerArg = "nft:owner"

	// ActionMint is the action that mints the token.
	ActionMint = "MINT"

	// ActionTransfer is the action that hands the token over to a new owner.
	ActionTransfer = "TRANSFER"
)

// Phase is the phase of an instance.
type Phase string

const (
	// PhaseDeployed is the phase of an instance until the token is minted.
	PhaseDeployed Phase = "DEPLOYED"

	// PhaseMinted is the phase of an instance after the token is minted and
	// until the ownership is handed over.
	PhaseMinted Phase = "MINTED"

	// PhaseFinished is the final phase of an instance.
	PhaseFinished Phase = "FINISHED"
)

// State is the state of an instance stored on the ledger.
type State struct {
	Phase Phase

	// Creator is the binary identity of the participant that deployed the
	// instance.
	Creator []byte

	// ID is the identifier of the token once minted.
	ID uint64

	// Owner is the binary identity of the current owner.
	Owner []byte

	// History is the list of the owners in order.
	History [][]byte
}

// IsCreator returns true if the identity created the instance.
func (s State) IsCreator(ident access.Identity) bool {
	return sameIdentity(s.Creator, ident)
}

// IsOwner returns true if the identity owns the token.
func (s State) IsOwner(ident access.Identity) bool {
	return sameIdentity(s.Owner, ident)
}

// CreatorInteract is the interact object of the creator.
type CreatorInteract interface {
	// GetID returns the identifier of the token to mint.
	GetID() (uint64, error)
}

// OwnerInteract is the interact object of the owner.
type OwnerInteract interface {
	// NewOwner returns the identity that receives the token.
	NewOwner() (access.Identity, error)
}

// CreatorFunc is a function that can be used as a creator interact object.
//
// - implements nft.CreatorInteract
type CreatorFunc func() (uint64, error)

// GetID implements nft.CreatorInteract. It calls the function.
func (fn CreatorFunc) GetID() (uint64, error) {
	return fn()
}

// OwnerFunc is a function that can be used as an owner interact object.
//
// - implements nft.OwnerInteract
type OwnerFunc func() (access.Identity, error)

// NewOwner implements nft.OwnerInteract. It calls the function.
func (fn OwnerFunc) NewOwner() (access.Identity, error) {
	return fn()
}

// Backend is the NFT backend.
//
// - implements backend.Backend
type Backend struct{}

// NewBackend returns the NFT backend.
func NewBackend() Backend {
	return Backend{}
}

// GetName implements backend.Backend. It returns the name of the contract.
func (Backend) GetName() string {
	return ContractName
}

// GetProgram implements backend.Backend. It returns the program that manages
// the state of the instances.
func (Backend) GetProgram() backend.Program {
	return program{}
}

// Creator runs the role of the creator. It mints the token if it is not
// already, and returns once the instance is finished.
func Creator(ctx context.Context, rt backend.Runtime, interact CreatorInteract) error {
	state, err := View(rt)
	if err != nil {
		return xerrors.Errorf("failed to read state: %v", err)
	}

	if !state.IsCreator(rt.GetIdentity()) {
		return xerrors.New("participant is not the creator")
	}

	if state.Phase == PhaseDeployed {
		id, err := interact.GetID()
		if err != nil {
			return xerrors.Errorf("interact: %v", err)
		}

		idBuf := make([]byte, 8)
		binary.LittleEndian.PutUint64(idBuf, id)

		err = rt.Publish(ctx, ActionMint, txn.Arg{Key: IDArg, Value: idBuf})
		if err != nil {
			return xerrors.Errorf("failed to mint: %v", err)
		}
	}

	err = waitPhase(ctx, rt, PhaseFinished)
	if err != nil {
		return xerrors.Errorf("failed to wait: %w", err)
	}

	return nil
}

// Owner runs the role of the owner. It waits for the token to be minted, then
// hands it over to the new owner, and returns once the instance is finished.
func Owner(ctx context.Context, rt backend.Runtime, interact OwnerInteract) error {
	err := waitPhase(ctx, rt, PhaseMinted, PhaseFinished)
	if err != nil {
		return xerrors.Errorf("failed to wait: %w", err)
	}

	state, err := View(rt)
	if err != nil {
		return xerrors.Errorf("failed to read state: %v", err)
	}

	if state.Phase == PhaseFinished {
		return nil
	}

	if !state.IsOwner(rt.GetIdentity()) {
		return xerrors.New("participant is not the owner")
	}

	newOwner, err := interact.NewOwner()
	if err != nil {
		return xerrors.Errorf("interact: %v", err)
	}

	if newOwner == nil {
		return xerrors.New("interact: missing new owner")
	}

	data, err := newOwner.MarshalBinary()
	if err != nil {
		return xerrors.Errorf("failed to marshal new owner: %v", err)
	}

	err = rt.Publish(ctx, ActionTransfer, txn.Arg{Key: OwnerArg, Value: data})
	if err != nil {
		return xerrors.Errorf("failed to transfer: %v", err)
	}

	return nil
}

// View returns the state of the instance of the runtime.
func View(rt backend.Runtime) (State, error) {
	value, err := rt.Read(backend.StateKey(rt.GetInstance()))
	if err != nil {
		return State{}, xerrors.Errorf("read failed: %v", err)
	}

	return decodeState(value)
}

func waitPhase(ctx context.Context, rt backend.Runtime, phases ...Phase) error {
	key := backend.StateKey(rt.GetInstance())

	return rt.Wait(ctx, func(r store.Readable) (bool, error) {
		value, err := r.Get(key)
		if err != nil {
			return false, xerrors.Errorf("read failed: %v", err)
		}

		state, err := decodeState(value)
		if err != nil {
			return false, err
		}

		for _, phase := range phases {
			if state.Phase == phase {
				return true, nil
			}
		}

		return false, nil
	})
}

// program is the part of the backend executed by the ledger.
//
// - implements backend.Program
type program struct{}

// Deploy implements backend.Program. It records the creator of the instance.
func (program) Deploy(snap store.Snapshot, instance []byte, step execution.Step) error {
	creator, err := marshalIdentity(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("creator: %v", err)
	}

	state := State{
		Phase:   PhaseDeployed,
		Creator: creator,
	}

	return writeState(snap, instance, state)
}

// Execute implements backend.Program. It runs the action on the instance.
func (p program) Execute(snap store.Snapshot, instance []byte,
	action string, step execution.Step) error {

	value, err := snap.Get(backend.StateKey(instance))
	if err != nil {
		return xerrors.Errorf("failed to read state: %v", err)
	}

	state, err := decodeState(value)
	if err != nil {
		return err
	}

	signer, err := marshalIdentity(step.Current.GetIdentity())
	if err != nil {
		return xerrors.Errorf("signer: %v", err)
	}

	switch action {
	case ActionMint:
		err = p.mint(&state, signer, step)
	case ActionTransfer:
		err = p.transfer(&state, signer, step)
	default:
		return xerrors.Errorf("unknown action: %s", action)
	}

	if err != nil {
		return err
	}

	duet.Logger.Debug().
		Str("contract", "nft").
		Hex("instance", instance).
		Str("action", action).
		Str("phase", string(state.Phase)).
		Msg("action executed")

	return writeState(snap, instance, state)
}

func (program) mint(state *State, signer []byte, step execution.Step) error {
	if state.Phase != PhaseDeployed {
		return xerrors.Errorf("invalid phase: %s", state.Phase)
	}

	if !bytes.Equal(state.Creator, signer) {
		return xerrors.New("only the creator can mint")
	}

	id := step.Current.GetArg(IDArg)
	if len(id) != 8 {
		return xerrors.Errorf("'%s' is invalid: length %d != 8", IDArg, len(id))
	}

	state.Phase = PhaseMinted
	state.ID = binary.LittleEndian.Uint64(id)
	state.Owner = signer
	state.History = [][]byte{signer}

	return nil
}

func (program) transfer(state *State, signer []byte, step execution.Step) error {
	if state.Phase != PhaseMinted {
		return xerrors.Errorf("invalid phase: %s", state.Phase)
	}

	if !bytes.Equal(state.Owner, signer) {
		return xerrors.New("only the owner can transfer")
	}

	owner := step.Current.GetArg(OwnerArg)
	if len(owner) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", OwnerArg)
	}

	state.Phase = PhaseFinished
	state.Owner = owner
	state.History = append(state.History, owner)

	return nil
}

func writeState(snap store.Snapshot, instance []byte, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return xerrors.Errorf("failed to marshal state: %v", err)
	}

	err = snap.Set(backend.StateKey(instance), data)
	if err != nil {
		return xerrors.Errorf("failed to write state: %v", err)
	}

	return nil
}

func decodeState(data []byte) (State, error) {
	if data == nil {
		return State{}, xerrors.New("state not found")
	}

	var state State

	err := json.Unmarshal(data, &state)
	if err != nil {
		return State{}, xerrors.Errorf("malformed state: %v", err)
	}

	return state, nil
}

func marshalIdentity(ident access.Identity) ([]byte, error) {
	if ident == nil {
		return nil, xerrors.New("missing identity")
	}

	data, err := ident.MarshalBinary()
	if err != nil {
		return nil, xerrors.Errorf("failed to marshal identity: %v", err)
	}

	return data, nil
}

func sameIdentity(data []byte, ident access.Identity) bool {
	if ident == nil || data == nil {
		return false
	}

	other, err := ident.MarshalBinary()
	if err != nil {
		return false
	}

	return bytes.Equal(data, other)
}
