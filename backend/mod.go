// Package backend defines the abstraction of a compiled contract backend and of
// the runtime a participant uses to interact with an instance of it.
//
// A backend has two parts. The program is installed on the ledger as a native
// contract and executes the actions published by the participants. The role
// entry points run in the process of each participant and drive the instance
// through a runtime.
package backend

import (
	"bytes"
	"context"

	"go.dedis.ch/duet/core/access"
	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/execution/native"
	"go.dedis.ch/duet/core/store"
	"go.dedis.ch/duet/core/txn"
	"golang.org/x/xerrors"
)

const (
	// ActionArg is the argument's name in the transaction that contains the
	// action to run on the instance.
	ActionArg = "backend:action"

	// InstanceArg is the argument's name in the transaction that contains the
	// identifier of the instance.
	InstanceArg = "backend:instance"

	// ActionDeploy is the action that creates a new instance. The identifier of
	// the instance is the identifier of the transaction.
	ActionDeploy = "DEPLOY"

	headerPrefix = "backend:"
	statePrefix  = "state:"
)

// Backend is a compiled contract program with its role entry points.
type Backend interface {
	// GetName returns the name of the contract on the ledger.
	GetName() string

	// GetProgram returns the program executed by the ledger.
	GetProgram() Program
}

// Program is the part of a backend executed by the ledger for each action
// published on one of its instances.
type Program interface {
	// Deploy initializes the state of a new instance.
	Deploy(snap store.Snapshot, instance []byte, step execution.Step) error

	// Execute runs the action on the instance.
	Execute(snap store.Snapshot, instance []byte, action string, step execution.Step) error
}

// Runtime is the view of a participant on an instance. It is provided to the
// role entry points of a backend.
type Runtime interface {
	// GetIdentity returns the identity of the participant.
	GetIdentity() access.Identity

	// GetInstance returns the identifier of the instance.
	GetInstance() []byte

	// Publish submits the action to the instance and waits for it to be
	// included. It returns an error if the action is refused.
	Publish(ctx context.Context, action string, args ...txn.Arg) error

	// Read returns the value of the key in the current state of the ledger.
	Read(key []byte) ([]byte, error)

	// Wait blocks until the predicate is true for the state of the ledger, or
	// until the context is done. The predicate is evaluated after each new
	// block.
	Wait(ctx context.Context, predicate func(store.Readable) (bool, error)) error
}

// HeaderKey returns the key where the name of the backend of an instance is
// stored.
func HeaderKey(instance []byte) []byte {
	return append([]byte(headerPrefix), instance...)
}

// StateKey returns the key where a program stores the state of an instance.
func StateKey(instance []byte) []byte {
	return append([]byte(statePrefix), instance...)
}

// NewDeployArgs returns the arguments of a transaction that deploys a new
// instance of the backend.
func NewDeployArgs(b Backend) []txn.Arg {
	return []txn.Arg{
		{Key: native.ContractArg, Value: []byte(b.GetName())},
		{Key: ActionArg, Value: []byte(ActionDeploy)},
	}
}

// NewActionArgs returns the arguments of a transaction that publishes the
// action on the instance.
func NewActionArgs(name string, instance []byte, action string, args ...txn.Arg) []txn.Arg {
	return append([]txn.Arg{
		{Key: native.ContractArg, Value: []byte(name)},
		{Key: ActionArg, Value: []byte(action)},
		{Key: InstanceArg, Value: instance},
	}, args...)
}

// Install registers the program of the backend in the execution service if it
// is not already.
func Install(exec *native.Service, b Backend) {
	if exec.Has(b.GetName()) {
		return
	}

	exec.Set(b.GetName(), NewContract(b.GetName(), b.GetProgram()))
}

// Contract is the native contract that manages the instances of a program.
//
// - implements native.Contract
type Contract struct {
	name    string
	program Program
}

// NewContract returns a new contract for the program.
func NewContract(name string, program Program) Contract {
	return Contract{
		name:    name,
		program: program,
	}
}

// Execute implements native.Contract. It creates a new instance for a deploy
// action, otherwise it executes the action of the program on an existing
// instance.
func (c Contract) Execute(snap store.Snapshot, step execution.Step) error {
	action := string(step.Current.GetArg(ActionArg))
	if action == "" {
		return xerrors.Errorf("'%s' not found in tx arg", ActionArg)
	}

	if action == ActionDeploy {
		return c.deploy(snap, step)
	}

	instance := step.Current.GetArg(InstanceArg)
	if len(instance) == 0 {
		return xerrors.Errorf("'%s' not found in tx arg", InstanceArg)
	}

	name, err := snap.Get(HeaderKey(instance))
	if err != nil {
		return xerrors.Errorf("failed to read header: %v", err)
	}

	if name == nil {
		return xerrors.Errorf("instance %#x not found", instance)
	}

	if !bytes.Equal(name, []byte(c.name)) {
		return xerrors.Errorf("instance %#x belongs to '%s'", instance, name)
	}

	err = c.program.Execute(snap, instance, action, step)
	if err != nil {
		return xerrors.Errorf("action %s failed: %v", action, err)
	}

	return nil
}

func (c Contract) deploy(snap store.Snapshot, step execution.Step) error {
	instance := step.Current.GetID()

	err := snap.Set(HeaderKey(instance), []byte(c.name))
	if err != nil {
		return xerrors.Errorf("failed to write header: %v", err)
	}

	err = c.program.Deploy(snap, instance, step)
	if err != nil {
		return xerrors.Errorf("deploy failed: %v", err)
	}

	return nil
}
