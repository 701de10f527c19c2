// Package native implements an execution service to run native smart contracts.
//
// A native smart contract is written in Go and packaged with the application.
// Contracts can be registered while the ledger is running, which is how a
// backend installs its program the first time it is deployed.
package native

import (
	"sync"

	"go.dedis.ch/duet/core/execution"
	"go.dedis.ch/duet/core/store"
)

const (
	// ContractArg is the argument key in the transaction to look up a contract.
	ContractArg = "go.dedis.ch/duet.ContractArg"
)

// Contract is the interface to implement to register a smart contract that will
// be executed natively.
type Contract interface {
	Execute(store.Snapshot, execution.Step) error
}

// Service is an execution service for packaged applications. Those
// applications have complete access to the snapshot and can directly update
// it.
//
// - implements execution.Service
type Service struct {
	sync.RWMutex
	contracts map[string]Contract
}

// NewExecution returns a new native execution with no contract.
func NewExecution() *Service {
	return &Service{
		contracts: map[string]Contract{},
	}
}

// Set stores the contract using the name as the key. A transaction can trigger
// this contract by using the same name as the contract argument.
func (ns *Service) Set(name string, contract Contract) {
	ns.Lock()
	ns.contracts[name] = contract
	ns.Unlock()
}

// Has returns true if a contract is registered for the name.
func (ns *Service) Has(name string) bool {
	ns.RLock()
	defer ns.RUnlock()

	return ns.contracts[name] != nil
}

// Execute implements execution.Service. It uses the contract named by the
// transaction to process it. A transaction targeting an unknown contract is
// refused.
func (ns *Service) Execute(snap store.Snapshot, step execution.Step) (execution.Result, error) {
	name := string(step.Current.GetArg(ContractArg))

	ns.RLock()
	contract := ns.contracts[name]
	ns.RUnlock()

	if contract == nil {
		return execution.Result{Message: "unknown contract '" + name + "'"}, nil
	}

	res := execution.Result{
		Accepted: true,
	}

	err := contract.Execute(snap, step)
	if err != nil {
		res.Accepted = false
		res.Message = err.Error()
	}

	return res, nil
}
