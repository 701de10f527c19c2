package main

import (
	"io"
	"time"

	"go.dedis.ch/duet/cli"
	"go.dedis.ch/duet/sdk"
)

const (
	defaultFunding = 100.0
	defaultTimeout = time.Minute
)

// sessionInitializer provides the commands of the sessions.
//
// - implements cli.Initializer
type sessionInitializer struct {
	out io.Writer
}

// SetCommands implements cli.Initializer.
func (i sessionInitializer) SetCommands(provider cli.Provider) {
	a := action{
		printer: i.out,
		load:    sdk.Load,
	}

	setup := provider.SetCommand("setup")
	setup.SetDescription("fund two accounts, deploy an instance and attach to it")
	setup.SetAction(a.setupAction)

	ownership := provider.SetCommand("ownership")
	ownership.SetDescription("mint a token and hand it over to the second account")
	ownership.SetAction(a.ownershipAction)

	blocks := provider.SetCommand("blocks")
	blocks.SetDescription("list the blocks of a database")
	blocks.SetFlags(cli.StringFlag{
		Name:     "db",
		Usage:    "path to the database of the blocks",
		Required: true,
	})
	blocks.SetAction(a.blocksAction)
}
