// Package main implements the duet command-line tool. It runs two-party
// sessions on a development ledger.
//
//	duet setup
//	duet --funding 50 --db session.db ownership
//	duet --metrics 127.0.0.1:9090 ownership
//	duet blocks --db session.db
package main

import (
	"fmt"
	"io"
	"os"

	"go.dedis.ch/duet/cli"
	"go.dedis.ch/duet/cli/ucli"
)

var builder cli.Builder = newBuilder(
	cli.Float64Flag{
		Name:  "funding",
		Usage: "starting balance of the test accounts in whole units",
		Value: defaultFunding,
	},
	cli.StringFlag{
		Name:  "db",
		Usage: "path to the database of the blocks, in memory if empty",
	},
	cli.StringFlag{
		Name:  "metrics",
		Usage: "address to expose the Prometheus metrics, disabled if empty",
	},
	cli.DurationFlag{
		Name:  "timeout",
		Usage: "maximum duration of a session",
		Value: defaultTimeout,
	},
)

func newBuilder(flags ...cli.Flag) cli.Builder {
	builder := ucli.NewBuilder("duet", nil, flags...).(*ucli.Builder)
	builder.SetUsage("run two-party sessions on a development ledger")

	return builder
}

var printer io.Writer = os.Stderr

var exit = os.Exit

func main() {
	err := run(os.Args, sessionInitializer{out: os.Stdout})
	if err != nil {
		fmt.Fprintf(printer, "%+v\n", err)
		exit(1)
	}
}

func run(args []string, inits ...cli.Initializer) error {
	for _, init := range inits {
		init.SetCommands(builder)
	}

	app := builder.Build()
	err := app.Run(args)
	if err != nil {
		return err
	}

	return nil
}
