package main

import (
	"github.com/mongotus/mongotus/cmd/mongotusd/cli"
)

func main() {
	cli.ParseFlags()

	if cli.Flags.ShowVersion {
		cli.ShowVersion()
		return
	}

	cli.SetupStructuredLogger()
	cli.CreateComposer()
	cli.Serve()
}
