package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[bridgecli] %v\n", err)
	os.Exit(1)
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "bridgecli"
	app.Usage = "Inspect and operate the state of a Bitcoin peg bridge."
	app.Commands = append(app.Commands,
		initCommand,
		federationAddressCommand,
		statusCommand,
		importHeadersCommand,
		serveMetricsCommand,
	)
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
