// Package main is the spilinkd command itself.
package main

import (
	"log"
	"os"

	"github.com/spilink/spilink/cli"
	// registers all components.
	_ "github.com/spilink/spilink/components/register"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
