// Package cli contains the spilinkd command line interface.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag      = "config"
	debugFlag       = "debug"
	logFileFlag     = "log-file"
	metricsAddrFlag = "metrics-addr"
)

var app = &cli.App{
	Name:            "spilinkd",
	Usage:           "bring up and supervise SPI attached network and USB links",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    configFlag,
			Aliases: []string{"c"},
			Usage:   "load configuration from `FILE`",
		},
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "set up every configured component and loop until interrupted",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  logFileFlag,
					Usage: "also write logs to `FILE`, overriding logging.file from the config",
				},
				&cli.StringFlag{
					Name:  metricsAddrFlag,
					Usage: "serve /metrics and /readyz on `ADDR`, e.g. :9100",
				},
			},
			Action: RunAction,
		},
		{
			Name:   "validate",
			Usage:  "read and validate the configuration without touching hardware",
			Action: ValidateAction,
		},
		{
			Name:   "models",
			Usage:  "list the registered component models",
			Action: ModelsAction,
		},
		{
			Name:   "usb-states",
			Usage:  "list the USB host task state codes",
			Action: USBStatesAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck // no need to check for error
	fmt.Fprintf(w, format+"\n", a...)
}
