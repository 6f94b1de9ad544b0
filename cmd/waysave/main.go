package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "waysave",
		Usage: "Find the best fuel and EV charging stations nearby",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file (default $CONFIG_FILE)",
			},
			&cli.StringFlag{
				Name:  "db",
				Usage: "Database file, overrides the configuration",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
			},
		},
		Commands: []*cli.Command{
			updateCommand(),
			pruneCommand(),
			nearbyCommand(),
			popularCommand(),
			prefsCommand(),
			signupCommand(),
			loginCommand(),
			logoutCommand(),
			whoamiCommand(),
			shellCommand(),
			serveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
