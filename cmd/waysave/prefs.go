package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/internal/prefs"
)

func prefsCommand() *cli.Command {
	return &cli.Command{
		Name:  "prefs",
		Usage: "Show or change the ranking preferences",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the current preferences",
				Action: prefsShowAction,
			},
			{
				Name:      "set",
				Usage:     "Change preferences",
				ArgsUsage: "key=value...",
				Action:    prefsSetAction,
			},
			{
				Name:   "reset",
				Usage:  "Restore the default preferences",
				Action: prefsResetAction,
			},
		},
	}
}

func prefsShowAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	holder, err := e.preferences(c.Context)
	if err != nil {
		return err
	}
	printPrefs(holder.Current())
	return nil
}

func prefsSetAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("nothing to set, use key=value")
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	holder, err := e.preferences(c.Context)
	if err != nil {
		return err
	}
	p, err := applySettings(holder.Current(), c.Args().Slice())
	if err != nil {
		return err
	}
	if err := holder.Apply(c.Context, p); err != nil {
		return err
	}
	printPrefs(holder.Current())
	return nil
}

func prefsResetAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	holder, err := e.preferences(c.Context)
	if err != nil {
		return err
	}
	if err := holder.Apply(c.Context, prefs.Defaults()); err != nil {
		return err
	}
	printPrefs(holder.Current())
	return nil
}

// applySettings applies key=value pairs in order.
func applySettings(p prefs.Preferences, args []string) (prefs.Preferences, error) {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return p, fmt.Errorf("expected key=value, got %q", arg)
		}
		var err error
		if p, err = p.Set(key, value); err != nil {
			return p, err
		}
	}
	return p, nil
}

func printPrefs(p prefs.Preferences) {
	fmt.Printf("tab:         %s\n", p.ActiveTab)
	fmt.Printf("fuel:        %s\n", p.FuelType)
	fmt.Printf("mode:        %s\n", p.Mode)
	fmt.Printf("radius:      %g km\n", p.MaxDistanceKm)
	fmt.Printf("sensitivity: %g\n", p.PriceSensitivity)
	fmt.Printf("connectors:  %s\n", strings.Join(p.EnabledConnectors(), ", "))
}
