package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/internal/waysave"
)

func popularCommand() *cli.Command {
	return &cli.Command{
		Name:  "popular",
		Usage: "List the most searched areas",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   10,
				Usage:   "Number of areas to show, 0 for all",
			},
		},
		Action: popularAction,
	}
}

func popularAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	logs, err := e.storage.GetLocationLogs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	printLocations(os.Stdout, logs)
	return nil
}

func printLocations(w io.Writer, logs []waysave.LocationLog) {
	if len(logs) == 0 {
		fmt.Fprintln(w, "No searches recorded yet")
		return
	}
	for i, l := range logs {
		fmt.Fprintf(w, "%2d. %.2f,%.2f  %d search(es), last %s\n",
			i+1, l.Latitude, l.Longitude, l.SearchCount, l.LastSearch.Format("2006-01-02 15:04"))
	}
}
