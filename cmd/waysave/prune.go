package main

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
)

const defaultRetentionDays = 30

func pruneCommand() *cli.Command {
	return &cli.Command{
		Name:  "prune",
		Usage: "Delete old fuel price snapshots and compact the database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "days",
				Usage: "Keep the snapshots of the last N days",
				Value: defaultRetentionDays,
			},
		},
		Action: pruneAction,
	}
}

func pruneAction(c *cli.Context) error {
	days := c.Int("days")
	if days < 1 {
		return errors.New("--days must be at least 1")
	}

	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	deleted, err := e.storage.DeleteOldRecords(c.Context, days)
	if err != nil {
		return err
	}
	if err := e.storage.VacuumDatabase(c.Context); err != nil {
		return err
	}
	fmt.Printf("Deleted %d snapshot(s) older than %d days\n", deleted, days)
	return nil
}
