package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/pkg/api"
)

func updateCommand() *cli.Command {
	return &cli.Command{
		Name:  "update",
		Usage: "Update the fuel price database",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "backfill-days",
				Usage: "Also fetch the missing snapshots of the last N days",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Fetch today's snapshot even if it is already stored",
			},
		},
		Action: updateAction,
	}
}

func updateAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	fuelAPI := api.NewFuelPriceAPI(e.cfg.Fuel.FeedURL)
	if days := c.Int("backfill-days"); days > 0 {
		saved, err := e.storage.Backfill(c.Context, fuelAPI, time.Now().AddDate(0, 0, -days))
		if err != nil {
			return err
		}
		fmt.Printf("Backfilled %d day(s)\n", saved)
	}

	stored, err := e.storage.HasDate(c.Context, time.Now())
	if err != nil {
		return err
	}
	if stored && !c.Bool("force") {
		fmt.Println("Today's prices are already stored, use --force to fetch them again")
		return nil
	}

	if err := e.storage.UpdateDB(c.Context, fuelAPI); err != nil {
		return fmt.Errorf("error updating prices: %w", err)
	}

	last, err := e.storage.GetLastUpdateDate(c.Context)
	if err != nil {
		return err
	}
	if last != nil {
		fmt.Println("Prices updated, latest snapshot", last.Format(time.DateOnly))
	}
	return nil
}
