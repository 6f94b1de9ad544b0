package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/internal/ranker"
	"github.com/waysave/waysave/internal/station"
)

func nearbyCommand() *cli.Command {
	return &cli.Command{
		Name:  "nearby",
		Usage: "List the best stations nearby under the stored preferences",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "location",
				Usage: "Location to search",
			},
			&cli.Float64Flag{
				Name:  "lat",
				Usage: "Latitude of the location",
			},
			&cli.Float64Flag{
				Name:  "long",
				Usage: "Longitude of the location",
			},
			&cli.StringFlag{
				Name:  "tab",
				Usage: "fuel or ev, for this run only",
			},
			&cli.StringFlag{
				Name:  "mode",
				Usage: "nearest, cheapest or fastest, for this run only",
			},
			&cli.StringFlag{
				Name:    "radius",
				Aliases: []string{"r"},
				Usage:   "Search radius in kilometers, for this run only",
			},
		},
		Action: nearbyAction,
	}
}

func nearbyAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()

	holder, err := e.preferences(c.Context)
	if err != nil {
		return err
	}
	p := holder.Current()
	for _, key := range []string{"tab", "mode", "radius"} {
		if v := c.String(key); v != "" {
			if p, err = p.Set(key, v); err != nil {
				return err
			}
		}
	}

	origin, err := e.locate(c.Context, c.String("location"), c.Float64("lat"), c.Float64("long"))
	if err != nil {
		return err
	}

	found, err := e.finder().Nearby(c.Context, origin, p)
	if err != nil {
		fmt.Println("Warning:", err)
	}
	ranked := ranker.Rank(found, p)

	fmt.Printf("Ranking %s stations by %s within %g km\n\n", p.ActiveTab, p.Mode, p.MaxDistanceKm)
	printStations(ranked)
	fmt.Printf("Found %d stations\n", len(ranked))
	return nil
}

func printStations(ranked []station.Station) {
	best, hasBest := ranker.BestValue(ranked)
	for i, st := range ranked {
		marker := ""
		if hasBest && st.ID == best.ID {
			marker = "  [best value]"
		}
		fmt.Printf("%d. %s%s\n", i+1, st.Name, marker)
		if st.Address != "" {
			fmt.Printf("   %s\n", st.Address)
		}
		if st.DistanceKm != nil {
			fmt.Printf("   Distance: %.2f km\n", *st.DistanceKm)
		}
		fmt.Printf("   Price: %s\n", st.PriceLabel)
		if len(st.Connectors) > 0 {
			fmt.Printf("   Connectors: %v\n", st.Connectors)
		}
		fmt.Println()
	}
}
