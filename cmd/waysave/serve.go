package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/urfave/cli/v2"
	"github.com/waysave/waysave/internal/config"
	"github.com/waysave/waysave/internal/server"
	"github.com/waysave/waysave/internal/updates"
	"github.com/waysave/waysave/pkg/api"
)

const (
	priceUpdateInterval = 6 * time.Hour
	shutdownTimeout     = 10 * time.Second
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, overrides the configuration",
			},
			&cli.BoolFlag{
				Name:  "no-update",
				Usage: "Do not refresh the fuel price snapshot in the background",
			},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	e, err := setup(c)
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.cfg.ValidateServer(); err != nil {
		return err
	}

	addr := e.cfg.Server.Addr
	if a := c.String("addr"); a != "" {
		addr = a
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := httplog.NewLogger("waysave", httplog.Options{
		LogLevel:        httplog.LevelByName(e.cfg.LogLevel),
		Concise:         true,
		Writer:          os.Stderr,
		QuietDownPeriod: 10 * time.Second,
	})

	if e.cfg.Fuel.Source == config.SourceSnapshot && !c.Bool("no-update") {
		go updatePrices(ctx, e, logger.Logger)
	}

	srv := server.New(server.Options{
		Store:      e.storage,
		Auth:       e.accounts(),
		Finder:     e.finder(),
		Geocoder:   e.geocoder(),
		Updates:    updates.NewSubmitter(e.storage, e.log),
		Origin:     e.origin(),
		RateLimit:  e.cfg.Server.RateLimit,
		BypassAuth: e.cfg.Auth.Skip,
	}, logger)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// updatePrices refreshes the daily snapshot four times a day.
func updatePrices(ctx context.Context, e *env, logger *slog.Logger) {
	fuelAPI := api.NewFuelPriceAPI(e.cfg.Fuel.FeedURL)
	ticker := time.NewTicker(priceUpdateInterval)
	defer ticker.Stop()

	for {
		if err := e.storage.UpdateDB(ctx, fuelAPI); err != nil {
			logger.Error("Error updating prices", "error", err)
		} else {
			logger.Info("Price update completed successfully")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
