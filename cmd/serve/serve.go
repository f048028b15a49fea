// Package serve implements the HTTP API server command.
package serve

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	api "github.com/switchbacklabs/towers-tt/internal/api/v2"
	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/engine"
	"github.com/switchbacklabs/towers-tt/internal/logging"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long:  "Serve the leaderboard, resolution and import endpoints over HTTP.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runServer(settings *conf.Settings) error {
	eng, err := engine.New(settings)
	if err != nil {
		return err
	}
	defer eng.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	controller := api.New(e, eng.DS, settings, eng.Selector, eng.Importer, eng.Boards, eng.Metrics)
	defer controller.Shutdown()

	errChan := make(chan error, 1)
	go func() {
		errChan <- e.Start(":" + settings.WebServer.Port)
	}()

	logging.Info("API server started", "port", settings.WebServer.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-quit:
		logging.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(ctx)
	}
}
