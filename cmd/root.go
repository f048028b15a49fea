// Package cmd assembles the command line interface.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/switchbacklabs/towers-tt/cmd/backfill"
	"github.com/switchbacklabs/towers-tt/cmd/board"
	"github.com/switchbacklabs/towers-tt/cmd/resolve"
	"github.com/switchbacklabs/towers-tt/cmd/serve"
	"github.com/switchbacklabs/towers-tt/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "towers-tt",
		Short: "Towers-TT season eligibility and attempt resolution engine",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		serve.Command(settings),
		resolve.Command(settings),
		backfill.Command(settings),
		board.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
