// Package backfill implements the historical import command.
package backfill

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/engine"
)

// Command creates the import command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "import <athlete-id>",
		Short: "Import a rider's full main-loop effort history",
		Long: "Fetch every recorded effort on the main segment since the configured " +
			"start date and archive the ones that fall inside a season window. " +
			"Re-running an import never duplicates rows.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(settings, args[0])
		},
	}
}

func runImport(settings *conf.Settings, athleteArg string) error {
	athleteID, err := strconv.ParseInt(athleteArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid athlete id %q: %w", athleteArg, err)
	}

	eng, err := engine.New(settings)
	if err != nil {
		return err
	}
	defer eng.Close()

	rider, err := eng.DS.GetRider(athleteID)
	if err != nil {
		return err
	}
	if rider == nil {
		return fmt.Errorf("unknown rider %d", athleteID)
	}

	result, err := eng.Importer.ImportAll(context.Background(), rider)
	if err != nil {
		return err
	}

	for raceYear := range result.Summary {
		eng.Boards.InvalidateYear(raceYear)
	}

	fmt.Printf("Import %s for rider %d (%s)\n", result.RunID, rider.AthleteID, rider.DisplayName)
	fmt.Printf("  imported: %d\n", result.ImportedCount)
	fmt.Printf("  skipped:  %d\n", result.SkippedCount)

	years := make([]int, 0, len(result.Summary))
	for year := range result.Summary {
		years = append(years, year)
	}
	sort.Ints(years)
	for _, year := range years {
		fmt.Printf("  race year %d:\n", year)
		seasons := make([]string, 0, len(result.Summary[year].BestMsBySeason))
		for key := range result.Summary[year].BestMsBySeason {
			seasons = append(seasons, key)
		}
		sort.Strings(seasons)
		for _, key := range seasons {
			fmt.Printf("    %-12s %d ms\n", key, result.Summary[year].BestMsBySeason[key])
		}
	}
	return nil
}
