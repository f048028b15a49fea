// Package resolve implements the best-attempt resolution command.
package resolve

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/engine"
	"github.com/switchbacklabs/towers-tt/internal/season"
)

// Command creates the resolve command.
func Command(settings *conf.Settings) *cobra.Command {
	var activityID int64

	cmd := &cobra.Command{
		Use:   "resolve <athlete-id> <season-key>",
		Short: "Resolve a rider's best attempt for a season",
		Long: "Find the rider's fastest qualifying main-loop effort inside the " +
			"season's eligibility windows and store it as the current best. " +
			"The season key uses the canonical form, e.g. 2025-FALL.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(settings, args[0], args[1], activityID)
		},
	}

	cmd.Flags().Int64Var(&activityID, "activity", 0, "Resolve this activity directly instead of searching the season windows")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runResolve(settings *conf.Settings, athleteArg, seasonArg string, activityID int64) error {
	athleteID, err := strconv.ParseInt(athleteArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid athlete id %q: %w", athleteArg, err)
	}
	key, err := season.ParseKey(seasonArg)
	if err != nil {
		return err
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

	ctx := context.Background()
	var attempt *datastore.Attempt
	if activityID != 0 {
		attempt, err = eng.Selector.ResolveActivity(ctx, rider, key, activityID)
	} else {
		attempt, err = eng.Selector.Resolve(ctx, rider, key)
	}
	if err != nil {
		return err
	}

	eng.Boards.InvalidateYear(key.RaceYear())

	fmt.Printf("Resolved %s for rider %d (%s)\n", key, rider.AthleteID, rider.DisplayName)
	fmt.Printf("  activity:  %d\n", attempt.ActivityID)
	fmt.Printf("  main loop: %s\n", formatMs(attempt.MainMs))
	if attempt.ClimbSumMs != nil {
		fmt.Printf("  climbs:    %s\n", formatMs(*attempt.ClimbSumMs))
	}
	if attempt.DescSumMs != nil {
		fmt.Printf("  descents:  %s\n", formatMs(*attempt.DescSumMs))
	}
	return nil
}

func formatMs(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return d.String()
}
