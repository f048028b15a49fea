// Package board implements the leaderboard printing command.
package board

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/engine"
	"github.com/switchbacklabs/towers-tt/internal/leaderboard"
	"github.com/switchbacklabs/towers-tt/internal/season"
)

// Command creates the leaderboard command.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		year      int
		boardName string
	)

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print a leaderboard for a race year",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(settings, boardName, year)
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "Race year (default: current)")
	cmd.Flags().StringVar(&boardName, "board", "overall", "Board to print: overall, climbing, descending or legacy")
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func runBoard(settings *conf.Settings, boardName string, year int) error {
	if year == 0 {
		now := time.Now()
		year = now.Year()
		if now.Month() >= time.September {
			year++
		}
	}

	eng, err := engine.New(settings)
	if err != nil {
		return err
	}
	defer eng.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer func() {
		_ = w.Flush()
	}()

	switch boardName {
	case "overall":
		rows, err := eng.Boards.Overall(year)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Overall %d\n", year)
		fmt.Fprintln(w, "#\tRider\tSeasons\tTotal\tBest")
		for i, row := range rows {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
				i+1, row.DisplayName, row.SeasonsRidden,
				formatMs(row.TotalMs), formatMs(row.BestSeasonMs))
		}

	case "climbing", "descending":
		var rows []leaderboard.BonusRow
		if boardName == "climbing" {
			rows, err = eng.Boards.Climbing(year)
		} else {
			rows, err = eng.Boards.Descending(year)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s %d\n", boardName, year)
		fmt.Fprintln(w, "#\tRider\tTotal")
		for i, row := range rows {
			fmt.Fprintf(w, "%d\t%s\t%s\n", i+1, row.DisplayName, formatMs(row.TotalMs))
		}

	case "legacy":
		rows, err := eng.Boards.Legacy(year)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Legacy %d (best 3 of %d seasons)\n", year, len(season.Names))
		fmt.Fprintln(w, "#\tRider\tSeasons\tFinal")
		for i, row := range rows {
			final := formatMs(row.FinalMs)
			if row.DNF {
				final = "DNF"
			}
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, row.DisplayName, row.SeasonsRidden, final)
		}

	default:
		return fmt.Errorf("unknown board %q", boardName)
	}
	return nil
}

func formatMs(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).String()
}
