// Package history backfills a rider's full main-loop effort history from
// the data source into the attempt-effort archive.
package history

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/logging"
	"github.com/switchbacklabs/towers-tt/internal/season"
	"github.com/switchbacklabs/towers-tt/internal/strava"
)

// Package-level logger specific to the history service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger("logs/history.log", "history", serviceLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "history")
		closeLogger = func() error { return nil }
	}
}

// EffortSource lists a rider's historical efforts on one segment.
type EffortSource interface {
	ListSegmentEffortHistory(ctx context.Context, accessToken string, athleteID, segmentID int64, since time.Time) ([]strava.SegmentEffort, error)
}

// EffortStore archives imported efforts. Writes are idempotent on
// (rider, season key, activity).
type EffortStore interface {
	SaveAttemptEffort(effort *datastore.AttemptEffort) error
}

// YearSummary is the per-race-year rollup reported after an import: the
// fastest archived main-loop time per season key.
type YearSummary struct {
	BestMsBySeason map[string]int64
}

// Result describes one import run.
type Result struct {
	RunID         string
	ImportedCount int
	SkippedCount  int
	Summary       map[int]YearSummary
}

// Importer pages a rider's historical main-segment efforts and archives
// every effort that falls inside a known season window.
type Importer struct {
	source   EffortSource
	store    EffortStore
	windows  *season.Resolver
	mainID   int64
	sinceRaw string
}

// NewImporter creates an Importer.
func NewImporter(source EffortSource, store EffortStore, windows *season.Resolver, settings *conf.Settings) *Importer {
	return &Importer{
		source:   source,
		store:    store,
		windows:  windows,
		mainID:   settings.Segments.MainID,
		sinceRaw: settings.Import.StartDate,
	}
}

// ImportAll fetches every main-segment effort since the configured start
// date and upserts each one into the archive. Efforts outside every season
// window are counted and skipped; re-running an import never duplicates
// rows and never touches current-best attempts.
func (im *Importer) ImportAll(ctx context.Context, rider *datastore.Rider) (*Result, error) {
	since, err := time.Parse("2006-01-02", im.sinceRaw)
	if err != nil {
		return nil, errors.Newf("invalid import start date %q: %w", im.sinceRaw, err).
			Component("history").
			Category(errors.CategoryConfiguration).
			Build()
	}

	result := &Result{
		RunID:   uuid.New().String(),
		Summary: make(map[int]YearSummary),
	}

	logger.Info("starting historical import",
		"run_id", result.RunID,
		"athlete_id", rider.AthleteID,
		"segment_id", im.mainID,
		"since", im.sinceRaw)

	efforts, err := im.source.ListSegmentEffortHistory(ctx, rider.AccessToken, rider.AthleteID, im.mainID, since)
	if err != nil {
		return nil, errors.Newf("importing effort history for athlete %d: %w", rider.AthleteID, err).
			Component("history").
			Category(errors.CategoryImport).
			Context("run_id", result.RunID).
			Context("athlete_id", rider.AthleteID).
			Build()
	}

	for i := range efforts {
		effort := &efforts[i]

		start := effort.StartDateLocal
		if start.IsZero() {
			start = effort.StartDate
		}
		if start.IsZero() {
			logger.Warn("skipping undated effort",
				"run_id", result.RunID,
				"athlete_id", rider.AthleteID,
				"effort_id", effort.ID)
			result.SkippedCount++
			continue
		}

		key, ok, err := im.windows.SeasonKeyFor(start)
		if err != nil {
			return nil, err
		}
		if !ok {
			result.SkippedCount++
			continue
		}

		mainMs := effort.ElapsedTime * 1000
		raceYear := key.RaceYear()

		if err := im.store.SaveAttemptEffort(&datastore.AttemptEffort{
			AthleteID:      rider.AthleteID,
			Year:           key.Year,
			Season:         string(key.Name),
			ActivityID:     effort.Activity.ID,
			RaceYear:       raceYear,
			MainMs:         mainMs,
			StartTimeLocal: start,
		}); err != nil {
			return nil, errors.Newf("archiving effort for athlete %d: %w", rider.AthleteID, err).
				Component("history").
				Category(errors.CategoryDatabase).
				Context("run_id", result.RunID).
				Context("activity_id", effort.Activity.ID).
				Build()
		}
		result.ImportedCount++

		year, exists := result.Summary[raceYear]
		if !exists {
			year = YearSummary{BestMsBySeason: make(map[string]int64)}
		}
		if best, seen := year.BestMsBySeason[key.String()]; !seen || mainMs < best {
			year.BestMsBySeason[key.String()] = mainMs
		}
		result.Summary[raceYear] = year
	}

	logger.Info("historical import finished",
		"run_id", result.RunID,
		"athlete_id", rider.AthleteID,
		"imported", result.ImportedCount,
		"skipped", result.SkippedCount,
		"race_years", len(result.Summary))

	return result, nil
}
