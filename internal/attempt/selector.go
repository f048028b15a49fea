package attempt

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/logging"
	"github.com/switchbacklabs/towers-tt/internal/season"
	"github.com/switchbacklabs/towers-tt/internal/strava"
)

// Package-level logger specific to attempt resolution
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger("logs/attempt.log", "attempt", serviceLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "attempt")
		closeLogger = func() error { return nil }
	}
}

// Sentinel outcomes of resolution. The first two are admission results a
// rider can hit through no fault of the system; only ErrInsertFailed is an
// operational fault.
var (
	ErrNoSeasonWindow     = errors.NewStd("season has no eligibility window")
	ErrNoQualifyingEffort = errors.NewStd("no qualifying main-loop effort in season")
	ErrInsertFailed       = errors.NewStd("failed to persist resolved attempt")
	ErrForcedDisabled     = errors.NewStd("forced-activity resolution is disabled")
)

// ActivitySource lists a rider's activities and fetches their details.
type ActivitySource interface {
	ListActivityIDs(ctx context.Context, accessToken string, start, end time.Time) ([]int64, error)
	GetActivityDetail(ctx context.Context, accessToken string, activityID int64) (*strava.DetailedActivity, error)
}

// Store persists resolution results.
type Store interface {
	SaveAttempt(attempt *datastore.Attempt) error
	SaveSegmentEffort(effort *datastore.SegmentEffort) error
}

// Selector resolves a rider's best attempt for a season and records it as
// the current-best row.
type Selector struct {
	windows     *season.Resolver
	source      ActivitySource
	store       Store
	summarizer  *Summarizer
	allowForced bool
}

// NewSelector creates a Selector.
func NewSelector(windows *season.Resolver, source ActivitySource, store Store, settings *conf.Settings) *Selector {
	return &Selector{
		windows:     windows,
		source:      source,
		store:       store,
		summarizer:  NewSummarizer(&settings.Segments),
		allowForced: settings.Resolve.AllowForcedActivity,
	}
}

// Resolve finds the rider's fastest qualifying main-loop effort inside the
// season's effective windows and unconditionally replaces the current-best
// row with it. A failed window listing or detail fetch only removes those
// candidates from consideration; the write is the only fatal step.
func (s *Selector) Resolve(ctx context.Context, rider *datastore.Rider, key season.Key) (*datastore.Attempt, error) {
	windows, err := s.windows.EffectiveWindows(key)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, errors.Newf("%w: %s", ErrNoSeasonWindow, key).
			Component("attempt").
			Category(errors.CategoryNotFound).
			Context("athlete_id", rider.AthleteID).
			Context("season_key", key.String()).
			Build()
	}

	candidateIDs := s.collectCandidates(ctx, rider, key, windows)

	var (
		best    Summary
		haveWin bool
	)
	for _, activityID := range candidateIDs {
		detail, err := s.source.GetActivityDetail(ctx, rider.AccessToken, activityID)
		if err != nil {
			logger.Warn("dropping candidate activity, detail fetch failed",
				"athlete_id", rider.AthleteID,
				"activity_id", activityID,
				"error", err.Error())
			continue
		}

		summary, ok := s.summarizer.Summarize(detail)
		s.saveSegmentEfforts(rider, key, &summary)
		if !ok {
			continue
		}
		// Strictly-less keeps the first-encountered activity on ties.
		if !haveWin || summary.MainMs < best.MainMs {
			best = summary
			haveWin = true
		}
	}

	if !haveWin {
		return nil, errors.Newf("%w: %s", ErrNoQualifyingEffort, key).
			Component("attempt").
			Category(errors.CategoryNotFound).
			Context("athlete_id", rider.AthleteID).
			Context("season_key", key.String()).
			Context("candidates", len(candidateIDs)).
			Build()
	}

	return s.persist(rider, key, &best)
}

// ResolveActivity resolves exactly one named activity, bypassing window
// candidate discovery. The activity must still contain a main-loop effort.
// Only available when explicitly enabled in configuration.
func (s *Selector) ResolveActivity(ctx context.Context, rider *datastore.Rider, key season.Key, activityID int64) (*datastore.Attempt, error) {
	if !s.allowForced {
		return nil, errors.Newf("%w", ErrForcedDisabled).
			Component("attempt").
			Category(errors.CategoryConfiguration).
			Build()
	}

	detail, err := s.source.GetActivityDetail(ctx, rider.AccessToken, activityID)
	if err != nil {
		return nil, err
	}

	summary, ok := s.summarizer.Summarize(detail)
	s.saveSegmentEfforts(rider, key, &summary)
	if !ok {
		return nil, errors.Newf("%w: activity %d", ErrNoQualifyingEffort, activityID).
			Component("attempt").
			Category(errors.CategoryNotFound).
			Context("athlete_id", rider.AthleteID).
			Context("activity_id", activityID).
			Build()
	}

	logger.Info("resolving forced activity",
		"athlete_id", rider.AthleteID,
		"season_key", key.String(),
		"activity_id", activityID)

	return s.persist(rider, key, &summary)
}

// collectCandidates lists activities per effective window and unions the
// ids, preserving first-encountered order across windows.
func (s *Selector) collectCandidates(ctx context.Context, rider *datastore.Rider, key season.Key, windows []season.Interval) []int64 {
	seen := make(map[int64]bool)
	var ordered []int64

	for _, window := range windows {
		ids, err := s.source.ListActivityIDs(ctx, rider.AccessToken, window.Start, window.End)
		if err != nil {
			logger.Warn("window contributes no candidates, activity listing failed",
				"athlete_id", rider.AthleteID,
				"season_key", key.String(),
				"window_start", window.Start,
				"window_end", window.End,
				"error", err.Error())
			continue
		}
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				ordered = append(ordered, id)
			}
		}
	}
	return ordered
}

// saveSegmentEfforts records the activity's bonus segment times so
// leaderboards can sum groups ridden across activities. Failures here are
// logged and swallowed; they never fail the resolution.
func (s *Selector) saveSegmentEfforts(rider *datastore.Rider, key season.Key, summary *Summary) {
	for segmentID, elapsedMs := range summary.SegmentMs {
		err := s.store.SaveSegmentEffort(&datastore.SegmentEffort{
			AthleteID:  rider.AthleteID,
			Year:       key.Year,
			Season:     string(key.Name),
			ActivityID: summary.ActivityID,
			SegmentID:  segmentID,
			ElapsedMs:  elapsedMs,
		})
		if err != nil {
			logger.Warn("failed to record bonus segment effort",
				"athlete_id", rider.AthleteID,
				"activity_id", summary.ActivityID,
				"segment_id", segmentID,
				"error", err.Error())
		}
	}
}

func (s *Selector) persist(rider *datastore.Rider, key season.Key, summary *Summary) (*datastore.Attempt, error) {
	attempt := &datastore.Attempt{
		AthleteID:  rider.AthleteID,
		Year:       key.Year,
		Season:     string(key.Name),
		ActivityID: summary.ActivityID,
		MainMs:     summary.MainMs,
		ClimbSumMs: summary.ClimbSumMs,
		DescSumMs:  summary.DescSumMs,
		ResolvedAt: time.Now().UTC(),
	}

	if err := s.store.SaveAttempt(attempt); err != nil {
		return nil, errors.Newf("%w: %w", ErrInsertFailed, err).
			Component("attempt").
			Category(errors.CategoryDatabase).
			Context("athlete_id", rider.AthleteID).
			Context("season_key", key.String()).
			Context("activity_id", summary.ActivityID).
			Build()
	}

	logger.Info("current-best attempt updated",
		"athlete_id", rider.AthleteID,
		"season_key", key.String(),
		"activity_id", summary.ActivityID,
		"main_ms", summary.MainMs)

	return attempt, nil
}
