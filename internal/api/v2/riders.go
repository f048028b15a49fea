package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/switchbacklabs/towers-tt/internal/attempt"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/season"
)

func (c *Controller) riderFromPath(ctx echo.Context) (*datastore.Rider, error) {
	athleteID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, c.HandleError(ctx, err, "Invalid athlete id", http.StatusBadRequest)
	}
	rider, err := c.DS.GetRider(athleteID)
	if err != nil {
		return nil, c.HandleError(ctx, err, "Failed to load rider", http.StatusInternalServerError)
	}
	if rider == nil {
		return nil, c.HandleError(ctx, nil, "Unknown rider", http.StatusNotFound)
	}
	return rider, nil
}

// ResolveRider resolves a rider's best attempt for one season and stores
// it as the current-best row. The season query parameter uses the
// canonical "2025-FALL" form. With an activity_id parameter the named
// activity is resolved directly, when forced resolution is enabled.
func (c *Controller) ResolveRider(ctx echo.Context) error {
	start := time.Now()

	rider, err := c.riderFromPath(ctx)
	if rider == nil {
		return err
	}

	key, err := season.ParseKey(ctx.QueryParam("season"))
	if err != nil {
		return c.HandleError(ctx, err, "Invalid season parameter", http.StatusBadRequest)
	}

	var resolved *datastore.Attempt
	if raw := ctx.QueryParam("activity_id"); raw != "" {
		activityID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid activity_id parameter", http.StatusBadRequest)
		}
		resolved, err = c.Selector.ResolveActivity(ctx.Request().Context(), rider, key, activityID)
		if err != nil {
			return c.resolveError(ctx, err, start)
		}
	} else {
		resolved, err = c.Selector.Resolve(ctx.Request().Context(), rider, key)
		if err != nil {
			return c.resolveError(ctx, err, start)
		}
	}

	c.Boards.InvalidateYear(key.RaceYear())
	c.recordResolution("resolved", start)

	return ctx.JSON(http.StatusOK, map[string]any{
		"athlete_id":   resolved.AthleteID,
		"season_key":   resolved.SeasonKey().String(),
		"race_year":    resolved.SeasonKey().RaceYear(),
		"activity_id":  resolved.ActivityID,
		"main_ms":      resolved.MainMs,
		"climb_sum_ms": resolved.ClimbSumMs,
		"desc_sum_ms":  resolved.DescSumMs,
		"resolved_at":  resolved.ResolvedAt,
	})
}

// resolveError maps resolution outcomes onto HTTP responses. The two
// admission outcomes are client-visible conditions, not server faults.
func (c *Controller) resolveError(ctx echo.Context, err error, start time.Time) error {
	switch {
	case errors.Is(err, attempt.ErrNoSeasonWindow):
		c.recordResolution("no_window", start)
		return c.HandleError(ctx, err, "Season has no eligibility window", http.StatusNotFound)
	case errors.Is(err, attempt.ErrNoQualifyingEffort):
		c.recordResolution("no_effort", start)
		return c.HandleError(ctx, err, "No qualifying effort in season", http.StatusNotFound)
	case errors.Is(err, attempt.ErrForcedDisabled):
		c.recordResolution("error", start)
		return c.HandleError(ctx, err, "Forced-activity resolution is disabled", http.StatusForbidden)
	case errors.CategoryOf(err) == errors.CategoryTokenExpired:
		c.recordResolution("error", start)
		return c.HandleError(ctx, err, "Rider token expired, re-authentication required", http.StatusUnauthorized)
	default:
		c.recordResolution("error", start)
		return c.HandleError(ctx, err, "Resolution failed", http.StatusInternalServerError)
	}
}

func (c *Controller) recordResolution(outcome string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Engine.RecordResolution(outcome)
	c.metrics.Engine.RecordResolutionDuration(time.Since(start).Seconds())
}

// ImportRider backfills the rider's full main-loop effort history.
func (c *Controller) ImportRider(ctx echo.Context) error {
	start := time.Now()

	rider, err := c.riderFromPath(ctx)
	if rider == nil {
		return err
	}

	result, err := c.Importer.ImportAll(ctx.Request().Context(), rider)
	if err != nil {
		if c.metrics != nil {
			c.metrics.Engine.RecordImport("error")
		}
		if errors.CategoryOf(err) == errors.CategoryTokenExpired {
			return c.HandleError(ctx, err, "Rider token expired, re-authentication required", http.StatusUnauthorized)
		}
		return c.HandleError(ctx, err, "Historical import failed", http.StatusInternalServerError)
	}

	for raceYear := range result.Summary {
		c.Boards.InvalidateYear(raceYear)
	}
	if c.metrics != nil {
		c.metrics.Engine.RecordImport("success")
		c.metrics.Engine.RecordImportedEfforts(result.ImportedCount)
		c.metrics.Engine.RecordSkippedEfforts(result.SkippedCount)
		c.metrics.Engine.RecordImportDuration(time.Since(start).Seconds())
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"run_id":   result.RunID,
		"imported": result.ImportedCount,
		"skipped":  result.SkippedCount,
		"summary":  result.Summary,
	})
}

// GetRiderHistory returns the rider's archived efforts, optionally
// narrowed to one race year.
func (c *Controller) GetRiderHistory(ctx echo.Context) error {
	rider, err := c.riderFromPath(ctx)
	if rider == nil {
		return err
	}

	var raceYear *int
	if raw := ctx.QueryParam("race_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return c.HandleError(ctx, err, "Invalid race_year parameter", http.StatusBadRequest)
		}
		raceYear = &year
	}

	efforts, err := c.DS.GetAttemptEffortsForRider(rider.AthleteID, raceYear)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to load effort history", http.StatusInternalServerError)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"athlete_id": rider.AthleteID,
		"efforts":    efforts,
	})
}
