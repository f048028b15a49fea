package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
)

// boardYear returns the race year a board request targets. Without an
// explicit year parameter the currently running race year is used: Fall
// opens the next race year in September.
func boardYear(ctx echo.Context) (int, error) {
	raw := ctx.QueryParam("year")
	if raw == "" {
		return currentRaceYear(time.Now()), nil
	}
	year, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return year, nil
}

func currentRaceYear(now time.Time) int {
	if now.Month() >= time.September {
		return now.Year() + 1
	}
	return now.Year()
}

// GetOverallBoard returns the overall standings for a race year.
func (c *Controller) GetOverallBoard(ctx echo.Context) error {
	return c.serveBoard(ctx, "overall", func(year int) (any, error) {
		return c.Boards.Overall(year)
	})
}

// GetClimbingBoard returns the climbing standings for a race year.
func (c *Controller) GetClimbingBoard(ctx echo.Context) error {
	return c.serveBoard(ctx, "climbing", func(year int) (any, error) {
		return c.Boards.Climbing(year)
	})
}

// GetDescendingBoard returns the descending standings for a race year.
func (c *Controller) GetDescendingBoard(ctx echo.Context) error {
	return c.serveBoard(ctx, "descending", func(year int) (any, error) {
		return c.Boards.Descending(year)
	})
}

// GetLegacyBoard returns the legacy standings for a race year.
func (c *Controller) GetLegacyBoard(ctx echo.Context) error {
	return c.serveBoard(ctx, "legacy", func(year int) (any, error) {
		return c.Boards.Legacy(year)
	})
}

func (c *Controller) serveBoard(ctx echo.Context, board string, compute func(year int) (any, error)) error {
	start := time.Now()

	year, err := boardYear(ctx)
	if err != nil {
		c.recordBoard(board, "bad_request", start)
		return c.HandleError(ctx, err, "Invalid year parameter", http.StatusBadRequest)
	}

	rows, err := compute(year)
	if err != nil {
		c.recordBoard(board, "error", start)
		return c.HandleError(ctx, err, "Failed to compute leaderboard", http.StatusInternalServerError)
	}

	c.recordBoard(board, "success", start)
	return ctx.JSON(http.StatusOK, map[string]any{
		"race_year": year,
		"board":     board,
		"rows":      rows,
	})
}

func (c *Controller) recordBoard(board, status string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.Leaderboard.RecordBoardRequest(board, status)
	c.metrics.Leaderboard.RecordComputeDuration(board, time.Since(start).Seconds())
}
