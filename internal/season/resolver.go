package season

import (
	"sort"
	"time"

	"github.com/switchbacklabs/towers-tt/internal/errors"
)

// WindowStore provides read access to the admin-managed season windows.
// The engine never writes windows.
type WindowStore interface {
	// GetSeasonWindow returns the base window for a key, or nil when the
	// season has no window configured. An error means the backend failed.
	GetSeasonWindow(key Key) (*Window, error)
	// GetSeasonOverrides returns all override intervals for a key.
	GetSeasonOverrides(key Key) ([]Override, error)
	// GetSeasonWindows returns every configured base window.
	GetSeasonWindows() ([]Window, error)
}

// Resolver answers eligibility-window questions for season keys and
// classifies timestamps into seasons.
type Resolver struct {
	store WindowStore
}

// NewResolver creates a Resolver backed by the given window store.
func NewResolver(store WindowStore) *Resolver {
	return &Resolver{store: store}
}

// EffectiveWindows returns the base window followed by all override
// intervals for the season. An empty slice means the season is not open;
// callers must treat that as absence of coverage, not an error. The
// returned intervals may overlap and are not ordered chronologically.
func (r *Resolver) EffectiveWindows(key Key) ([]Interval, error) {
	window, err := r.store.GetSeasonWindow(key)
	if err != nil {
		return nil, errors.Newf("loading season window for %s: %w", key, err).
			Component("season").
			Category(errors.CategoryDatabase).
			Context("season_key", key.String()).
			Build()
	}
	if window == nil {
		return nil, nil
	}

	overrides, err := r.store.GetSeasonOverrides(key)
	if err != nil {
		return nil, errors.Newf("loading season overrides for %s: %w", key, err).
			Component("season").
			Category(errors.CategoryDatabase).
			Context("season_key", key.String()).
			Build()
	}

	intervals := make([]Interval, 0, 1+len(overrides))
	intervals = append(intervals, Interval{Start: window.Start, End: window.End})
	for _, o := range overrides {
		intervals = append(intervals, Interval{Start: o.Start, End: o.End})
	}
	return intervals, nil
}

// SeasonKeyFor returns the season key whose base window contains the
// timestamp, inclusive on both ends. Overrides are not consulted; this
// classifies a bare timestamp, it does not admit efforts. The second
// return value is false when no base window matches.
//
// Base windows are assumed mutually disjoint. If an admin configuration
// violates that, the result for a timestamp inside two windows is
// unspecified but deterministic for a fixed configuration: windows are
// scanned in (start, key) order and the first match wins.
func (r *Resolver) SeasonKeyFor(t time.Time) (Key, bool, error) {
	windows, err := r.store.GetSeasonWindows()
	if err != nil {
		return Key{}, false, errors.Newf("loading season windows: %w", err).
			Component("season").
			Category(errors.CategoryDatabase).
			Build()
	}

	sort.Slice(windows, func(i, j int) bool {
		if !windows[i].Start.Equal(windows[j].Start) {
			return windows[i].Start.Before(windows[j].Start)
		}
		return windows[i].Key.String() < windows[j].Key.String()
	})

	for i := range windows {
		iv := Interval{Start: windows[i].Start, End: windows[i].End}
		if iv.Contains(t) {
			return windows[i].Key, true, nil
		}
	}
	return Key{}, false, nil
}
