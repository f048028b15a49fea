// Package attempt turns raw activity data into season attempts: it
// summarizes single activities into candidate attempts and resolves a
// rider's best attempt for a season.
package attempt

import (
	"time"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/strava"
)

// Summary is the outcome of summarizing one activity. MainMs is the
// fastest main-loop effort in the activity. ClimbSumMs and DescSumMs are
// set only when the activity itself covers the whole bonus group; a group
// spread over several rides does not count here.
type Summary struct {
	ActivityID     int64
	StartDate      time.Time
	StartDateLocal time.Time
	MainMs         int64
	ClimbSumMs     *int64
	DescSumMs      *int64

	// SegmentMs holds the fastest elapsed time per bonus segment seen in
	// this activity, including partial group coverage. Populated even when
	// the activity has no main-loop effort.
	SegmentMs map[int64]int64
}

// Summarizer reduces an activity's segment efforts to a Summary using the
// configured course segments.
type Summarizer struct {
	mainID     int64
	climbIDs   []int64
	descentIDs []int64
}

// NewSummarizer creates a Summarizer for the configured course.
func NewSummarizer(segments *conf.SegmentsSettings) *Summarizer {
	return &Summarizer{
		mainID:     segments.MainID,
		climbIDs:   append([]int64(nil), segments.ClimbIDs...),
		descentIDs: append([]int64(nil), segments.DescentIDs...),
	}
}

// Summarize reduces one activity to a Summary. The second return value is
// false when the activity has no main-loop effort; that is a normal
// outcome, not an error. Bonus segment times in SegmentMs are reported
// either way so callers can account for groups ridden across activities.
func (s *Summarizer) Summarize(detail *strava.DetailedActivity) (Summary, bool) {
	summary := Summary{
		ActivityID:     detail.ID,
		StartDate:      detail.StartDate,
		StartDateLocal: detail.StartDateLocal,
		SegmentMs:      make(map[int64]int64),
	}

	var mainMs int64
	haveMain := false

	for i := range detail.SegmentEfforts {
		effort := &detail.SegmentEfforts[i]
		elapsedMs := effort.ElapsedTime * 1000

		if effort.Segment.ID == s.mainID {
			if !haveMain || elapsedMs < mainMs {
				mainMs = elapsedMs
				haveMain = true
			}
			continue
		}
		if s.isBonusSegment(effort.Segment.ID) {
			if best, ok := summary.SegmentMs[effort.Segment.ID]; !ok || elapsedMs < best {
				summary.SegmentMs[effort.Segment.ID] = elapsedMs
			}
		}
	}

	if climbSum, ok := sumGroup(summary.SegmentMs, s.climbIDs); ok {
		summary.ClimbSumMs = &climbSum
	}
	if descSum, ok := sumGroup(summary.SegmentMs, s.descentIDs); ok {
		summary.DescSumMs = &descSum
	}

	if !haveMain {
		return summary, false
	}
	summary.MainMs = mainMs
	return summary, true
}

func (s *Summarizer) isBonusSegment(id int64) bool {
	for _, climbID := range s.climbIDs {
		if id == climbID {
			return true
		}
	}
	for _, descID := range s.descentIDs {
		if id == descID {
			return true
		}
	}
	return false
}

// sumGroup sums the fastest times for a segment group; ok is false unless
// every segment in the group is present.
func sumGroup(segmentMs map[int64]int64, group []int64) (int64, bool) {
	var sum int64
	for _, id := range group {
		ms, ok := segmentMs[id]
		if !ok {
			return 0, false
		}
		sum += ms
	}
	return sum, true
}
