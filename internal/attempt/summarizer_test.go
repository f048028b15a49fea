package attempt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/strava"
)

var testSegments = conf.SegmentsSettings{
	MainID:     629046,
	ClimbIDs:   []int64{630272, 633871},
	DescentIDs: []int64{631703, 635068, 636129},
}

func effort(segmentID, elapsedSec int64) strava.SegmentEffort {
	return strava.SegmentEffort{
		Segment:     strava.SegmentRef{ID: segmentID},
		ElapsedTime: elapsedSec,
	}
}

func TestSummarize_NoMainEffort(t *testing.T) {
	s := NewSummarizer(&testSegments)

	summary, ok := s.Summarize(&strava.DetailedActivity{
		ID: 100,
		SegmentEfforts: []strava.SegmentEffort{
			effort(630272, 400),
			effort(633871, 500),
		},
	})

	assert.False(t, ok, "no main-loop effort means no attempt")
	// Bonus times are still reported for cross-activity accounting.
	assert.Equal(t, int64(400000), summary.SegmentMs[630272])
	assert.Equal(t, int64(500000), summary.SegmentMs[633871])
}

func TestSummarize_MainOnly(t *testing.T) {
	s := NewSummarizer(&testSegments)

	summary, ok := s.Summarize(&strava.DetailedActivity{
		ID:             100,
		StartDate:      time.Date(2025, 9, 14, 15, 0, 0, 0, time.UTC),
		SegmentEfforts: []strava.SegmentEffort{effort(629046, 2953)},
	})

	require.True(t, ok)
	assert.Equal(t, int64(2953000), summary.MainMs, "seconds convert to milliseconds")
	assert.Nil(t, summary.ClimbSumMs)
	assert.Nil(t, summary.DescSumMs)
}

func TestSummarize_FastestOfRepeatedMainEfforts(t *testing.T) {
	s := NewSummarizer(&testSegments)

	summary, ok := s.Summarize(&strava.DetailedActivity{
		ID: 100,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 3100),
			effort(629046, 2953),
			effort(629046, 3050),
		},
	})

	require.True(t, ok)
	assert.Equal(t, int64(2953000), summary.MainMs)
}

func TestSummarize_ClimbGroupRequiresBothSegments(t *testing.T) {
	s := NewSummarizer(&testSegments)

	partial, ok := s.Summarize(&strava.DetailedActivity{
		ID: 100,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 2953),
			effort(630272, 400),
		},
	})
	require.True(t, ok)
	assert.Nil(t, partial.ClimbSumMs, "one of two climb segments does not earn the sum")

	full, ok := s.Summarize(&strava.DetailedActivity{
		ID: 101,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 2953),
			effort(630272, 400),
			effort(633871, 500),
		},
	})
	require.True(t, ok)
	require.NotNil(t, full.ClimbSumMs)
	assert.Equal(t, int64(900000), *full.ClimbSumMs)
}

func TestSummarize_DescentGroupRequiresAllThree(t *testing.T) {
	s := NewSummarizer(&testSegments)

	partial, ok := s.Summarize(&strava.DetailedActivity{
		ID: 100,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 2953),
			effort(631703, 120),
			effort(635068, 130),
		},
	})
	require.True(t, ok)
	assert.Nil(t, partial.DescSumMs)

	full, ok := s.Summarize(&strava.DetailedActivity{
		ID: 101,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 2953),
			effort(631703, 120),
			effort(635068, 130),
			effort(636129, 140),
		},
	})
	require.True(t, ok)
	require.NotNil(t, full.DescSumMs)
	assert.Equal(t, int64(390000), *full.DescSumMs)
}

func TestSummarize_FastestBonusEffortPerSegment(t *testing.T) {
	s := NewSummarizer(&testSegments)

	summary, ok := s.Summarize(&strava.DetailedActivity{
		ID: 100,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 2953),
			effort(630272, 450),
			effort(630272, 400),
			effort(633871, 500),
		},
	})

	require.True(t, ok)
	require.NotNil(t, summary.ClimbSumMs)
	assert.Equal(t, int64(900000), *summary.ClimbSumMs, "repeated segment counts its fastest effort")
}

func TestSummarize_IgnoresUnrelatedSegments(t *testing.T) {
	s := NewSummarizer(&testSegments)

	summary, ok := s.Summarize(&strava.DetailedActivity{
		ID: 100,
		SegmentEfforts: []strava.SegmentEffort{
			effort(629046, 2953),
			effort(999999, 60),
		},
	})

	require.True(t, ok)
	assert.Empty(t, summary.SegmentMs)
}
