package strava

import "time"

// SummaryActivity is one entry from the athlete activity listing.
type SummaryActivity struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	StartDate      time.Time `json:"start_date"`
	StartDateLocal time.Time `json:"start_date_local"`
}

// SegmentRef identifies the segment an effort was recorded on.
type SegmentRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ActivityRef identifies the activity an effort belongs to.
type ActivityRef struct {
	ID int64 `json:"id"`
}

// SegmentEffort is one recorded effort on a segment. The same shape is
// returned inside activity details and by the effort-history endpoints.
type SegmentEffort struct {
	ID             int64       `json:"id"`
	Segment        SegmentRef  `json:"segment"`
	Activity       ActivityRef `json:"activity"`
	ElapsedTime    int64       `json:"elapsed_time"` // seconds
	StartDate      time.Time   `json:"start_date"`
	StartDateLocal time.Time   `json:"start_date_local"`
}

// DetailedActivity is a full activity record with all segment efforts
// included.
type DetailedActivity struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	StartDate      time.Time       `json:"start_date"`
	StartDateLocal time.Time       `json:"start_date_local"`
	SegmentEfforts []SegmentEffort `json:"segment_efforts"`
}

// Error is the upstream API's error envelope.
type Error struct {
	Message string `json:"message"`
	Errors  []struct {
		Resource string `json:"resource"`
		Field    string `json:"field"`
		Code     string `json:"code"`
	} `json:"errors"`
	Status int `json:"-"`
}
