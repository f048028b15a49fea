// model.go this code defines the data model for the attempt and window
// stores.
package datastore

import (
	"time"

	"github.com/switchbacklabs/towers-tt/internal/season"
)

// SeasonWindow is the admin-configured base eligibility interval for a
// season key. At most one row exists per (year, season); the engine only
// reads these.
type SeasonWindow struct {
	ID        uint      `gorm:"primaryKey"`
	Year      int       `gorm:"uniqueIndex:idx_season_windows_key;not null"`
	Season    string    `gorm:"uniqueIndex:idx_season_windows_key;not null;type:varchar(10)"`
	StartTime time.Time `gorm:"index:idx_season_windows_start"`
	EndTime   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the season key this window belongs to.
func (w *SeasonWindow) Key() season.Key {
	return season.Key{Year: w.Year, Name: season.Name(w.Season)}
}

// SeasonOverride is an additional eligibility interval for a season key,
// e.g. a trail-closure makeup day. Zero or more rows per key.
type SeasonOverride struct {
	ID        uint   `gorm:"primaryKey"`
	Year      int    `gorm:"index:idx_season_overrides_key;not null"`
	Season    string `gorm:"index:idx_season_overrides_key;not null;type:varchar(10)"`
	StartTime time.Time
	EndTime   time.Time
	Reason    string
	CreatedAt time.Time
}

// Key returns the season key this override belongs to.
func (o *SeasonOverride) Key() season.Key {
	return season.Key{Year: o.Year, Name: season.Name(o.Season)}
}

// Rider is a rider identity keyed by the upstream athlete id. Rows are
// created by the OAuth collaborator on first handshake; the engine reads
// identity and consent and never mutates them.
type Rider struct {
	AthleteID     int64  `gorm:"primaryKey;autoIncrement:false"`
	DisplayName   string
	PublicConsent bool   // leaderboard visibility, set by the rider
	AccessToken   string // bearer credential maintained by the token-refresh collaborator
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Attempt is a rider's current best qualifying attempt for a season.
// Exactly one row per (rider, season key); each resolution run overwrites
// it unconditionally.
type Attempt struct {
	ID         uint   `gorm:"primaryKey"`
	AthleteID  int64  `gorm:"uniqueIndex:idx_attempts_rider_season;not null"`
	Year       int    `gorm:"uniqueIndex:idx_attempts_rider_season;not null"`
	Season     string `gorm:"uniqueIndex:idx_attempts_rider_season;not null;type:varchar(10)"`
	ActivityID int64
	MainMs     int64
	ClimbSumMs *int64 // non-nil only when both climb segments were in the same activity
	DescSumMs  *int64 // non-nil only when all three descent segments were in the same activity
	ResolvedAt time.Time
}

// SeasonKey returns the season key this attempt belongs to.
func (a *Attempt) SeasonKey() season.Key {
	return season.Key{Year: a.Year, Name: season.Name(a.Season)}
}

// AttemptEffort is one historical main-loop effort. One row per
// (rider, season key, activity); historical import keeps every qualifying
// effort, not just the best, so past seasons can be displayed in full.
type AttemptEffort struct {
	ID             uint   `gorm:"primaryKey"`
	AthleteID      int64  `gorm:"uniqueIndex:idx_attempt_efforts_key;not null"`
	Year           int    `gorm:"uniqueIndex:idx_attempt_efforts_key;not null"`
	Season         string `gorm:"uniqueIndex:idx_attempt_efforts_key;not null;type:varchar(10)"`
	ActivityID     int64  `gorm:"uniqueIndex:idx_attempt_efforts_key;not null"`
	RaceYear       int    `gorm:"index:idx_attempt_efforts_race_year"`
	MainMs         int64
	StartTimeLocal time.Time
	CreatedAt      time.Time
}

// SeasonKey returns the season key this effort belongs to.
func (e *AttemptEffort) SeasonKey() season.Key {
	return season.Key{Year: e.Year, Name: season.Name(e.Season)}
}

// SegmentEffort is one observed bonus-segment effort, recorded during
// resolution so segment leaderboards can sum efforts across activities
// within a season. One row per (rider, season key, activity, segment).
type SegmentEffort struct {
	ID         uint   `gorm:"primaryKey"`
	AthleteID  int64  `gorm:"uniqueIndex:idx_segment_efforts_key;not null"`
	Year       int    `gorm:"uniqueIndex:idx_segment_efforts_key;not null"`
	Season     string `gorm:"uniqueIndex:idx_segment_efforts_key;not null;type:varchar(10)"`
	ActivityID int64  `gorm:"uniqueIndex:idx_segment_efforts_key;not null"`
	SegmentID  int64  `gorm:"uniqueIndex:idx_segment_efforts_key;not null"`
	ElapsedMs  int64
	CreatedAt  time.Time
}

// SeasonKey returns the season key this effort belongs to.
func (e *SegmentEffort) SeasonKey() season.Key {
	return season.Key{Year: e.Year, Name: season.Name(e.Season)}
}
