// interfaces.go: this code defines the interface for the database
// operations and the shared GORM implementation.
package datastore

import (
	"io"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/logging"
	"github.com/switchbacklabs/towers-tt/internal/season"
)

// Package-level logger for database operations
var (
	logger      *slog.Logger
	levelVar    = new(slog.LevelVar)
	closeLogger func() error
)

func init() {
	var err error
	logger, closeLogger, err = logging.NewFileLogger("logs/datastore.log", "datastore", levelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: levelVar})
		logger = slog.New(fbHandler).With("service", "datastore")
		closeLogger = func() error { return nil }
	}
}

// Interface abstracts the underlying database implementation and defines
// the interface for window and attempt store operations.
type Interface interface {
	Open() error
	Close() error

	// Window store, admin-managed, read-only for the engine.
	GetSeasonWindow(key season.Key) (*season.Window, error)
	GetSeasonOverrides(key season.Key) ([]season.Override, error)
	GetSeasonWindows() ([]season.Window, error)

	// Rider identity, created by the OAuth collaborator.
	GetRider(athleteID int64) (*Rider, error)
	GetAllRiders() ([]Rider, error)
	SaveRider(rider *Rider) error

	// Current-best attempts, one row per (rider, season key).
	SaveAttempt(attempt *Attempt) error
	GetAttempt(athleteID int64, key season.Key) (*Attempt, error)
	GetAttemptsForSeasons(keys []season.Key) ([]Attempt, error)

	// Full effort history, one row per (rider, season key, activity).
	SaveAttemptEffort(effort *AttemptEffort) error
	GetAttemptEffortsForRider(athleteID int64, raceYear *int) ([]AttemptEffort, error)

	// Bonus segment efforts observed during resolution.
	SaveSegmentEffort(effort *SegmentEffort) error
	GetSegmentEffortsForSeasons(keys []season.Key) ([]SegmentEffort, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// New creates a new datastore instance based on the provided settings.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// seasonKeyScope narrows a query to a set of (year, season) pairs.
func (ds *DataStore) seasonKeyScope(keys []season.Key) *gorm.DB {
	cond := ds.DB.Where("1 = 0")
	for _, k := range keys {
		cond = cond.Or(ds.DB.Where("year = ? AND season = ?", k.Year, string(k.Name)))
	}
	return cond
}

// GetSeasonWindow returns the base window for a season key, or nil when
// none is configured. Absence is not an error.
func (ds *DataStore) GetSeasonWindow(key season.Key) (*season.Window, error) {
	var row SeasonWindow
	err := ds.DB.Where("year = ? AND season = ?", key.Year, string(key.Name)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Newf("getting season window %s: %w", key, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("season_key", key.String()).
			Build()
	}
	return &season.Window{Key: row.Key(), Start: row.StartTime, End: row.EndTime}, nil
}

// GetSeasonOverrides returns all override intervals for a season key.
func (ds *DataStore) GetSeasonOverrides(key season.Key) ([]season.Override, error) {
	var rows []SeasonOverride
	err := ds.DB.Where("year = ? AND season = ?", key.Year, string(key.Name)).
		Order("start_time").Find(&rows).Error
	if err != nil {
		return nil, errors.Newf("getting season overrides %s: %w", key, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("season_key", key.String()).
			Build()
	}
	overrides := make([]season.Override, 0, len(rows))
	for i := range rows {
		overrides = append(overrides, season.Override{
			Key:    rows[i].Key(),
			Start:  rows[i].StartTime,
			End:    rows[i].EndTime,
			Reason: rows[i].Reason,
		})
	}
	return overrides, nil
}

// GetSeasonWindows returns every configured base window.
func (ds *DataStore) GetSeasonWindows() ([]season.Window, error) {
	var rows []SeasonWindow
	if err := ds.DB.Order("start_time").Find(&rows).Error; err != nil {
		return nil, errors.Newf("getting season windows: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	windows := make([]season.Window, 0, len(rows))
	for i := range rows {
		windows = append(windows, season.Window{
			Key:   rows[i].Key(),
			Start: rows[i].StartTime,
			End:   rows[i].EndTime,
		})
	}
	return windows, nil
}

// GetRider returns a rider by athlete id, or nil when unknown.
func (ds *DataStore) GetRider(athleteID int64) (*Rider, error) {
	var rider Rider
	err := ds.DB.First(&rider, "athlete_id = ?", athleteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Newf("getting rider %d: %w", athleteID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", athleteID).
			Build()
	}
	return &rider, nil
}

// GetAllRiders returns every known rider.
func (ds *DataStore) GetAllRiders() ([]Rider, error) {
	var riders []Rider
	if err := ds.DB.Order("athlete_id").Find(&riders).Error; err != nil {
		return nil, errors.Newf("getting riders: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return riders, nil
}

// SaveRider upserts a rider row. The engine does not call this; it exists
// for the OAuth collaborator and tests.
func (ds *DataStore) SaveRider(rider *Rider) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "athlete_id"}},
		UpdateAll: true,
	}).Create(rider).Error
	if err != nil {
		return errors.Newf("saving rider %d: %w", rider.AthleteID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", rider.AthleteID).
			Build()
	}
	return nil
}

// SaveAttempt upserts the current-best attempt row for the attempt's
// (rider, season key). The write is unconditional: the latest resolution
// run always replaces whatever was stored.
func (ds *DataStore) SaveAttempt(attempt *Attempt) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "athlete_id"}, {Name: "year"}, {Name: "season"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"activity_id", "main_ms", "climb_sum_ms", "desc_sum_ms", "resolved_at",
		}),
	}).Create(attempt).Error
	if err != nil {
		logger.Error("failed to save attempt",
			"athlete_id", attempt.AthleteID,
			"season_key", attempt.SeasonKey().String(),
			"error", err)
		return errors.Newf("saving attempt for %d %s: %w", attempt.AthleteID, attempt.SeasonKey(), err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", attempt.AthleteID).
			Context("season_key", attempt.SeasonKey().String()).
			Build()
	}
	return nil
}

// GetAttempt returns the current-best attempt for a rider and season, or
// nil when none has been resolved.
func (ds *DataStore) GetAttempt(athleteID int64, key season.Key) (*Attempt, error) {
	var attempt Attempt
	err := ds.DB.Where("athlete_id = ? AND year = ? AND season = ?",
		athleteID, key.Year, string(key.Name)).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Newf("getting attempt for %d %s: %w", athleteID, key, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", athleteID).
			Context("season_key", key.String()).
			Build()
	}
	return &attempt, nil
}

// GetAttemptsForSeasons returns all current-best attempts for the given
// season keys.
func (ds *DataStore) GetAttemptsForSeasons(keys []season.Key) ([]Attempt, error) {
	var attempts []Attempt
	err := ds.DB.Where(ds.seasonKeyScope(keys)).
		Order("athlete_id").Find(&attempts).Error
	if err != nil {
		return nil, errors.Newf("getting attempts for seasons: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return attempts, nil
}

// SaveAttemptEffort inserts a history row. Re-importing the same effort is
// a no-op thanks to the composite key.
func (ds *DataStore) SaveAttemptEffort(effort *AttemptEffort) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "athlete_id"}, {Name: "year"}, {Name: "season"}, {Name: "activity_id"},
		},
		DoNothing: true,
	}).Create(effort).Error
	if err != nil {
		return errors.Newf("saving effort for %d %s activity %d: %w",
			effort.AthleteID, effort.SeasonKey(), effort.ActivityID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", effort.AthleteID).
			Context("activity_id", effort.ActivityID).
			Build()
	}
	return nil
}

// GetAttemptEffortsForRider returns a rider's effort history, optionally
// narrowed to one race year.
func (ds *DataStore) GetAttemptEffortsForRider(athleteID int64, raceYear *int) ([]AttemptEffort, error) {
	q := ds.DB.Where("athlete_id = ?", athleteID)
	if raceYear != nil {
		q = q.Where("race_year = ?", *raceYear)
	}
	var efforts []AttemptEffort
	if err := q.Order("start_time_local").Find(&efforts).Error; err != nil {
		return nil, errors.Newf("getting effort history for %d: %w", athleteID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", athleteID).
			Build()
	}
	return efforts, nil
}

// SaveSegmentEffort records one observed bonus-segment effort, idempotent
// on the composite key.
func (ds *DataStore) SaveSegmentEffort(effort *SegmentEffort) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "athlete_id"}, {Name: "year"}, {Name: "season"},
			{Name: "activity_id"}, {Name: "segment_id"},
		},
		DoNothing: true,
	}).Create(effort).Error
	if err != nil {
		return errors.Newf("saving segment effort for %d segment %d: %w",
			effort.AthleteID, effort.SegmentID, err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("athlete_id", effort.AthleteID).
			Context("segment_id", effort.SegmentID).
			Build()
	}
	return nil
}

// GetSegmentEffortsForSeasons returns all recorded bonus-segment efforts
// for the given season keys.
func (ds *DataStore) GetSegmentEffortsForSeasons(keys []season.Key) ([]SegmentEffort, error) {
	var efforts []SegmentEffort
	err := ds.DB.Where(ds.seasonKeyScope(keys)).
		Order("athlete_id").Find(&efforts).Error
	if err != nil {
		return nil, errors.Newf("getting segment efforts for seasons: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return efforts, nil
}

// Close closes the underlying database connection.
func (ds *DataStore) Close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return errors.Newf("retrieving generic DB object: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if err := sqlDB.Close(); err != nil {
		return errors.Newf("closing database: %w", err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	if closeLogger != nil {
		_ = closeLogger()
	}
	return nil
}
