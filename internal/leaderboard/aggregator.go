// Package leaderboard computes race-year standings from resolved
// current-best attempts. Boards are recomputed from the attempt store on
// demand; an optional read-through cache avoids repeated recomputation
// between writes.
package leaderboard

import (
	"io"
	"log/slog"
	"sort"

	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/errors"
	"github.com/switchbacklabs/towers-tt/internal/logging"
	"github.com/switchbacklabs/towers-tt/internal/season"
)

// legacyBonusMs is the flat reward for completing all four seasons under
// the legacy scoring rules.
const legacyBonusMs = 600 * 1000

// Package-level logger specific to the leaderboard service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar)
	closeLogger     func() error
)

func init() {
	var err error
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger("logs/leaderboard.log", "leaderboard", serviceLevelVar)
	if err != nil {
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "leaderboard")
		closeLogger = func() error { return nil }
	}
}

// Reader provides the stored rows boards are computed from.
type Reader interface {
	GetAllRiders() ([]datastore.Rider, error)
	GetAttemptsForSeasons(keys []season.Key) ([]datastore.Attempt, error)
	GetSegmentEffortsForSeasons(keys []season.Key) ([]datastore.SegmentEffort, error)
}

// SeasonResult is one season's resolved attempt on the overall board.
type SeasonResult struct {
	SeasonKey  string `json:"season_key"`
	ActivityID int64  `json:"activity_id"`
	MainMs     int64  `json:"main_ms"`
	ClimbSumMs *int64 `json:"climb_sum_ms,omitempty"`
	DescSumMs  *int64 `json:"desc_sum_ms,omitempty"`
}

// OverallRow is one rider's line on the overall board. TotalMs sums the
// seasons the rider actually completed; BestSeasonMs is the fastest of
// them.
type OverallRow struct {
	AthleteID     int64                    `json:"athlete_id"`
	DisplayName   string                   `json:"display_name"`
	Seasons       map[string]*SeasonResult `json:"seasons"`
	SeasonsRidden int                      `json:"seasons_ridden"`
	TotalMs       int64                    `json:"total_ms"`
	BestSeasonMs  int64                    `json:"best_season_ms"`
}

// BonusRow is one rider's line on a climbing or descending board. A season
// contributes only when the rider completed the main loop that season and
// the season's recorded efforts cover the whole segment group; the group
// may be spread over several activities.
type BonusRow struct {
	AthleteID   int64            `json:"athlete_id"`
	DisplayName string           `json:"display_name"`
	Seasons     map[string]int64 `json:"seasons"`
	TotalMs     int64            `json:"total_ms"`
}

// LegacyRow is one rider's line under the legacy scoring rules: the sum of
// the best three season times, minus a flat bonus when all four seasons
// were completed. Riders with no completed season rank last as DNF.
type LegacyRow struct {
	AthleteID     int64  `json:"athlete_id"`
	DisplayName   string `json:"display_name"`
	SeasonsRidden int    `json:"seasons_ridden"`
	BestThreeMs   int64  `json:"best_three_ms"`
	BonusApplied  bool   `json:"bonus_applied"`
	FinalMs       int64  `json:"final_ms"`
	DNF           bool   `json:"dnf"`
}

// Aggregator computes the four boards for a race year.
type Aggregator struct {
	store      Reader
	climbIDs   []int64
	descentIDs []int64
	cache      *boardCache
}

// NewAggregator creates an Aggregator. The cache is only active when
// enabled in settings.
func NewAggregator(store Reader, settings *conf.Settings) *Aggregator {
	return &Aggregator{
		store:      store,
		climbIDs:   append([]int64(nil), settings.Segments.ClimbIDs...),
		descentIDs: append([]int64(nil), settings.Segments.DescentIDs...),
		cache:      newBoardCache(&settings.Leaderboard),
	}
}

// InvalidateYear drops any cached boards for a race year. Call it after
// every write that can change standings.
func (a *Aggregator) InvalidateYear(year int) {
	a.cache.invalidateYear(year)
}

// yearData is everything a board computation needs, loaded in one pass.
type yearData struct {
	riders   map[int64]*datastore.Rider
	attempts []datastore.Attempt
	efforts  []datastore.SegmentEffort
}

func (a *Aggregator) load(year int) (*yearData, error) {
	keys := season.KeysForRaceYear(year)

	riders, err := a.store.GetAllRiders()
	if err != nil {
		return nil, err
	}
	attempts, err := a.store.GetAttemptsForSeasons(keys[:])
	if err != nil {
		return nil, err
	}
	efforts, err := a.store.GetSegmentEffortsForSeasons(keys[:])
	if err != nil {
		return nil, err
	}

	data := &yearData{
		riders:   make(map[int64]*datastore.Rider, len(riders)),
		attempts: attempts,
		efforts:  efforts,
	}
	// Riders without public consent never appear on a board.
	for i := range riders {
		if riders[i].PublicConsent {
			data.riders[riders[i].AthleteID] = &riders[i]
		}
	}
	return data, nil
}

// Overall returns the overall board for a race year, ordered by seasons
// completed (more first) then total time ascending.
func (a *Aggregator) Overall(year int) ([]OverallRow, error) {
	if rows, ok := a.cache.getOverall(year); ok {
		return rows, nil
	}

	data, err := a.load(year)
	if err != nil {
		return nil, errors.Newf("computing overall board for %d: %w", year, err).
			Component("leaderboard").
			Category(errors.CategoryDatabase).
			Context("race_year", year).
			Build()
	}

	byRider := make(map[int64]*OverallRow)
	for i := range data.attempts {
		attempt := &data.attempts[i]
		rider, ok := data.riders[attempt.AthleteID]
		if !ok {
			continue
		}
		row, exists := byRider[attempt.AthleteID]
		if !exists {
			row = &OverallRow{
				AthleteID:   attempt.AthleteID,
				DisplayName: rider.DisplayName,
				Seasons:     make(map[string]*SeasonResult),
			}
			byRider[attempt.AthleteID] = row
		}

		key := attempt.SeasonKey()
		row.Seasons[key.String()] = &SeasonResult{
			SeasonKey:  key.String(),
			ActivityID: attempt.ActivityID,
			MainMs:     attempt.MainMs,
			ClimbSumMs: attempt.ClimbSumMs,
			DescSumMs:  attempt.DescSumMs,
		}
		row.SeasonsRidden++
		row.TotalMs += attempt.MainMs
		if row.BestSeasonMs == 0 || attempt.MainMs < row.BestSeasonMs {
			row.BestSeasonMs = attempt.MainMs
		}
	}

	rows := make([]OverallRow, 0, len(byRider))
	for _, row := range byRider {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].SeasonsRidden != rows[j].SeasonsRidden {
			return rows[i].SeasonsRidden > rows[j].SeasonsRidden
		}
		if rows[i].TotalMs != rows[j].TotalMs {
			return rows[i].TotalMs < rows[j].TotalMs
		}
		return rows[i].AthleteID < rows[j].AthleteID
	})

	a.cache.setOverall(year, rows)
	return rows, nil
}

// Climbing returns the climbing board: per qualifying season, the sum of
// the rider's fastest time on each climb segment, ascending by total.
func (a *Aggregator) Climbing(year int) ([]BonusRow, error) {
	if rows, ok := a.cache.getBonus(boardClimbing, year); ok {
		return rows, nil
	}
	rows, err := a.bonusBoard(year, a.climbIDs, len(a.climbIDs))
	if err != nil {
		return nil, err
	}
	a.cache.setBonus(boardClimbing, year, rows)
	return rows, nil
}

// Descending returns the descending board. Unlike climbing, any one of the
// descent segments qualifies a season; missing segments simply do not
// contribute to the sum.
func (a *Aggregator) Descending(year int) ([]BonusRow, error) {
	if rows, ok := a.cache.getBonus(boardDescending, year); ok {
		return rows, nil
	}
	rows, err := a.bonusBoard(year, a.descentIDs, 1)
	if err != nil {
		return nil, err
	}
	a.cache.setBonus(boardDescending, year, rows)
	return rows, nil
}

// bonusBoard computes a segment-group board. A season qualifies when the
// rider has a resolved main-loop attempt for it and at least minSegments
// of the group were ridden that season.
func (a *Aggregator) bonusBoard(year int, groupIDs []int64, minSegments int) ([]BonusRow, error) {
	data, err := a.load(year)
	if err != nil {
		return nil, errors.Newf("computing bonus board for %d: %w", year, err).
			Component("leaderboard").
			Category(errors.CategoryDatabase).
			Context("race_year", year).
			Build()
	}

	// Seasons with a completed main loop, per rider.
	completed := make(map[int64]map[season.Key]bool)
	for i := range data.attempts {
		attempt := &data.attempts[i]
		if completed[attempt.AthleteID] == nil {
			completed[attempt.AthleteID] = make(map[season.Key]bool)
		}
		completed[attempt.AthleteID][attempt.SeasonKey()] = true
	}

	// Fastest time per (rider, season, segment), across activities.
	type riderSeason struct {
		athleteID int64
		key       season.Key
	}
	bestBySegment := make(map[riderSeason]map[int64]int64)
	inGroup := make(map[int64]bool, len(groupIDs))
	for _, id := range groupIDs {
		inGroup[id] = true
	}
	for i := range data.efforts {
		effort := &data.efforts[i]
		if !inGroup[effort.SegmentID] {
			continue
		}
		rs := riderSeason{effort.AthleteID, effort.SeasonKey()}
		if bestBySegment[rs] == nil {
			bestBySegment[rs] = make(map[int64]int64)
		}
		if best, ok := bestBySegment[rs][effort.SegmentID]; !ok || effort.ElapsedMs < best {
			bestBySegment[rs][effort.SegmentID] = effort.ElapsedMs
		}
	}

	byRider := make(map[int64]*BonusRow)
	for rs, segments := range bestBySegment {
		rider, ok := data.riders[rs.athleteID]
		if !ok {
			continue
		}
		if !completed[rs.athleteID][rs.key] {
			continue
		}
		if len(segments) < minSegments {
			continue
		}

		var sum int64
		for _, ms := range segments {
			sum += ms
		}

		row, exists := byRider[rs.athleteID]
		if !exists {
			row = &BonusRow{
				AthleteID:   rs.athleteID,
				DisplayName: rider.DisplayName,
				Seasons:     make(map[string]int64),
			}
			byRider[rs.athleteID] = row
		}
		row.Seasons[rs.key.String()] = sum
		row.TotalMs += sum
	}

	rows := make([]BonusRow, 0, len(byRider))
	for _, row := range byRider {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalMs != rows[j].TotalMs {
			return rows[i].TotalMs < rows[j].TotalMs
		}
		return rows[i].AthleteID < rows[j].AthleteID
	})
	return rows, nil
}

// Legacy returns the board under the original scoring rules: best three
// season times summed, minus a flat 600 second bonus when all four seasons
// were completed. Riders known to the series but without a single
// completed season rank last as DNF.
func (a *Aggregator) Legacy(year int) ([]LegacyRow, error) {
	if rows, ok := a.cache.getLegacy(year); ok {
		return rows, nil
	}

	data, err := a.load(year)
	if err != nil {
		return nil, errors.Newf("computing legacy board for %d: %w", year, err).
			Component("leaderboard").
			Category(errors.CategoryDatabase).
			Context("race_year", year).
			Build()
	}

	seasonMs := make(map[int64][]int64)
	for i := range data.attempts {
		attempt := &data.attempts[i]
		if _, ok := data.riders[attempt.AthleteID]; !ok {
			continue
		}
		seasonMs[attempt.AthleteID] = append(seasonMs[attempt.AthleteID], attempt.MainMs)
	}

	rows := make([]LegacyRow, 0, len(data.riders))
	for athleteID, rider := range data.riders {
		times := seasonMs[athleteID]
		row := LegacyRow{
			AthleteID:     athleteID,
			DisplayName:   rider.DisplayName,
			SeasonsRidden: len(times),
		}
		if len(times) == 0 {
			row.DNF = true
			rows = append(rows, row)
			continue
		}

		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		count := len(times)
		if count > 3 {
			count = 3
		}
		for _, ms := range times[:count] {
			row.BestThreeMs += ms
		}
		row.FinalMs = row.BestThreeMs
		if len(times) == 4 {
			row.BonusApplied = true
			row.FinalMs -= legacyBonusMs
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].DNF != rows[j].DNF {
			return !rows[i].DNF
		}
		if rows[i].FinalMs != rows[j].FinalMs {
			return rows[i].FinalMs < rows[j].FinalMs
		}
		return rows[i].AthleteID < rows[j].AthleteID
	})

	a.cache.setLegacy(year, rows)
	return rows, nil
}
