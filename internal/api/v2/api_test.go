package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchbacklabs/towers-tt/internal/attempt"
	"github.com/switchbacklabs/towers-tt/internal/conf"
	"github.com/switchbacklabs/towers-tt/internal/datastore"
	"github.com/switchbacklabs/towers-tt/internal/history"
	"github.com/switchbacklabs/towers-tt/internal/leaderboard"
	"github.com/switchbacklabs/towers-tt/internal/season"
	"github.com/switchbacklabs/towers-tt/internal/strava"
)

type fakeActivitySource struct {
	ids     []int64
	details map[int64]*strava.DetailedActivity
	efforts []strava.SegmentEffort
}

func (f *fakeActivitySource) ListActivityIDs(context.Context, string, time.Time, time.Time) ([]int64, error) {
	return f.ids, nil
}

func (f *fakeActivitySource) GetActivityDetail(_ context.Context, _ string, activityID int64) (*strava.DetailedActivity, error) {
	return f.details[activityID], nil
}

func (f *fakeActivitySource) ListSegmentEffortHistory(context.Context, string, int64, int64, time.Time) ([]strava.SegmentEffort, error) {
	return f.efforts, nil
}

func testAPISettings() *conf.Settings {
	return &conf.Settings{
		Main: conf.MainSettings{Name: "Towers-TT"},
		Segments: conf.SegmentsSettings{
			MainID:     629046,
			ClimbIDs:   []int64{630272, 633871},
			DescentIDs: []int64{631703, 635068, 636129},
		},
		Import: conf.ImportSettings{StartDate: "2014-09-01"},
		Output: conf.OutputSettings{SQLite: conf.SQLiteSettings{Enabled: true, Path: ":memory:"}},
	}
}

// newTestController wires a controller against an in-memory store and a
// canned upstream.
func newTestController(t *testing.T, source *fakeActivitySource) (*Controller, *datastore.SQLiteStore) {
	t.Helper()

	settings := testAPISettings()
	ds := &datastore.SQLiteStore{Settings: settings}
	require.NoError(t, ds.Open())
	t.Cleanup(func() { _ = ds.Close() })

	windows := season.NewResolver(ds)
	selector := attempt.NewSelector(windows, source, ds, settings)
	importer := history.NewImporter(source, ds, windows, settings)
	boards := leaderboard.NewAggregator(ds, settings)

	e := echo.New()
	controller := New(e, ds, settings, selector, importer, boards, nil)
	t.Cleanup(controller.Shutdown)

	// Fall 2025 is open, rider 42 is registered.
	require.NoError(t, ds.DB.Create(&datastore.SeasonWindow{
		Year: 2025, Season: string(season.Fall),
		StartTime: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 11, 30, 23, 59, 59, 0, time.UTC),
	}).Error)
	require.NoError(t, ds.SaveRider(&datastore.Rider{
		AthleteID: 42, DisplayName: "Jo Moser", PublicConsent: true, AccessToken: "tok",
	}))

	return controller, ds
}

func doRequest(c *Controller, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, http.NoBody)
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	c, _ := newTestController(t, &fakeActivitySource{})

	rec := doRequest(c, http.MethodGet, "/api/v2/health")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "Towers-TT", body["name"])
}

func TestResolveRider(t *testing.T) {
	source := &fakeActivitySource{
		ids: []int64{100},
		details: map[int64]*strava.DetailedActivity{
			100: {
				ID:        100,
				StartDate: time.Date(2025, 9, 14, 15, 0, 0, 0, time.UTC),
				SegmentEfforts: []strava.SegmentEffort{
					{Segment: strava.SegmentRef{ID: 629046}, ElapsedTime: 2953},
				},
			},
		},
	}
	c, ds := newTestController(t, source)

	rec := doRequest(c, http.MethodPost, "/api/v2/riders/42/resolve?season=2025-FALL")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2953000), body["main_ms"])
	assert.Equal(t, "2025-FALL", body["season_key"])
	assert.Equal(t, float64(2026), body["race_year"])

	stored, err := ds.GetAttempt(42, season.Key{Year: 2025, Name: season.Fall})
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(100), stored.ActivityID)
}

func TestResolveRider_UnknownRider(t *testing.T) {
	c, _ := newTestController(t, &fakeActivitySource{})

	rec := doRequest(c, http.MethodPost, "/api/v2/riders/7/resolve?season=2025-FALL")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResolveRider_InvalidSeason(t *testing.T) {
	c, _ := newTestController(t, &fakeActivitySource{})

	rec := doRequest(c, http.MethodPost, "/api/v2/riders/42/resolve?season=sometime")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResolveRider_SeasonNotOpen(t *testing.T) {
	c, _ := newTestController(t, &fakeActivitySource{})

	rec := doRequest(c, http.MethodPost, "/api/v2/riders/42/resolve?season=2030-FALL")

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CorrelationID)
	assert.Equal(t, "Season has no eligibility window", body.Message)
}

func TestImportAndHistory(t *testing.T) {
	source := &fakeActivitySource{
		efforts: []strava.SegmentEffort{
			{
				ID:             1,
				Segment:        strava.SegmentRef{ID: 629046},
				Activity:       strava.ActivityRef{ID: 100},
				ElapsedTime:    2953,
				StartDateLocal: time.Date(2025, 9, 14, 8, 0, 0, 0, time.UTC),
			},
		},
	}
	c, _ := newTestController(t, source)

	rec := doRequest(c, http.MethodPost, "/api/v2/riders/42/import")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var importBody map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &importBody))
	assert.Equal(t, float64(1), importBody["imported"])
	assert.Equal(t, float64(0), importBody["skipped"])

	rec = doRequest(c, http.MethodGet, "/api/v2/riders/42/history?race_year=2026")
	require.Equal(t, http.StatusOK, rec.Code)
	var historyBody struct {
		AthleteID int64                     `json:"athlete_id"`
		Efforts   []datastore.AttemptEffort `json:"efforts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &historyBody))
	require.Len(t, historyBody.Efforts, 1)
	assert.Equal(t, int64(2953000), historyBody.Efforts[0].MainMs)
}

func TestLeaderboardEndpoints(t *testing.T) {
	source := &fakeActivitySource{
		ids: []int64{100},
		details: map[int64]*strava.DetailedActivity{
			100: {
				ID:        100,
				StartDate: time.Date(2025, 9, 14, 15, 0, 0, 0, time.UTC),
				SegmentEfforts: []strava.SegmentEffort{
					{Segment: strava.SegmentRef{ID: 629046}, ElapsedTime: 2953},
				},
			},
		},
	}
	c, _ := newTestController(t, source)

	rec := doRequest(c, http.MethodPost, "/api/v2/riders/42/resolve?season=2025-FALL")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v2/leaderboard/overall?year=2026")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		RaceYear int                      `json:"race_year"`
		Board    string                   `json:"board"`
		Rows     []leaderboard.OverallRow `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2026, body.RaceYear)
	require.Len(t, body.Rows, 1)
	assert.Equal(t, "Jo Moser", body.Rows[0].DisplayName)

	rec = doRequest(c, http.MethodGet, "/api/v2/leaderboard/legacy?year=2026")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v2/leaderboard/overall?year=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
