package strava

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/switchbacklabs/towers-tt/internal/errors"
)

const testBaseURL = "https://strava.test/api/v3"

// newTestClient returns a client with mocked transport and no backoff
// delays.
func newTestClient(t *testing.T) *Client {
	t.Helper()

	client, err := NewClient(Config{
		BaseURL:     testBaseURL,
		Timeout:     5 * time.Second,
		CacheTTL:    time.Minute,
		RateLimitMS: 1,
		PerPage:     2,
		Retry: RetryPolicy{
			MaxAttempts: 3,
			Backoff:     func(int) time.Duration { return 0 },
		},
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	httpmock.ActivateNonDefault(client.httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return client
}

func TestListActivityIDs_Pagination(t *testing.T) {
	client := newTestClient(t)

	// Two full pages then a short page; per_page is 2 in the test config.
	pages := map[string]string{
		"1": `[{"id": 100, "start_date": "2025-09-14T15:00:00Z"}, {"id": 101, "start_date": "2025-09-15T15:00:00Z"}]`,
		"2": `[{"id": 102, "start_date": "2025-09-16T15:00:00Z"}, {"id": 103, "start_date": "2025-09-17T15:00:00Z"}]`,
		"3": `[{"id": 104, "start_date": "2025-09-18T15:00:00Z"}]`,
	}
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/athlete/activities",
		func(req *http.Request) (*http.Response, error) {
			body, ok := pages[req.URL.Query().Get("page")]
			if !ok {
				return httpmock.NewStringResponse(http.StatusOK, `[]`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, body), nil
		})

	ids, err := client.ListActivityIDs(context.Background(), "token",
		time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, []int64{100, 101, 102, 103, 104}, ids)
}

func TestListActivityIDs_RetriesTransientFailure(t *testing.T) {
	client := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/athlete/activities",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusServiceUnavailable, `{"message":"upstream down"}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `[{"id": 100, "start_date": "2025-09-14T15:00:00Z"}]`), nil
		})

	ids, err := client.ListActivityIDs(context.Background(), "token",
		time.Now().Add(-time.Hour), time.Now())

	require.NoError(t, err)
	assert.Equal(t, []int64{100}, ids)
	assert.Equal(t, 2, calls)
}

func TestListActivityIDs_ExpiredTokenNotRetried(t *testing.T) {
	client := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/athlete/activities",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusUnauthorized, `{"message":"Authorization Error"}`), nil
		})

	_, err := client.ListActivityIDs(context.Background(), "stale-token",
		time.Now().Add(-time.Hour), time.Now())

	require.Error(t, err)
	assert.Equal(t, errors.CategoryTokenExpired, errors.CategoryOf(err))
	assert.Equal(t, 1, calls, "credential errors are fatal, never retried")
}

func TestGetActivityDetail_Caching(t *testing.T) {
	client := newTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/activities/100",
		func(req *http.Request) (*http.Response, error) {
			calls++
			return httpmock.NewStringResponse(http.StatusOK, `{
				"id": 100,
				"start_date": "2025-09-14T15:00:00Z",
				"segment_efforts": [
					{"id": 1, "segment": {"id": 629046}, "activity": {"id": 100}, "elapsed_time": 2953}
				]
			}`), nil
		})

	first, err := client.GetActivityDetail(context.Background(), "token", 100)
	require.NoError(t, err)
	require.Len(t, first.SegmentEfforts, 1)
	assert.Equal(t, int64(629046), first.SegmentEfforts[0].Segment.ID)
	assert.Equal(t, int64(2953), first.SegmentEfforts[0].ElapsedTime)

	second, err := client.GetActivityDetail(context.Background(), "token", 100)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls, "details are cached")
}

func TestGetActivityDetail_SendsBearerToken(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/activities/100",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "Bearer rider-token", req.Header.Get("Authorization"))
			return httpmock.NewStringResponse(http.StatusOK, `{"id": 100}`), nil
		})

	_, err := client.GetActivityDetail(context.Background(), "rider-token", 100)
	require.NoError(t, err)
}

func TestListSegmentEffortHistory_FallbackEndpoint(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/athletes/42/segment_efforts",
		httpmock.NewStringResponder(http.StatusNotFound, `{"message":"Record Not Found"}`))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/segments/629046/all_efforts",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"id": 1, "segment": {"id": 629046}, "activity": {"id": 100}, "elapsed_time": 2953, "start_date_local": "2025-09-14T08:00:00Z"}
		]`))

	efforts, err := client.ListSegmentEffortHistory(context.Background(), "token", 42, 629046,
		time.Date(2014, 9, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, efforts, 1)
	assert.Equal(t, int64(100), efforts[0].Activity.ID)
}

func TestListSegmentEffortHistory_BothEndpointsFail(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/athletes/42/segment_efforts",
		httpmock.NewStringResponder(http.StatusNotFound, `{"message":"Record Not Found"}`))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/segments/629046/all_efforts",
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"message":"boom"}`))

	_, err := client.ListSegmentEffortHistory(context.Background(), "token", 42, 629046, time.Now())
	require.Error(t, err)
}

func TestListSegmentEffortHistory_PrimaryPagination(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/athletes/42/segment_efforts",
		func(req *http.Request) (*http.Response, error) {
			page := req.URL.Query().Get("page")
			if page == "1" {
				return httpmock.NewStringResponse(http.StatusOK, `[
					{"id": 1, "segment": {"id": 629046}, "activity": {"id": 100}, "elapsed_time": 2953},
					{"id": 2, "segment": {"id": 629046}, "activity": {"id": 101}, "elapsed_time": 3001}
				]`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `[]`), nil
		})

	efforts, err := client.ListSegmentEffortHistory(context.Background(), "token", 42, 629046, time.Now())
	require.NoError(t, err)
	assert.Len(t, efforts, 2)
}

func TestCategoryForStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   errors.ErrorCategory
	}{
		{http.StatusUnauthorized, errors.CategoryTokenExpired},
		{http.StatusForbidden, errors.CategoryTokenExpired},
		{http.StatusTooManyRequests, errors.CategoryRateLimit},
		{http.StatusNotFound, errors.CategoryNotFound},
		{http.StatusInternalServerError, errors.CategoryNetwork},
		{http.StatusBadGateway, errors.CategoryNetwork},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, categoryForStatus(tt.status))
		})
	}
}
