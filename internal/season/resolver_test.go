package season

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWindowStore is an in-memory WindowStore for resolver tests.
type fakeWindowStore struct {
	windows   []Window
	overrides []Override
	err       error
}

func (f *fakeWindowStore) GetSeasonWindow(key Key) (*Window, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.windows {
		if f.windows[i].Key == key {
			return &f.windows[i], nil
		}
	}
	return nil, nil
}

func (f *fakeWindowStore) GetSeasonOverrides(key Key) ([]Override, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []Override
	for _, o := range f.overrides {
		if o.Key == key {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeWindowStore) GetSeasonWindows() ([]Window, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Window, len(f.windows))
	copy(out, f.windows)
	return out, nil
}

func utc(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestEffectiveWindows_BasePlusOverride(t *testing.T) {
	t.Parallel()

	key := Key{Year: 2025, Name: Fall}
	store := &fakeWindowStore{
		windows: []Window{
			{Key: key, Start: utc(2025, 9, 1), End: utc(2025, 11, 30)},
		},
		overrides: []Override{
			{Key: key, Start: utc(2025, 12, 15), End: utc(2025, 12, 16), Reason: "makeup"},
		},
	}

	r := NewResolver(store)
	intervals, err := r.EffectiveWindows(key)
	require.NoError(t, err)
	require.Len(t, intervals, 2)
	assert.Equal(t, utc(2025, 9, 1), intervals[0].Start)
	assert.Equal(t, utc(2025, 12, 15), intervals[1].Start)

	// A makeup day outside the base window is still eligible.
	makeupRide := time.Date(2025, 12, 15, 10, 0, 0, 0, time.UTC)
	eligible := false
	for _, iv := range intervals {
		if iv.Contains(makeupRide) {
			eligible = true
		}
	}
	assert.True(t, eligible)
}

func TestEffectiveWindows_SeasonNotOpen(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeWindowStore{})
	intervals, err := r.EffectiveWindows(Key{Year: 2031, Name: Summer})
	require.NoError(t, err, "missing window is not an error")
	assert.Empty(t, intervals)
}

func TestEffectiveWindows_StoreFailure(t *testing.T) {
	t.Parallel()

	r := NewResolver(&fakeWindowStore{err: errors.New("connection refused")})
	_, err := r.EffectiveWindows(Key{Year: 2025, Name: Fall})
	require.Error(t, err, "backend failure must propagate")
}

func TestSeasonKeyFor(t *testing.T) {
	t.Parallel()

	store := &fakeWindowStore{
		windows: []Window{
			{Key: Key{Year: 2025, Name: Fall}, Start: utc(2025, 9, 1), End: utc(2025, 11, 30)},
			{Key: Key{Year: 2025, Name: Winter}, Start: utc(2025, 12, 1), End: utc(2026, 2, 28)},
		},
	}
	r := NewResolver(store)

	key, ok, err := r.SeasonKeyFor(utc(2025, 10, 10))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Key{Year: 2025, Name: Fall}, key)

	// Boundary instants belong to the window on both ends.
	key, ok, err = r.SeasonKeyFor(utc(2025, 12, 1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Key{Year: 2025, Name: Winter}, key)

	_, ok, err = r.SeasonKeyFor(utc(2025, 8, 1))
	require.NoError(t, err)
	assert.False(t, ok, "gap between windows classifies as no season")
}

func TestSeasonKeyFor_OverlappingWindowsDeterministic(t *testing.T) {
	t.Parallel()

	// Overlapping base windows are a misconfiguration; the resolver is not
	// required to pick a "correct" season, only the same one every time.
	store := &fakeWindowStore{
		windows: []Window{
			{Key: Key{Year: 2025, Name: Winter}, Start: utc(2025, 11, 15), End: utc(2026, 2, 28)},
			{Key: Key{Year: 2025, Name: Fall}, Start: utc(2025, 9, 1), End: utc(2025, 11, 30)},
		},
	}
	r := NewResolver(store)

	inBoth := utc(2025, 11, 20)
	first, ok, err := r.SeasonKeyFor(inBoth)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 10; i++ {
		key, ok, err := r.SeasonKeyFor(inBoth)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, first, key)
	}
}

func TestSeasonKeyFor_IgnoresOverrides(t *testing.T) {
	t.Parallel()

	key := Key{Year: 2025, Name: Fall}
	store := &fakeWindowStore{
		windows: []Window{
			{Key: key, Start: utc(2025, 9, 1), End: utc(2025, 11, 30)},
		},
		overrides: []Override{
			{Key: key, Start: utc(2025, 12, 15), End: utc(2025, 12, 16), Reason: "makeup"},
		},
	}
	r := NewResolver(store)

	_, ok, err := r.SeasonKeyFor(utc(2025, 12, 15))
	require.NoError(t, err)
	assert.False(t, ok, "classification consults base windows only")
}
