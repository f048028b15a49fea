// Package season defines season keys, eligibility windows and the window
// resolver used to admit efforts into a season.
package season

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Name is one of the four series seasons.
type Name string

const (
	Fall   Name = "FALL"
	Winter Name = "WINTER"
	Spring Name = "SPRING"
	Summer Name = "SUMMER"
)

// Names lists all seasons in series order (the race year runs
// Fall through Summer).
var Names = [4]Name{Fall, Winter, Spring, Summer}

// Valid reports whether n is one of the four seasons.
func (n Name) Valid() bool {
	switch n {
	case Fall, Winter, Spring, Summer:
		return true
	}
	return false
}

// Key identifies a season: a calendar year plus a season name.
type Key struct {
	Year int
	Name Name
}

// String renders the key in its canonical "2025-FALL" form.
func (k Key) String() string {
	return fmt.Sprintf("%d-%s", k.Year, k.Name)
}

// ParseKey parses a canonical "2025-FALL" season key.
func ParseKey(s string) (Key, error) {
	year, name, ok := strings.Cut(s, "-")
	if !ok {
		return Key{}, fmt.Errorf("invalid season key %q", s)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return Key{}, fmt.Errorf("invalid season key %q: %w", s, err)
	}
	n := Name(strings.ToUpper(name))
	if !n.Valid() {
		return Key{}, fmt.Errorf("invalid season name %q", name)
	}
	return Key{Year: y, Name: n}, nil
}

// RaceYear returns the yearly bucket this season belongs to. Fall and
// Winter of calendar year N open race year N+1; Spring and Summer of
// year N close race year N.
func (k Key) RaceYear() int {
	switch k.Name {
	case Fall, Winter:
		return k.Year + 1
	default:
		return k.Year
	}
}

// KeysForRaceYear returns the four season keys making up a race year, in
// series order: Fall and Winter of the preceding calendar year, then
// Spring and Summer of the race year itself.
func KeysForRaceYear(year int) [4]Key {
	return [4]Key{
		{Year: year - 1, Name: Fall},
		{Year: year - 1, Name: Winter},
		{Year: year, Name: Spring},
		{Year: year, Name: Summer},
	}
}

// Interval is a single eligibility window.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the interval, inclusive on both
// ends.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && !t.After(i.End)
}

// Window is a season's admin-configured base eligibility interval.
type Window struct {
	Key   Key
	Start time.Time
	End   time.Time
}

// Override is an additional eligibility interval for a season, e.g. a
// trail-closure makeup day.
type Override struct {
	Key    Key
	Start  time.Time
	End    time.Time
	Reason string
}
