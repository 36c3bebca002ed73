// Package season maps the 52 weekly cube bands to calendar dates and to
// biologically defined seasons.
//
// Season date ranges come from an external reference table keyed by species.
// A range may wrap the year boundary (e.g. nonbreeding Dec 1 – Jan 31). A
// season with no dates did not pass expert review and contributes nothing;
// a season with exactly one date is a configuration error.
package season

import (
	"fmt"
	"time"
)

// Name identifies one of the fixed biological seasons.
type Name string

const (
	Nonbreeding           Name = "nonbreeding"
	PrebreedingMigration  Name = "prebreeding_migration"
	Breeding              Name = "breeding"
	PostbreedingMigration Name = "postbreeding_migration"
	YearRound             Name = "year_round"

	// Unassigned marks a band whose date falls in no reviewed season.
	Unassigned Name = ""
)

// SeasonalNames lists the four directional seasons in canonical order.
var SeasonalNames = []Name{Nonbreeding, PrebreedingMigration, Breeding, PostbreedingMigration}

// AssignableNames is the order weekly band membership is tested in. The four
// seasonal names come first so they take precedence; year_round labels only
// the bands no seasonal range claims, which for resident species (year_round
// dated, seasonal definitions undated) is every band.
var AssignableNames = []Name{Nonbreeding, PrebreedingMigration, Breeding, PostbreedingMigration, YearRound}

// Valid reports whether n is a recognized season name.
func (n Name) Valid() bool {
	switch n {
	case Nonbreeding, PrebreedingMigration, Breeding, PostbreedingMigration, YearRound:
		return true
	}
	return false
}

// Date is a month/day within the reference year.
type Date struct {
	Month time.Month
	Day   int
}

// DayOfYear returns the 1-based ordinal day within the reference year.
func (d Date) DayOfYear() int {
	return d.In(ReferenceYear).YearDay()
}

// In places the date in the given calendar year.
func (d Date) In(year int) time.Time {
	return time.Date(year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string { return fmt.Sprintf("%02d-%02d", int(d.Month), d.Day) }

// Definition is one reviewed season for one species. Start and End are both
// set or both nil; both-nil means the season failed review and is skipped.
type Definition struct {
	Name  Name
	Start *Date
	End   *Date
}

// ConfigError is a fatal season-table problem: an unknown season name or a
// definition with exactly one of start/end present. It aborts the per-species
// run with no partial composites.
type ConfigError struct {
	Species string
	Season  Name
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("season: species %q, season %q: %s", e.Species, e.Season, e.Reason)
}

// Validate checks a definition set for a species.
func Validate(species string, defs []Definition) error {
	seen := map[Name]bool{}
	for _, d := range defs {
		if !d.Name.Valid() {
			return &ConfigError{Species: species, Season: d.Name, Reason: "unsupported season name"}
		}
		if seen[d.Name] {
			return &ConfigError{Species: species, Season: d.Name, Reason: "duplicate season definition"}
		}
		seen[d.Name] = true
		if (d.Start == nil) != (d.End == nil) {
			return &ConfigError{Species: species, Season: d.Name, Reason: "start and end must both be present or both absent"}
		}
	}
	return nil
}
