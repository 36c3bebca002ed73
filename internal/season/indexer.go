package season

import (
	"time"

	"github.com/veerylabs/rangemap/internal/cube"
	"github.com/veerylabs/rangemap/internal/raster"
)

// ReferenceYear is the calendar year the 52 weekly bands are anchored to.
const ReferenceYear = 2023

// originMonth/originDay anchor band 1. January 4 is the conventional
// mid-week anchor of ISO week 1; subsequent bands follow at 7-day steps.
const (
	originMonth = time.January
	originDay   = 4
)

// BandDate returns the anchor date of the 1-indexed weekly band.
func BandDate(band int) time.Time {
	origin := time.Date(ReferenceYear, originMonth, originDay, 0, 0, 0, 0, time.UTC)
	return origin.AddDate(0, 0, 7*(band-1))
}

// BandDates returns the anchor dates of all 52 bands.
func BandDates() []time.Time {
	dates := make([]time.Time, cube.WeeksPerYear)
	for i := range dates {
		dates[i] = BandDate(i + 1)
	}
	return dates
}

// contains tests season membership of a date against a (start, end) range.
// A wrapped range (start after end) crosses the year boundary: membership is
// d >= start OR d <= end.
func contains(d time.Time, start, end Date) bool {
	day := d.YearDay()
	s, e := start.DayOfYear(), end.DayOfYear()
	if s <= e {
		return s <= day && day <= e
	}
	return day >= s || day <= e
}

// Assign labels every band of the cube with a season, or Unassigned when the
// band date falls in no reviewed season. Definitions with no dates are
// skipped entirely. Membership is tested in AssignableNames order and the
// first match wins, so overlapping definitions resolve deterministically and
// a dated year_round definition only claims bands left over by the four
// seasonal ranges.
func Assign(species string, defs []Definition) ([]Name, error) {
	if err := Validate(species, defs); err != nil {
		return nil, err
	}

	byName := map[Name]Definition{}
	for _, d := range defs {
		byName[d.Name] = d
	}

	labels := make([]Name, cube.WeeksPerYear)
	for i := range labels {
		d := BandDate(i + 1)
		labels[i] = Unassigned
		for _, name := range AssignableNames {
			def, ok := byName[name]
			if !ok || def.Start == nil {
				continue
			}
			if contains(d, *def.Start, *def.End) {
				labels[i] = name
				break
			}
		}
	}
	return labels, nil
}

// Working holds the cube bands that survived season assignment, with band
// dates and labels shrunk in lockstep. The annual composite never uses this:
// it always averages the full 52-band cube.
type Working struct {
	Bands  []raster.Grid
	Dates  []time.Time
	Labels []Name
}

// Filter drops unassigned bands from the cube, keeping bands, dates, and
// labels aligned.
func Filter(c cube.Cube, labels []Name) Working {
	w := Working{}
	for i, label := range labels {
		if label == Unassigned {
			continue
		}
		w.Bands = append(w.Bands, c.Bands[i])
		w.Dates = append(w.Dates, BandDate(i+1))
		w.Labels = append(w.Labels, label)
	}
	return w
}
