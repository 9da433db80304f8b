package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/personal/ad-lifecycle/internal/domain/ad"
)

var ErrInvalidDuration = errors.New("duration must be a positive integer")

// ComputeEndDate adds value units of unit to start. Minutes and hours are
// fixed lengths; days, weeks and months follow the calendar of start's
// location. Month addition clamps to the last day of the target month, so
// Jan 31 plus one month is Feb 28 or 29.
func ComputeEndDate(start time.Time, value int, unit ad.DurationUnit) (time.Time, error) {
	if value <= 0 {
		return time.Time{}, fmt.Errorf("%w: got %d", ErrInvalidDuration, value)
	}

	switch unit {
	case ad.DurationMinutes:
		return start.Add(time.Duration(value) * time.Minute), nil
	case ad.DurationHours:
		return start.Add(time.Duration(value) * time.Hour), nil
	case ad.DurationDays:
		return start.AddDate(0, 0, value), nil
	case ad.DurationWeeks:
		return start.AddDate(0, 0, 7*value), nil
	case ad.DurationMonths:
		return addMonthsClamped(start, value), nil
	default:
		return time.Time{}, fmt.Errorf("%w: duration unit %q", ad.ErrInvalidEnumValue, unit)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	// Normalise to the first of the target month, then clamp the day
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := daysIn(first.Year(), first.Month(), t.Location())
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
