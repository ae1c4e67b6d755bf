package shared

import (
	"errors"
	"fmt"
	"time"
)

const (
	// DayLayout is the format layout for calendar days.
	DayLayout = "2006-01-02"
	// DateLayout is the format layout for parsing timestamped dates.
	DateLayout = "2006-01-02 15:04:05"
	// NewYorkLocation is the time zone of the tracked exchanges.
	NewYorkLocation = "America/New_York"
)

// NewYorkTime returns the current time in new york (EST/EDT adjusted automatically).
func NewYorkTime() (time.Time, *time.Location, error) {
	loc, err := time.LoadLocation(NewYorkLocation)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("loading new york timezone: %w", err)
	}

	now := time.Now().In(loc)
	return now, loc, nil
}

// CalendarDay truncates the provided time to its calendar day in UTC.
func CalendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar day from the provided string. Timestamped dates
// are truncated to their day.
func ParseDate(s string) (time.Time, error) {
	layouts := []string{DayLayout, DateLayout, time.RFC3339}
	for idx := range layouts {
		t, err := time.Parse(layouts[idx], s)
		if err == nil {
			return CalendarDay(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("unknown date format: %q", s)
}

// DateRange represents an inclusive range of calendar days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange initializes a date range covering the provided number of days
// ending on the provided day.
func NewDateRange(end time.Time, days int) DateRange {
	endDay := CalendarDay(end)
	if days < 1 {
		days = 1
	}

	return DateRange{
		Start: endDay.AddDate(0, 0, -(days - 1)),
		End:   endDay,
	}
}

// Validate asserts the date range is sane.
func (r *DateRange) Validate() error {
	var errs error
	if r.Start.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("date range start cannot be zero"))
	}
	if r.End.IsZero() {
		errs = errors.Join(errs, fmt.Errorf("date range end cannot be zero"))
	}
	if r.Start.After(r.End) {
		errs = errors.Join(errs, fmt.Errorf("date range start %s is after end %s",
			r.Start.Format(DayLayout), r.End.Format(DayLayout)))
	}

	return errs
}

// String stringifies the provided date range.
func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(DayLayout), r.End.Format(DayLayout))
}
