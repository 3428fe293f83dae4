package season

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the on-disk and on-wire date format.
const DateLayout = "2006-01-02"

var (
	// ErrInvalidDateRange is returned when a range starts after it ends.
	ErrInvalidDateRange = errors.New("invalid date range")
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("invalid date")
)

// monthSpan is the static part of a month window. Year and the February
// end day are filled in per season.
type monthSpan struct {
	name     string
	month    time.Month
	firstDay int
	lastDay  int
	endYear  bool
}

// Schedule months in the order basketball-reference lists them.
var monthSpans = []monthSpan{
	{"september", time.September, 1, 30, false},
	{"october", time.October, 1, 31, false},
	{"november", time.November, 1, 30, false},
	{"december", time.December, 1, 31, false},
	{"january", time.January, 1, 31, true},
	{"february", time.February, 1, 28, true},
	{"march", time.March, 1, 31, true},
	{"april", time.April, 1, 30, true},
	{"may", time.May, 1, 31, true},
	{"june", time.June, 1, 30, true},
}

// MonthWindow is the inclusive date span of one schedule month.
type MonthWindow struct {
	Month string
	Start time.Time
	End   time.Time
}

// StartDate renders Start as YYYY-MM-DD.
func (w MonthWindow) StartDate() string { return w.Start.Format(DateLayout) }

// EndDate renders End as YYYY-MM-DD.
func (w MonthWindow) EndDate() string { return w.End.Format(DateLayout) }

// Windows returns the September through June windows for the season.
func (s Season) Windows() []MonthWindow {
	windows := make([]MonthWindow, 0, len(monthSpans))
	for _, span := range monthSpans {
		windows = append(windows, s.window(span))
	}
	return windows
}

// Window returns the window for a month name such as "February".
func (s Season) Window(month string) (MonthWindow, bool) {
	name := strings.ToLower(strings.TrimSpace(month))
	for _, span := range monthSpans {
		if span.name == name {
			return s.window(span), true
		}
	}
	return MonthWindow{}, false
}

func (s Season) window(span monthSpan) MonthWindow {
	year := s.StartYear
	if span.endYear {
		year = s.EndYear
	}

	lastDay := span.lastDay
	if span.month == time.February && IsLeap(year) {
		lastDay = 29
	}

	return MonthWindow{
		Month: span.name,
		Start: time.Date(year, span.month, span.firstDay, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, span.month, lastDay, 0, 0, 0, 0, time.UTC),
	}
}

// DateRange is an inclusive caller-supplied date filter.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses YYYY-MM-DD bounds. It returns nil when either bound
// is empty, which disables date filtering.
func NewDateRange(start, end string) (*DateRange, error) {
	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" || end == "" {
		return nil, nil
	}

	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}

	rng := &DateRange{Start: s, End: e}
	if err := rng.Validate(); err != nil {
		return nil, err
	}
	return rng, nil
}

// SingleDay is a range covering exactly one date.
func SingleDay(day time.Time) *DateRange {
	d := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return &DateRange{Start: d, End: d}
}

// Validate rejects ranges whose start falls after their end.
func (r *DateRange) Validate() error {
	if r == nil {
		return nil
	}
	if r.Start.After(r.End) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidDateRange,
			r.Start.Format(DateLayout), r.End.Format(DateLayout))
	}
	return nil
}

// Contains reports whether day falls inside the range. A nil range
// contains every day.
func (r *DateRange) Contains(day time.Time) bool {
	if r == nil {
		return true
	}
	return !day.Before(r.Start) && !day.After(r.End)
}

// String renders the range for logs.
func (r *DateRange) String() string {
	if r == nil {
		return "full season"
	}
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

// ParseDate parses a strict YYYY-MM-DD date. Values that do not round-trip
// (e.g. "2021-2-3") are rejected.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, value)
	if err != nil || t.Format(DateLayout) != value {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return t, nil
}
