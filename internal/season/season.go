// Package season resolves season tokens into calendar bounds and computes
// the month windows a season's schedule pages cover.
package season

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidSeasonFormat is returned for tokens that are not "YYYY-NN".
var ErrInvalidSeasonFormat = errors.New("invalid season format")

// Season is a resolved season token. The regular season starts in the fall
// of StartYear and ends in the summer of EndYear.
type Season struct {
	StartYear int
	EndYear   int
}

// Parse resolves a token such as "2021-22" or "1999-00".
//
// The end year is built from the first two digits of the start year and
// the two-digit suffix, except for "00" which always rolls to StartYear+1.
func Parse(token string) (Season, error) {
	parts := strings.Split(strings.TrimSpace(token), "-")
	if len(parts) != 2 {
		return Season{}, fmt.Errorf("%w: %q must contain exactly one hyphen", ErrInvalidSeasonFormat, token)
	}

	if len(parts[0]) != 4 || !isDigits(parts[0]) {
		return Season{}, fmt.Errorf("%w: start year %q must be four digits", ErrInvalidSeasonFormat, parts[0])
	}
	startYear, err := strconv.Atoi(parts[0])
	if err != nil {
		return Season{}, fmt.Errorf("%w: start year %q is not an integer", ErrInvalidSeasonFormat, parts[0])
	}

	suffix := parts[1]
	if len(suffix) != 2 || !isDigits(suffix) {
		return Season{}, fmt.Errorf("%w: suffix %q must be two digits", ErrInvalidSeasonFormat, suffix)
	}

	var endYear int
	if suffix == "00" {
		endYear = startYear + 1
	} else {
		endYear, err = strconv.Atoi(parts[0][:2] + suffix)
		if err != nil {
			return Season{}, fmt.Errorf("%w: %q", ErrInvalidSeasonFormat, token)
		}
	}

	if endYear != startYear+1 {
		return Season{}, fmt.Errorf("%w: %q does not span consecutive years", ErrInvalidSeasonFormat, token)
	}

	return Season{StartYear: startYear, EndYear: endYear}, nil
}

// Current is the season in progress on now's calendar date, or the next
// one once the previous season's June window has closed.
func Current(now time.Time) Season {
	start := now.Year()
	if now.Month() < time.July {
		start--
	}
	return Season{StartYear: start, EndYear: start + 1}
}

// String renders the canonical token, e.g. "2021-22".
func (s Season) String() string {
	return fmt.Sprintf("%d-%02d", s.StartYear, s.EndYear%100)
}

// IsLeap reports whether year is a Gregorian leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
