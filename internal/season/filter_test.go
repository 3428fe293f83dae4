package season

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schedulePages() []MonthPage {
	names := []string{"october", "november", "december", "january", "february", "march", "april", "may", "june"}
	pages := make([]MonthPage, 0, len(names))
	for _, name := range names {
		pages = append(pages, MonthPage{Month: name, URL: "/leagues/NBA_2022_games-" + name + ".html"})
	}
	return pages
}

func months(pages []MonthPage) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.Month)
	}
	return out
}

func TestFilterRelevantNoRangeIsIdentity(t *testing.T) {
	pages := schedulePages()
	got, err := FilterRelevant(pages, nil, mustParse(t, "2021-22"))
	require.NoError(t, err)
	assert.Equal(t, pages, got)
}

func TestFilterRelevant(t *testing.T) {
	s := mustParse(t, "2021-22")

	tests := []struct {
		name  string
		start string
		end   string
		want  []string
	}{
		{"single day", "2021-10-19", "2021-10-20", []string{"october"}},
		{"spans new year", "2021-12-15", "2022-01-10", []string{"december", "january"}},
		{"window boundary", "2021-11-30", "2021-12-01", []string{"november", "december"}},
		{"whole season", "2021-09-01", "2022-06-30", months(schedulePages())},
		{"offseason", "2022-07-01", "2022-08-01", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng, err := NewDateRange(tt.start, tt.end)
			require.NoError(t, err)

			got, err := FilterRelevant(schedulePages(), rng, s)
			require.NoError(t, err)
			assert.Equal(t, tt.want, months(got))
		})
	}
}

func TestFilterRelevantPreservesOrderAndSubset(t *testing.T) {
	pages := schedulePages()
	rng, err := NewDateRange("2022-02-10", "2022-04-02")
	require.NoError(t, err)

	got, err := FilterRelevant(pages, rng, mustParse(t, "2021-22"))
	require.NoError(t, err)
	assert.Equal(t, []string{"february", "march", "april"}, months(got))
	for _, p := range got {
		assert.Contains(t, pages, p)
	}
}

func TestFilterRelevantRejectsInvertedRange(t *testing.T) {
	rng := &DateRange{
		Start: mustParse(t, "2021-22").Windows()[2].Start,
		End:   mustParse(t, "2021-22").Windows()[1].Start,
	}
	_, err := FilterRelevant(schedulePages(), rng, mustParse(t, "2021-22"))
	assert.ErrorIs(t, err, ErrInvalidDateRange)
}

func TestFilterRelevantSkipsUnknownMonths(t *testing.T) {
	pages := append(schedulePages(), MonthPage{Month: "july", URL: "/july"})
	rng, err := NewDateRange("2022-06-01", "2022-07-31")
	require.NoError(t, err)

	got, err := FilterRelevant(pages, rng, mustParse(t, "2021-22"))
	require.NoError(t, err)
	assert.Equal(t, []string{"june"}, months(got))
}
