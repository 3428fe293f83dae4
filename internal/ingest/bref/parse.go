package bref

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/teams"
)

// ErrMalformedBoxScore is returned when a box score page does not hold
// exactly two team tables.
var ErrMalformedBoxScore = errors.New("malformed box score")

const captionSuffix = "Basic and Advanced Stats Table"

// ScheduleGame is one completed game listed on a month schedule page.
type ScheduleGame struct {
	Date        string
	BoxScoreURL string
}

// ParseMonthPages reads the month navigation links of a season schedule.
func ParseMonthPages(r io.Reader, baseURL string) ([]season.MonthPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var pages []season.MonthPage
	seen := make(map[string]bool)
	doc.Find("div.filter a[href]").Each(func(_ int, a *goquery.Selection) {
		month := strings.ToLower(strings.TrimSpace(a.Text()))
		href, _ := a.Attr("href")
		if month == "" || seen[month] {
			return
		}
		seen[month] = true
		pages = append(pages, season.MonthPage{Month: month, URL: resolve(baseURL, href)})
	})
	return pages, nil
}

// ParseSchedule lists the games of a month page that have a box score and
// fall inside rng. A nil range keeps every game.
func ParseSchedule(r io.Reader, baseURL string, rng *season.DateRange) ([]ScheduleGame, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var games []ScheduleGame
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		csk, ok := row.Find(`th[data-stat="date_game"]`).Attr("csk")
		if !ok || len(csk) < 8 {
			return
		}
		day, err := time.Parse("20060102", csk[:8])
		if err != nil || !rng.Contains(day) {
			return
		}

		href, ok := row.Find(`td[data-stat="box_score_text"] a[href]`).First().Attr("href")
		if !ok {
			return
		}
		games = append(games, ScheduleGame{
			Date:        day.Format(season.DateLayout),
			BoxScoreURL: resolve(baseURL, href),
		})
	})
	return games, nil
}

// ParseBoxScore extracts one raw row per listed player from a box score
// page. Team names are left as captioned; the home flag comes from the
// home code in link.
func ParseBoxScore(r io.Reader, date, link string) ([]ingest.RawStatRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	tables := doc.Find(`table[id$="-game-basic"]`)
	if tables.Length() != 2 {
		return nil, fmt.Errorf("%w: %s has %d basic tables", ErrMalformedBoxScore, link, tables.Length())
	}

	names := make([]string, 2)
	tables.Each(func(i int, t *goquery.Selection) {
		names[i] = teamFromCaption(t.Find("caption").First().Text())
	})
	if names[0] == "" || names[1] == "" {
		return nil, fmt.Errorf("%w: %s is missing team captions", ErrMalformedBoxScore, link)
	}

	homeCode, _ := HomeTeamFromLink(link)

	var rows []ingest.RawStatRow
	tables.Each(func(i int, t *goquery.Selection) {
		team, opponent := names[i], names[1-i]
		isHome := false
		if code, err := teams.Normalize(team); err == nil {
			isHome = code == homeCode
		}

		t.Find("tbody tr").Each(func(_ int, tr *goquery.Selection) {
			if tr.HasClass("thead") {
				return
			}
			player := strings.TrimSpace(tr.Find("th").First().Text())
			if player == "" || player == "Team Totals" || player == "Reserves" {
				return
			}

			row := ingest.RawStatRow{
				Date:       date,
				PlayerName: player,
				Team:       team,
				Opponent:   opponent,
				IsHome:     isHome,
				SourceLink: link,
			}

			if tr.Find(`td[data-stat="reason"]`).Length() > 0 {
				row.MarkDNP()
				rows = append(rows, row)
				return
			}

			row.Minutes = cell(tr, "mp")
			for _, f := range store.StatFields() {
				row.Fields[f] = cell(tr, f.DataStat())
			}
			rows = append(rows, row)
		})
	})
	return rows, nil
}

// HomeTeamFromLink reads the home team code from a box score file name,
// e.g. /boxscores/202310240DEN.html is DEN.
func HomeTeamFromLink(link string) (string, bool) {
	p := link
	if u, err := url.Parse(link); err == nil {
		p = u.Path
	}
	base := strings.TrimSuffix(path.Base(p), path.Ext(p))
	if len(base) < 3 {
		return "", false
	}
	code, err := teams.Normalize(base[len(base)-3:])
	if err != nil {
		return "", false
	}
	return code, true
}

func teamFromCaption(caption string) string {
	caption = strings.TrimSpace(caption)
	if i := strings.Index(caption, captionSuffix); i >= 0 {
		caption = caption[:i]
	}
	return strings.TrimSpace(caption)
}

func cell(tr *goquery.Selection, stat string) string {
	return strings.TrimSpace(tr.Find(`td[data-stat="` + stat + `"]`).First().Text())
}

func resolve(baseURL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}
