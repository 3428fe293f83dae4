// Package tabular reads and writes the CSV interchange format that sits
// between scraping and cleaning.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/store"
)

var (
	// ErrBadHeader is returned when a file is missing required columns.
	ErrBadHeader = errors.New("unexpected csv header")
	// ErrBadRow is returned when a required cell cannot be decoded.
	ErrBadRow = errors.New("malformed csv row")
)

// Header returns the raw interchange header:
// Date,Name,Team,Opponent,MP,<stat fields>,GameLink,Home.
func Header() []string {
	header := []string{"Date", "Name", "Team", "Opponent", "MP"}
	for _, f := range store.StatFields() {
		header = append(header, f.Header())
	}
	return append(header, "GameLink", "Home")
}

// statsHeader is the header for cleaned rows, which also carry identities.
func statsHeader() []string {
	return append([]string{"GameID", "PlayerID"}, Header()...)
}

// FileName is the object name used for a season's raw export.
func FileName(season string) string {
	return season + "_Season.csv"
}

// WriteRaw encodes rows with the interchange header.
func WriteRaw(w io.Writer, rows []ingest.RawStatRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range rows {
		if err := cw.Write(rawRecord(&rows[i])); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func rawRecord(r *ingest.RawStatRow) []string {
	rec := make([]string, 0, 7+int(store.NumStatFields))
	rec = append(rec, r.Date, r.PlayerName, r.Team, r.Opponent, r.Minutes)
	rec = append(rec, r.Fields[:]...)
	return append(rec, r.SourceLink, formatHome(r.IsHome))
}

// ReadRaw decodes an interchange file. Columns are located by header
// name, so files with extra or reordered columns are accepted.
func ReadRaw(r io.Reader) ([]ingest.RawStatRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{"Date", "Name", "Team", "Opponent", "MP", "GameLink", "Home"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrBadHeader, required)
		}
	}

	get := func(rec []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var rows []ingest.RawStatRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		home, err := parseHome(get(rec, "Home"))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadRow, line, err)
		}

		row := ingest.RawStatRow{
			Date:       get(rec, "Date"),
			PlayerName: get(rec, "Name"),
			Team:       get(rec, "Team"),
			Opponent:   get(rec, "Opponent"),
			Minutes:    get(rec, "MP"),
			SourceLink: get(rec, "GameLink"),
			IsHome:     home,
		}
		for _, f := range store.StatFields() {
			row.Fields[f] = get(rec, f.Header())
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// WriteStats encodes cleaned rows. Missing values are written as empty
// cells.
func WriteStats(w io.Writer, stats []store.PlayerGameStat) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(statsHeader()); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i := range stats {
		s := &stats[i]
		rec := []string{
			s.GameID,
			strconv.FormatInt(s.PlayerID, 10),
			s.GameDate,
			s.PlayerName,
			s.Team,
			s.Opponent,
			strconv.FormatFloat(s.Minutes, 'f', -1, 64),
		}
		for _, v := range s.Stats {
			if v.Valid {
				rec = append(rec, strconv.FormatFloat(v.Float64, 'f', -1, 64))
			} else {
				rec = append(rec, "")
			}
		}
		rec = append(rec, s.SourceLink, formatHome(s.IsHome))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("writing row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatHome(home bool) string {
	if home {
		return "1"
	}
	return "0"
}

// parseHome decodes the home flag. Blank cells are rejected.
func parseHome(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "t", "yes", "y", "home":
		return true, nil
	case "0", "false", "f", "no", "n", "away":
		return false, nil
	case "":
		return false, errors.New("empty Home value")
	}
	return false, fmt.Errorf("invalid Home value %q", v)
}
