package tabular

import (
	"bytes"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/boxscore/internal/ingest"
	"github.com/fortuna/boxscore/internal/store"
)

func TestHeader(t *testing.T) {
	want := "Date,Name,Team,Opponent,MP,FG,FGA,FG%,3P,3PA,3P%,FT,FTA,FT%,ORB,DRB,TRB,AST,STL,BLK,TOV,PF,PTS,GmSc,+-,GameLink,Home"
	assert.Equal(t, want, strings.Join(Header(), ","))
}

func TestReadRawByHeaderName(t *testing.T) {
	input := "Name,Date,Team,Opponent,MP,PTS,GameLink,Home,Extra\n" +
		"LeBron James,2021-10-19,Los Angeles Lakers,Golden State Warriors,37:05,34,https://x/202110190LAL.html,1,zz\n"

	rows, err := ReadRaw(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	r := rows[0]
	assert.Equal(t, "LeBron James", r.PlayerName)
	assert.Equal(t, "2021-10-19", r.Date)
	assert.Equal(t, "37:05", r.Minutes)
	assert.Equal(t, "34", r.Field(store.FieldPTS))
	assert.Equal(t, "", r.Field(store.FieldFG))
	assert.True(t, r.IsHome)
}

func TestReadRawMissingColumn(t *testing.T) {
	_, err := ReadRaw(strings.NewReader("Date,Name\n2021-10-19,x\n"))
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestReadRawRequiresHome(t *testing.T) {
	input := "Date,Name,Team,Opponent,MP,GameLink\n" +
		"2021-10-19,LeBron James,Los Angeles Lakers,Golden State Warriors,37:05,https://x/202110190LAL.html\n" +
		"2021-10-19,Stephen Curry,Golden State Warriors,Los Angeles Lakers,34:30,https://x/202110190LAL.html\n"

	_, err := ReadRaw(strings.NewReader(input))
	assert.ErrorIs(t, err, ErrBadHeader)
	assert.Contains(t, err.Error(), `"Home"`)
}

func TestReadRawHomeCell(t *testing.T) {
	const header = "Date,Name,Team,Opponent,MP,GameLink,Home\n"
	const prefix = "2021-10-19,Stephen Curry,Golden State Warriors,Los Angeles Lakers,34:30,https://x/202110190LAL.html,"

	for _, v := range []string{"0", "false", "away", "AWAY"} {
		rows, err := ReadRaw(strings.NewReader(header + prefix + v + "\n"))
		require.NoError(t, err, v)
		require.Len(t, rows, 1)
		assert.False(t, rows[0].IsHome, v)
	}

	for _, v := range []string{"", "maybe"} {
		_, err := ReadRaw(strings.NewReader(header + prefix + v + "\n"))
		assert.ErrorIs(t, err, ErrBadRow, "home=%q", v)
	}
}

func TestReadRawEmpty(t *testing.T) {
	rows, err := ReadRaw(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteThenReadRaw(t *testing.T) {
	row := ingest.RawStatRow{
		Date:       "2021-10-19",
		PlayerName: "Nikola Jokić",
		Team:       "Denver Nuggets",
		Opponent:   "Phoenix Suns",
		IsHome:     false,
		Minutes:    "32:10",
		SourceLink: "https://www.basketball-reference.com/boxscores/202110200PHO.html",
	}
	row.Fields[store.FieldFGPct] = ".529"
	row.Fields[store.FieldPlusMinus] = "+7"

	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, []ingest.RawStatRow{row}))

	got, err := ReadRaw(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, row, got[0])
}

func TestWriteStatsMissingIsEmpty(t *testing.T) {
	stat := store.PlayerGameStat{
		GameID:     "abc",
		PlayerID:   7,
		GameDate:   "2021-10-19",
		PlayerName: "stephen curry",
		Team:       "GSW",
		Opponent:   "LAL",
		Minutes:    34.5,
		SourceLink: "link",
	}
	stat.Stats[store.FieldPTS] = sql.NullFloat64{Float64: 21, Valid: true}

	var buf bytes.Buffer
	require.NoError(t, WriteStats(&buf, []store.PlayerGameStat{stat}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	fields := strings.Split(lines[1], ",")
	assert.Equal(t, "abc", fields[0])
	assert.Equal(t, "7", fields[1])
	assert.Equal(t, "34.5", fields[6])
	assert.Equal(t, "", fields[7])
	assert.Equal(t, "21", fields[7+int(store.FieldPTS)])
	assert.Equal(t, "0", fields[len(fields)-1])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "2021-22_Season.csv", FileName("2021-22"))
}
