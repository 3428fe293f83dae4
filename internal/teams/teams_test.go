package teams

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Boston Celtics", "BOS"},
		{"boston celtics", "BOS"},
		{"  Denver Nuggets ", "DEN"},
		{"BOS", "BOS"},
		{"bos", "BOS"},
		{"BKN", "BRK"},
		{"PHX", "PHO"},
		{"Philadelphia 76ers", "PHI"},
		{"Seattle SuperSonics", "SEA"},
		{"seattle supersonics", "SEA"},
		{"Vancouver Grizzlies", "VAN"},
		{"New Jersey Nets", "NJN"},
		{"CHH", "CHO"},
		{"Charlotte Hornets", "CHO"},
		{"Charlotte Bobcats", "CHO"},
		{"LA Clippers", "LAC"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeUnknown(t *testing.T) {
	for _, in := range []string{"", "Seattle Seahawks", "XYZ"} {
		_, err := Normalize(in)
		assert.ErrorIs(t, err, ErrUnknownTeam, in)
	}
}

func TestTableIsBidirectional(t *testing.T) {
	all := All()
	assert.Len(t, all, 30)
	for _, team := range all {
		name, err := FullName(team.Abbreviation)
		require.NoError(t, err)
		assert.Equal(t, team.Name, name)

		code, err := Normalize(name)
		require.NoError(t, err)
		assert.Equal(t, team.Abbreviation, code)
		assert.True(t, IsCanonical(code))
	}
	assert.False(t, IsCanonical("BKN"))
}

func TestHistoricalTeamsAreCanonicalButNotListed(t *testing.T) {
	for _, code := range []string{"SEA", "NJN", "VAN", "NOH", "NOK", "WSB", "KCK", "SDC"} {
		assert.True(t, IsCanonical(code), code)
		name, err := FullName(code)
		require.NoError(t, err)
		got, err := Normalize(name)
		require.NoError(t, err)
		assert.Equal(t, code, got)
	}
	assert.False(t, IsCanonical("CHH"))

	for _, team := range All() {
		assert.NotEqual(t, "SEA", team.Abbreviation)
	}
}
