// Package teams maps NBA franchise names to the three-letter codes used by
// basketball-reference, in both directions.
package teams

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownTeam is returned for names and codes outside the table.
var ErrUnknownTeam = errors.New("unknown team")

// Team is one franchise entry.
type Team struct {
	Abbreviation string `json:"abbreviation"`
	Name         string `json:"name"`
}

var franchises = []Team{
	{"ATL", "Atlanta Hawks"},
	{"BOS", "Boston Celtics"},
	{"BRK", "Brooklyn Nets"},
	{"CHO", "Charlotte Hornets"},
	{"CHI", "Chicago Bulls"},
	{"CLE", "Cleveland Cavaliers"},
	{"DAL", "Dallas Mavericks"},
	{"DEN", "Denver Nuggets"},
	{"DET", "Detroit Pistons"},
	{"GSW", "Golden State Warriors"},
	{"HOU", "Houston Rockets"},
	{"IND", "Indiana Pacers"},
	{"LAC", "Los Angeles Clippers"},
	{"LAL", "Los Angeles Lakers"},
	{"MEM", "Memphis Grizzlies"},
	{"MIA", "Miami Heat"},
	{"MIL", "Milwaukee Bucks"},
	{"MIN", "Minnesota Timberwolves"},
	{"NOP", "New Orleans Pelicans"},
	{"NYK", "New York Knicks"},
	{"OKC", "Oklahoma City Thunder"},
	{"ORL", "Orlando Magic"},
	{"PHI", "Philadelphia 76ers"},
	{"PHO", "Phoenix Suns"},
	{"POR", "Portland Trail Blazers"},
	{"SAC", "Sacramento Kings"},
	{"SAS", "San Antonio Spurs"},
	{"TOR", "Toronto Raptors"},
	{"UTA", "Utah Jazz"},
	{"WAS", "Washington Wizards"},
}

// Former franchises and names, keyed by the code basketball-reference
// used in those seasons. They normalize and validate like current teams
// but are left out of All.
var historical = []Team{
	{"SEA", "Seattle SuperSonics"},
	{"NJN", "New Jersey Nets"},
	{"VAN", "Vancouver Grizzlies"},
	{"NOH", "New Orleans Hornets"},
	{"NOK", "New Orleans/Oklahoma City Hornets"},
	{"WSB", "Washington Bullets"},
	{"KCK", "Kansas City Kings"},
	{"SDC", "San Diego Clippers"},
	{"NOJ", "New Orleans Jazz"},
	{"BUF", "Buffalo Braves"},
}

// Codes other feeds use for the same franchises. CHH is the 1988-2002
// Charlotte Hornets, which share a name with CHO.
var aliases = map[string]string{
	"BKN":  "BRK",
	"CHA":  "CHO",
	"CHH":  "CHO",
	"PHX":  "PHO",
	"GS":   "GSW",
	"NO":   "NOP",
	"NY":   "NYK",
	"SA":   "SAS",
	"UTAH": "UTA",
	"WSH":  "WAS",
}

// Former names whose code is an alias of a current franchise.
var nameAliases = map[string]string{
	"charlotte bobcats": "CHO",
	"la clippers":       "LAC",
}

var (
	byCode = make(map[string]Team, len(franchises)+len(historical))
	byName = make(map[string]Team, len(franchises)+len(historical))
)

func init() {
	for _, t := range append(append([]Team(nil), franchises...), historical...) {
		byCode[t.Abbreviation] = t
		byName[strings.ToLower(t.Name)] = t
	}
	for name, code := range nameAliases {
		byName[name] = byCode[code]
	}
}

// Normalize resolves a full franchise name or any known code to the
// canonical abbreviation.
func Normalize(value string) (string, error) {
	key := strings.TrimSpace(value)
	if key == "" {
		return "", fmt.Errorf("%w: empty value", ErrUnknownTeam)
	}

	upper := strings.ToUpper(key)
	if t, ok := byCode[upper]; ok {
		return t.Abbreviation, nil
	}
	if code, ok := aliases[upper]; ok {
		return code, nil
	}
	if t, ok := byName[strings.ToLower(key)]; ok {
		return t.Abbreviation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTeam, value)
}

// FullName returns the franchise name for a code.
func FullName(code string) (string, error) {
	abbr, err := Normalize(code)
	if err != nil {
		return "", err
	}
	return byCode[abbr].Name, nil
}

// IsCanonical reports whether code is a canonical abbreviation, current
// or historical.
func IsCanonical(code string) bool {
	_, ok := byCode[code]
	return ok
}

// All returns the current franchise table sorted by abbreviation.
func All() []Team {
	out := make([]Team, len(franchises))
	copy(out, franchises)
	sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	return out
}
