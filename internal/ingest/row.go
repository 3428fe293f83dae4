// Package ingest holds the row shape shared by extractors and the
// interchange codec.
package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/fortuna/boxscore/internal/store"
)

// DNP marks a player who did not take the floor.
const DNP = "DNP"

// RawStatRow is one player's line as scraped, before cleaning. Team and
// Opponent may be full franchise names or codes.
type RawStatRow struct {
	Date       string
	PlayerName string
	Team       string
	Opponent   string
	IsHome     bool
	Minutes    string
	Fields     [store.NumStatFields]string
	SourceLink string
}

// Field returns the raw text for f.
func (r *RawStatRow) Field(f store.StatField) string {
	return r.Fields[f]
}

// MarkDNP fills minutes and every stat field with the DNP marker.
func (r *RawStatRow) MarkDNP() {
	r.Minutes = DNP
	for i := range r.Fields {
		r.Fields[i] = DNP
	}
}

// NormalizePlayerName strips diacritics and case-folds a display name so
// "Nikola Jokić" and "nikola jokic" identify the same player.
func NormalizePlayerName(name string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.Join(strings.Fields(folded), " "))
}
