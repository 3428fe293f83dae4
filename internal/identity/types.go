// Package identity cleans scraped box-score rows and assigns stable player
// and game identities so repeated runs never create duplicates.
package identity

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/fortuna/boxscore/internal/store"
)

var (
	// ErrMalformedMinutes marks a minutes value that is neither mm:ss nor a number.
	ErrMalformedMinutes = errors.New("malformed minutes")
	// ErrMalformedNumeric marks a stat cell that could not be read as a number.
	ErrMalformedNumeric = errors.New("malformed numeric value")
	// ErrIdentityConflict marks a game id already bound to another source link.
	ErrIdentityConflict = errors.New("identity conflict")
	// ErrMissingIdentity is returned by resolvers that could neither insert
	// nor find a key.
	ErrMissingIdentity = errors.New("missing identity")
)

// DropReason names why a row was left out of a batch.
type DropReason string

const (
	DropDuplicate        DropReason = "duplicate"
	DropUnknownTeam      DropReason = "unknown_team"
	DropDidNotPlay       DropReason = "did_not_play"
	DropMalformedMinutes DropReason = "malformed_minutes"
	DropMissingIdentity  DropReason = "missing_identity"
	DropIdentityConflict DropReason = "identity_conflict"
)

// RowError describes one dropped row. Row is the index in the input batch.
type RowError struct {
	Row    int
	Reason DropReason
	Err    error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Reason, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Conflict is a game whose computed id or source link is already bound to
// a different record.
type Conflict struct {
	Game               store.Game
	ExistingGameID     string
	ExistingSourceLink string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("%v: game %s (%s) already stored as %s (%s)", ErrIdentityConflict,
		c.Game.GameID, c.Game.SourceLink, c.ExistingGameID, c.ExistingSourceLink)
}

func (c Conflict) Unwrap() error { return ErrIdentityConflict }

// RegistrationStatus is the outcome of registering a game.
type RegistrationStatus int

const (
	Inserted RegistrationStatus = iota
	Existing
	Conflicted
)

// Registration is returned by GameRegistrar. The Existing fields are set
// for Conflicted registrations.
type Registration struct {
	Status             RegistrationStatus
	ExistingGameID     string
	ExistingSourceLink string
}

// PlayerResolver returns the id for a normalized player name, creating it
// on first sight.
type PlayerResolver interface {
	ResolvePlayer(ctx context.Context, name string) (int64, error)
}

// GameRegistrar stores a game unless its source link is already known.
type GameRegistrar interface {
	RegisterGame(ctx context.Context, game store.Game) (Registration, error)
}

// GameID derives the deterministic id for a game.
func GameID(date, home, away string) string {
	sum := md5.Sum([]byte(date + "_" + home + "_" + away))
	return hex.EncodeToString(sum[:])
}

// BatchResult is the outcome of one Process call.
type BatchResult struct {
	Input         int
	Stats         []store.PlayerGameStat
	Players       map[string]int64
	Games         map[string]store.Game
	GamesInserted int
	GamesExisting int
	Dropped       map[DropReason]int
	RowErrors     []RowError
	Anomalies     []Conflict
	// MissingValues counts stat cells coerced to missing.
	MissingValues int
	// MalformedValues counts the subset that held unreadable text.
	MalformedValues int
}

func newBatchResult(input int) *BatchResult {
	return &BatchResult{
		Input:   input,
		Players: make(map[string]int64),
		Games:   make(map[string]store.Game),
		Dropped: make(map[DropReason]int),
	}
}

// Accepted is the number of materialized rows.
func (r *BatchResult) Accepted() int { return len(r.Stats) }

// DroppedTotal sums drops across reasons.
func (r *BatchResult) DroppedTotal() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

func (r *BatchResult) drop(row int, reason DropReason, err error) {
	r.Dropped[reason]++
	if reason == DropDuplicate {
		return
	}
	r.RowErrors = append(r.RowErrors, RowError{Row: row, Reason: reason, Err: err})
}
