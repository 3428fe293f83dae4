package service

import (
	"context"
	"fmt"

	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/store/repository"
)

// PlayerService answers per-player questions over stored box scores.
type PlayerService struct {
	playerRepo *repository.PlayerRepository
	statsRepo  *repository.StatsRepository
}

// NewPlayerService creates a new player service
func NewPlayerService(db *store.Database) *PlayerService {
	q := db.Q()
	return &PlayerService{
		playerRepo: repository.NewPlayerRepository(q),
		statsRepo:  repository.NewStatsRepository(q),
	}
}

// SeasonAverages is a player's per-game line over one season. Nil
// averages mean no game in the season recorded the stat.
type SeasonAverages struct {
	Player   *store.Player       `json:"player"`
	Season   string              `json:"season"`
	Games    int                 `json:"games"`
	Minutes  float64             `json:"minutes"`
	Averages map[string]*float64 `json:"averages"`
}

// percentParts maps each shooting percentage to its made and attempted
// fields so season percentages are ratios of totals.
var percentParts = map[store.StatField][2]store.StatField{
	store.FieldFGPct: {store.FieldFG, store.FieldFGA},
	store.Field3PPct: {store.Field3P, store.Field3PA},
	store.FieldFTPct: {store.FieldFT, store.FieldFTA},
}

// GetPlayerSeasonAverages averages a player's lines dated within the
// season's September through June windows.
func (s *PlayerService) GetPlayerSeasonAverages(ctx context.Context, playerID int64, token string) (*SeasonAverages, error) {
	sn, err := season.Parse(token)
	if err != nil {
		return nil, err
	}

	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("fetching player: %w", err)
	}

	windows := sn.Windows()
	from := windows[0].Start.Format(season.DateLayout)
	to := windows[len(windows)-1].End.Format(season.DateLayout)

	lines, err := s.statsRepo.GetByPlayerBetween(ctx, playerID, from, to)
	if err != nil {
		return nil, fmt.Errorf("calculating season averages: %w", err)
	}

	return &SeasonAverages{
		Player:   player,
		Season:   sn.String(),
		Games:    len(lines),
		Minutes:  averageMinutes(lines),
		Averages: averageStats(lines),
	}, nil
}

func averageMinutes(lines []store.PlayerGameStat) float64 {
	if len(lines) == 0 {
		return 0
	}
	var total float64
	for i := range lines {
		total += lines[i].Minutes
	}
	return total / float64(len(lines))
}

func averageStats(lines []store.PlayerGameStat) map[string]*float64 {
	var (
		sums   [store.NumStatFields]float64
		counts [store.NumStatFields]int
	)
	for i := range lines {
		for _, f := range store.StatFields() {
			if v := lines[i].Stat(f); v.Valid {
				sums[f] += v.Float64
				counts[f]++
			}
		}
	}

	out := make(map[string]*float64, store.NumStatFields)
	for _, f := range store.StatFields() {
		if parts, ok := percentParts[f]; ok {
			out[f.Column()] = nil
			if made, attempts := sums[parts[0]], sums[parts[1]]; attempts > 0 {
				pct := made / attempts
				out[f.Column()] = &pct
			}
			continue
		}
		if counts[f] == 0 {
			out[f.Column()] = nil
			continue
		}
		avg := sums[f] / float64(counts[f])
		out[f.Column()] = &avg
	}
	return out
}
