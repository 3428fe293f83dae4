package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/boxscore/internal/season"
	"github.com/fortuna/boxscore/internal/service"
	"github.com/fortuna/boxscore/internal/store"
	"github.com/fortuna/boxscore/internal/store/repository"
	"github.com/fortuna/boxscore/internal/teams"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db      *store.Database
	players *service.PlayerService
}

// NewHandler creates a new handler
func NewHandler(db *store.Database) *Handler {
	return &Handler{db: db, players: service.NewPlayerService(db)}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.HealthCheck(); err != nil {
		respondError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "boxscore",
		"driver":  h.db.Driver(),
	})
}

// GetGamesByDate returns all games on a specific date
func (h *Handler) GetGamesByDate(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	if dateStr == "" {
		dateStr = time.Now().Format(season.DateLayout)
	}

	if _, err := season.ParseDate(dateStr); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	games, err := repository.NewGameRepository(h.db.Q()).GetByDate(r.Context(), dateStr)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch games", err)
		return
	}
	if games == nil {
		games = []*store.Game{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":  dateStr,
		"games": games,
		"count": len(games),
	})
}

// GetGame returns a specific game by ID
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	game, err := repository.NewGameRepository(h.db.Q()).GetByID(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Game not found", err)
		return
	}

	respondJSON(w, http.StatusOK, game)
}

// GetGameBoxScore returns every stored player line of a game
func (h *Handler) GetGameBoxScore(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["gameID"]

	game, err := repository.NewGameRepository(h.db.Q()).GetByID(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Game not found", err)
		return
	}

	stats, err := repository.NewStatsRepository(h.db.Q()).GetByGame(r.Context(), gameID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch box score", err)
		return
	}

	home := make([]map[string]interface{}, 0)
	away := make([]map[string]interface{}, 0)
	for i := range stats {
		line := statPayload(&stats[i])
		if stats[i].IsHome {
			home = append(home, line)
		} else {
			away = append(away, line)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"game": game,
		"home": home,
		"away": away,
	})
}

// GetPlayer returns a player by ID
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(mux.Vars(r)["playerID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	player, err := repository.NewPlayerRepository(h.db.Q()).GetByID(r.Context(), playerID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Player not found", err)
		return
	}

	respondJSON(w, http.StatusOK, player)
}

// SearchPlayers searches for players by name
func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "Missing query parameter 'q'", nil)
		return
	}

	players, err := repository.NewPlayerRepository(h.db.Q()).Search(r.Context(), query, queryLimit(r, 20, 100))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to search players", err)
		return
	}
	if players == nil {
		players = []*store.Player{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"players": players})
}

// GetPlayerStats returns a player's most recent game lines
func (h *Handler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(mux.Vars(r)["playerID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	stats, err := repository.NewStatsRepository(h.db.Q()).GetByPlayer(r.Context(), playerID, queryLimit(r, 10, 82))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch player stats", err)
		return
	}

	lines := make([]map[string]interface{}, 0, len(stats))
	for i := range stats {
		lines = append(lines, statPayload(&stats[i]))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"player_id": playerID,
		"games":     lines,
	})
}

// GetPlayerSeasonAverages returns per-game averages for ?season=
func (h *Handler) GetPlayerSeasonAverages(w http.ResponseWriter, r *http.Request) {
	playerID, err := strconv.ParseInt(mux.Vars(r)["playerID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid player ID", err)
		return
	}

	token := r.URL.Query().Get("season")
	if _, err := season.Parse(token); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid season, expected YYYY-YY", err)
		return
	}

	averages, err := h.players.GetPlayerSeasonAverages(r.Context(), playerID, token)
	if err != nil {
		respondError(w, http.StatusNotFound, "Player not found", err)
		return
	}

	respondJSON(w, http.StatusOK, averages)
}

// GetTeams returns the franchise table
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"teams": teams.All()})
}

// statPayload renders a stat line; missing values become null.
func statPayload(s *store.PlayerGameStat) map[string]interface{} {
	line := map[string]interface{}{
		"game_id":     s.GameID,
		"player_id":   s.PlayerID,
		"game_date":   s.GameDate,
		"player_name": s.PlayerName,
		"team":        s.Team,
		"opponent":    s.Opponent,
		"is_home":     s.IsHome,
		"minutes":     s.Minutes,
	}
	for _, f := range store.StatFields() {
		v := s.Stat(f)
		if v.Valid {
			line[f.Column()] = v.Float64
		} else {
			line[f.Column()] = nil
		}
	}
	return line
}

func queryLimit(r *http.Request, def, ceiling int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= ceiling {
		return l
	}
	return def
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
