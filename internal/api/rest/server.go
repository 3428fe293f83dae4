package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fortuna/boxscore/internal/backfill"
	"github.com/fortuna/boxscore/internal/store"
)

// Server represents the REST API server
type Server struct {
	server *http.Server
	router *mux.Router
	logger *logrus.Entry
}

// NewServer creates a new REST API server
func NewServer(port string, db *store.Database, ingest *backfill.Service, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	handler := NewHandler(db)
	ingestHandler := NewIngestHandler(ingest)

	router := mux.NewRouter()

	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()

	// Games
	api.HandleFunc("/games", handler.GetGamesByDate).Methods("GET")
	api.HandleFunc("/games/{gameID}", handler.GetGame).Methods("GET")
	api.HandleFunc("/games/{gameID}/boxscore", handler.GetGameBoxScore).Methods("GET")

	// Players
	api.HandleFunc("/players/search", handler.SearchPlayers).Methods("GET")
	api.HandleFunc("/players/{playerID}", handler.GetPlayer).Methods("GET")
	api.HandleFunc("/players/{playerID}/stats", handler.GetPlayerStats).Methods("GET")
	api.HandleFunc("/players/{playerID}/averages", handler.GetPlayerSeasonAverages).Methods("GET")

	// Teams
	api.HandleFunc("/teams", handler.GetTeams).Methods("GET")

	// Ingestion jobs
	api.HandleFunc("/ingest", ingestHandler.HandleIngestRequest).Methods("POST")
	api.HandleFunc("/ingest/status", ingestHandler.HandleIngestStatus).Methods("GET")
	api.HandleFunc("/ingest/jobs/{jobID}", ingestHandler.HandleJob).Methods("GET")

	return &Server{
		router: router,
		logger: logger,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: router,
		},
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the REST API server
func (s *Server) Start() error {
	s.logger.Infof("🌐 REST API listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
