package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server streams ingestion progress to WebSocket clients.
type Server struct {
	hub    *Hub
	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	logger *logrus.Entry
}

// NewServer creates a WebSocket server with its own hub.
func NewServer(logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		hub:    NewHub(logger),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
	s.server = &http.Server{Handler: s.Handler()}
	return s
}

// Hub exposes the broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Reporter returns a pipeline reporter that broadcasts through this server.
func (s *Server) Reporter() *Reporter {
	return NewReporter(s.hub)
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/ingest/progress", s.handleProgress)
	mux.HandleFunc("/ws/health", s.handleHealth)
	return mux
}

// Start runs the hub and serves until Shutdown.
func (s *Server) Start(port string) error {
	go s.hub.Run(s.ctx)

	s.server.Addr = fmt.Sprintf(":%s", port)

	s.logger.Infof("🔌 WebSocket server listening on :%s", port)
	return s.server.ListenAndServe()
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("⚠️  WebSocket upgrade error")
		return
	}

	c := NewClient(uuid.NewString(), conn, s.hub)
	if job := r.URL.Query().Get("job_id"); job != "" {
		c.jobID = job
	}
	s.hub.Register(c)

	// Pumps outlive the request; they stop with the server.
	go c.WritePump(s.ctx)
	go c.ReadPump(s.ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "healthy",
		"service": "boxscore-ws",
		"hub":     s.hub.Metrics(),
	})
}

// Shutdown stops the hub and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	return s.server.Shutdown(ctx)
}
