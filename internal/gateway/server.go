// Package gateway serves the operator surface: the embedded dashboard, the
// REST endpoints it polls, a WebSocket push channel for live snapshots, and a
// TOTP-gated manual close. The gateway never mutates trading state directly;
// a manual close is a request flag the engine honors on its next cycle, so
// the engine stays the single writer.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"syscall"
	"time"

	"scalper-botv1/internal/engine"
	"scalper-botv1/internal/store/sqlite"

	"github.com/pquerna/otp/totp"
)

const tradeHistoryLimit = 50

// exitRequester is the slice of the engine the gateway needs.
type exitRequester interface {
	RequestExit()
}

// Config configures the gateway server.
type Config struct {
	Addr string
	// TOTPSecret gates /api/close. Empty disables the endpoint.
	TOTPSecret string
}

// Server is the dashboard HTTP server.
type Server struct {
	cfg   Config
	board *engine.Board
	store *sqlite.Store
	eng   exitRequester
	hub   *Hub
	srv   *http.Server
}

// NewServer wires the routes and returns an unstarted Server.
func NewServer(cfg Config, board *engine.Board, store *sqlite.Store, eng exitRequester) *Server {
	s := &Server{
		cfg:   cfg,
		board: board,
		store: store,
		eng:   eng,
		hub:   NewHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/trades", s.handleTrades)
	mux.HandleFunc("/api/close", s.handleClose)
	mux.HandleFunc("/ws", s.hub.HandleWS)

	s.srv = &http.Server{Addr: cfg.Addr, Handler: mux}
	return s
}

// Hub returns the WebSocket hub, registered with the engine as a snapshot
// publisher.
func (s *Server) Hub() *Hub { return s.hub }

// Start launches the HTTP server in a goroutine. A busy port is retried with
// backoff (a restart can race the dying process for the listener); any other
// bind failure is an unrecoverable startup error.
func (s *Server) Start() {
	go func() {
		var ln net.Listener
		var err error
		for attempt := 1; attempt <= 5; attempt++ {
			ln, err = net.Listen("tcp", s.cfg.Addr)
			if err == nil {
				break
			}
			if !errors.Is(err, syscall.EADDRINUSE) {
				break
			}
			wait := time.Duration(attempt) * time.Second
			log.Printf("[gateway] %s busy, retrying in %s", s.cfg.Addr, wait)
			time.Sleep(wait)
		}
		if err != nil {
			log.Fatalf("[gateway] listen %s: %v", s.cfg.Addr, err)
		}

		log.Printf("[gateway] dashboard listening on %s", s.cfg.Addr)
		if err := s.srv.Serve(ln); err != http.ErrServerClosed {
			log.Printf("[gateway] server error: %v", err)
		}
	}()
}

// Stop disconnects WebSocket clients and shuts the server down.
func (s *Server) Stop(ctx context.Context) {
	s.hub.closeAll()
	s.srv.Shutdown(ctx)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(dashboardHTML))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.board.Read())
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.store.RecentTrades(tradeHistoryLimit)
	if err != nil {
		log.Printf("[gateway] trade history read failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "trade history unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

// handleClose asks the engine to liquidate the open position. The caller must
// present a valid TOTP code; the close itself happens on the engine's next
// cycle, which is why the success status is 202 rather than 200.
func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "POST required"})
		return
	}
	if s.cfg.TOTPSecret == "" {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "manual close disabled"})
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !totp.Validate(req.Code, s.cfg.TOTPSecret) {
		log.Printf("[gateway] manual close rejected: bad TOTP code from %s", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid code"})
		return
	}

	if s.board.Read().EntryPrice == 0 {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "no open position"})
		return
	}

	s.eng.RequestExit()
	log.Printf("[gateway] manual close requested from %s", r.RemoteAddr)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "close requested"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(v)
}
