// Package server exposes the live event channel over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stocktracker/internal/models"
	"stocktracker/internal/store"
	"stocktracker/internal/stream"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = 54 * time.Second
	maxMessageSize = 4 << 10
)

// Config holds the server configuration.
type Config struct {
	Addr string
	// Symbols is the tracked-symbol list used to build initial snapshots.
	Symbols []string
}

// Server serves the duplex event channel at /ws and a health probe at
// /healthz. Each accepted connection joins the hub and stays subscribed
// until the client disconnects or delivery to it fails.
type Server struct {
	cfg      Config
	hub      *stream.Hub
	store    store.DataStore
	logger   zerolog.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// New creates a new server.
func New(cfg Config, hub *stream.Hub, dataStore store.DataStore, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		hub:    hub,
		store:  dataStore,
		logger: logger.With().Str("component", "server").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.httpSrv = &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}
	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("Server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpSrv.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"connections": s.hub.Count(),
	})
}

// handleWS upgrades the request and wires the connection into the hub with
// one reader and one writer goroutine. The single writer preserves
// per-connection event order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	conn := s.hub.Join(s.snapshotEvent(r.Context()))

	go s.writePump(ws, conn)
	go s.readPump(ws, conn)
}

// snapshotEvent builds the initial-snapshot payload: the latest observation
// for each tracked symbol, in symbol-list order. Symbols without any
// observation yet are simply absent.
func (s *Server) snapshotEvent(ctx context.Context) models.Event {
	updates := make([]models.PriceUpdate, 0, len(s.cfg.Symbols))
	for _, symbol := range s.cfg.Symbols {
		obs, err := s.store.LatestPrice(ctx, symbol)
		if err != nil {
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to load snapshot observation")
			continue
		}
		if obs == nil {
			continue
		}
		updates = append(updates, models.NewPriceUpdate(obs))
	}
	return models.Event{Type: models.EventInitialSnapshot, Data: updates}
}

// writePump drains the connection's event queue onto the socket. It exits
// when the hub closes the queue or a write fails, and in the failure case
// removes the connection so no further deliveries are attempted.
func (s *Server) writePump(ws *websocket.Conn, conn *stream.Conn) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		ws.Close()
	}()

	for {
		select {
		case ev, ok := <-conn.Events():
			if !ok {
				_ = ws.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeTimeout))
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(ev); err != nil {
				s.logger.Debug().Err(err).Msg("Write failed, dropping subscriber")
				s.hub.Leave(conn)
				return
			}
		case <-ping.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.Leave(conn)
				return
			}
		}
	}
}

// readPump consumes inbound frames until the client goes away, forwarding
// subscribe/unsubscribe messages to the hub.
func (s *Server) readPump(ws *websocket.Conn, conn *stream.Conn) {
	defer func() {
		s.hub.Leave(conn)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.hub.HandleInbound(conn, raw)
	}
}
