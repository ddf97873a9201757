// Package ws is the subscriber push channel: a websocket server that
// streams the monitor's update frames and services subscriber commands
// against the engine.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Mohanprasath-R/RMS/internal/domain"
	"github.com/Mohanprasath-R/RMS/internal/monitor"
)

// Server accepts subscriber connections, pushes an initial fleet
// snapshot on connect, then relays engine update frames and serves
// ad-hoc queries until disconnect. It implements monitor.Observer.
type Server struct {
	engine   *monitor.Engine
	addr     string
	upgrader websocket.Upgrader
	http     *http.Server

	mu      sync.Mutex // guards clients; never held during socket I/O
	clients map[*client]struct{}
}

// NewServer creates a push server bound to addr, serving the engine.
func NewServer(engine *monitor.Engine, addr string) *Server {
	s := &Server{
		engine:  engine,
		addr:    addr,
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Subscribers are not authenticated; accept any origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	return s
}

// Handler returns the HTTP handler serving the push channel at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Run registers the server as an engine observer and serves until the
// context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.engine.AddObserver(s)

	s.http = &http.Server{Addr: s.addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("websocket server listening", "addr", s.addr)
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.http.Shutdown(shutdownCtx)
		s.closeAll()
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ws.Run: %w", err)
	}
}

// handleWS upgrades the connection, registers the subscriber, pushes
// the initial frame and starts the pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	c := newClient(uuid.NewString(), conn, s)

	s.mu.Lock()
	s.clients[c] = struct{}{}
	total := len(s.clients)
	s.mu.Unlock()
	slog.Info("subscriber connected", "client", c.id, "total", total)

	initial := newFrame(frameInitial)
	initial.Data = s.engine.SnapshotAll()
	initial.Stats = s.engine.Stats()
	s.sendFrame(c, initial)

	go c.writePump()
	c.readPump()
}

// unregister removes a subscriber and closes its connection. Idempotent;
// called by either pump and by shutdown.
func (s *Server) unregister(c *client) {
	s.mu.Lock()
	_, present := s.clients[c]
	if present {
		delete(s.clients, c)
	}
	total := len(s.clients)
	c.close()
	s.mu.Unlock()

	if present {
		slog.Info("subscriber disconnected", "client", c.id, "total", total)
	}
}

// closeAll drops every subscriber; used on shutdown.
func (s *Server) closeAll() {
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
	s.mu.Unlock()
}

// ClientCount is the current subscriber count.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// OnTick implements monitor.Observer: broadcast the tick's frames as
// one update message. The message is encoded once; enqueueing never
// blocks, so tick latency is independent of subscriber health.
func (s *Server) OnTick(frames []domain.AccountUpdate) {
	f := newFrame(frameUpdate)
	f.Data = frames
	msg, err := f.encode()
	if err != nil {
		slog.Error("update frame encode failed", "err", err)
		return
	}

	s.mu.Lock()
	for c := range s.clients {
		c.enqueue(msg)
	}
	s.mu.Unlock()
}

// sendFrame encodes and enqueues a frame for one subscriber.
func (s *Server) sendFrame(c *client, f frame) {
	msg, err := f.encode()
	if err != nil {
		slog.Error("frame encode failed", "type", f.Type, "err", err)
		return
	}

	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		c.enqueue(msg)
	}
	s.mu.Unlock()
}

// handleCommand parses and dispatches one inbound subscriber message.
// Malformed input produces an error frame; the connection stays open.
func (s *Server) handleCommand(c *client, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.sendError(c, "invalid JSON")
		return
	}

	switch cmd.Type {
	case cmdAddAccount:
		id, ok := cmd.loginID()
		if !ok {
			s.sendError(c, "add_account requires a positive login_id")
			return
		}
		s.engine.AddAccount(id)
		s.sendSuccess(c, fmt.Sprintf("Account %d added to monitoring", id))

	case cmdRemoveAccount:
		id, ok := cmd.loginID()
		if !ok {
			s.sendError(c, "remove_account requires a positive login_id")
			return
		}
		s.engine.RemoveAccount(id)
		s.sendSuccess(c, fmt.Sprintf("Account %d removed from monitoring", id))

	case cmdGetSnapshot:
		f := newFrame(frameSnapshot)
		if id, ok := cmd.loginID(); ok {
			snapshot, found := s.engine.Snapshot(id)
			if found {
				f.Data = snapshot
			}
			// unknown login: empty data, not an error
		} else {
			f.Data = s.engine.SnapshotAll()
		}
		s.sendFrame(c, f)

	case cmdGetExposure:
		f := newFrame(frameExposure)
		if cmd.Symbol != "" {
			symbol := domain.SanitizeSymbol(cmd.Symbol)
			f.Symbol = symbol
			f.Positions = s.engine.PositionsBySymbol(symbol)
		} else {
			f.Data = s.engine.ExposureBySymbol()
		}
		s.sendFrame(c, f)

	case cmdGetStats:
		f := newFrame(frameStats)
		f.Data = s.engine.Stats()
		s.sendFrame(c, f)

	default:
		s.sendError(c, fmt.Sprintf("Unknown message type: %s", cmd.Type))
	}
}

func (s *Server) sendSuccess(c *client, msg string) {
	f := newFrame(frameSuccess)
	f.Message = msg
	s.sendFrame(c, f)
}

func (s *Server) sendError(c *client, msg string) {
	f := newFrame(frameError)
	f.Message = msg
	s.sendFrame(c, f)
}
