package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/voicecode/voiced/internal/agent"
	"github.com/voicecode/voiced/internal/auth"
	"github.com/voicecode/voiced/internal/lock"
	"github.com/voicecode/voiced/internal/recipe"
	"github.com/voicecode/voiced/internal/replicate"
	"github.com/voicecode/voiced/internal/workstream"
	"nhooyr.io/websocket"
)

const protocolVersion = "1"

const tcpKeepaliveInterval = 30 * time.Second

// Server is the connection & dispatch layer: it owns the ConnectionTable
// and wires together every other subsystem.
type Server struct {
	Key         string
	Index       *replicate.Index
	Watcher     *replicate.Watcher
	Locks       *lock.Table
	Invoker     *agent.Invoker
	Recipes     *recipe.Library
	Workstreams *workstream.Store
	Log         *slog.Logger

	conns        *ConnectionTable
	orchestrator *recipe.Orchestrator

	tcpListener net.Listener
	httpServer  *http.Server
}

func New(key string, idx *replicate.Index, w *replicate.Watcher, locks *lock.Table, inv *agent.Invoker, recipes *recipe.Library, ws *workstream.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		Key:         key,
		Index:       idx,
		Watcher:     w,
		Locks:       locks,
		Invoker:     inv,
		Recipes:     recipes,
		Workstreams: ws,
		Log:         log,
		conns:       NewConnectionTable(),
	}
	var unlinker recipe.WorkstreamUnlinker
	if ws != nil {
		unlinker = ws
	}
	s.orchestrator = recipe.NewOrchestrator(recipes, &invokerAdapter{inv}, locks, &recipeSink{s}, unlinker)

	if w != nil {
		w.Callbacks = replicate.Callbacks{
			OnSessionCreated: s.onSessionCreated,
			OnSessionUpdated: s.onSessionUpdated,
		}
	}
	return s
}

// invokerAdapter satisfies recipe.AgentInvoker against *agent.Invoker.
type invokerAdapter struct{ inv *agent.Invoker }

func (a *invokerAdapter) Invoke(ctx context.Context, opts agent.InvokeOpts) agent.Result {
	return a.inv.Invoke(ctx, opts)
}

// ListenTCP starts the raw framed-protocol listener.
func (s *Server) ListenTCP(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.tcpListener = ln
	s.Log.Info("tcp listener started", "addr", addr)
	go s.acceptTCP(ln)
	return nil
}

func (s *Server) acceptTCP(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.tcpListener == nil {
				return // closed deliberately during shutdown
			}
			s.Log.Warn("accept failed", "error", err)
			continue
		}
		go s.serveTCP(conn)
	}
}

func (s *Server) serveTCP(netConn net.Conn) {
	t := newTCPTransport(netConn)
	id, conn := s.conns.Add(t)
	defer func() {
		s.conns.Remove(id)
		netConn.Close()
	}()

	conn.send(s.Log, wireHello())

	stopKeepalive := make(chan struct{})
	defer close(stopKeepalive)
	go s.tcpKeepaliveLoop(t, stopKeepalive)

	for {
		payload, err := t.ReadFrame()
		if err != nil || payload == nil {
			return
		}
		if !s.handleMessage(conn, payload) {
			return
		}
	}
}

// tcpKeepaliveLoop periodically writes an empty control frame so idle raw
// TCP connections don't get silently dropped by a NAT or load balancer;
// the WebSocket transport gets this for free from the protocol itself.
func (s *Server) tcpKeepaliveLoop(t *tcpTransport, stop <-chan struct{}) {
	ticker := time.NewTicker(tcpKeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := t.Keepalive(); err != nil {
				return
			}
		}
	}
}

// ListenWebSocket starts the WebSocket transport on /ws and the resource
// upload endpoint on /resources.
func (s *Server) ListenWebSocket(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/resources", s.handleUpload)

	s.httpServer = &http.Server{Addr: addr, Handler: mux}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.Log.Info("http/websocket listener started", "addr", addr)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Log.Error("http server exited", "error", err)
		}
	}()
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.Log.Warn("websocket accept failed", "error", err)
		return
	}
	t := newWSTransport(c, r)
	id, conn := s.conns.Add(t)
	defer func() {
		s.conns.Remove(id)
		c.Close(websocket.StatusInternalError, "closing")
	}()

	conn.send(s.Log, wireHello())

	for {
		payload, err := t.ReadMessage()
		if err != nil {
			return
		}
		if !s.handleMessage(conn, payload) {
			return
		}
	}
}

func wireHello() any {
	return struct {
		Type         string `json:"type"`
		Version      string `json:"version"`
		AuthVersion  int    `json:"auth_version"`
		Instructions string `json:"instructions"`
	}{"hello", protocolVersion, 1, "send connect {api_key} to authenticate"}
}

// Shutdown stops both listeners.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.tcpListener != nil {
		ln := s.tcpListener
		s.tcpListener = nil
		ln.Close()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// ValidateKey wraps auth.Equal against the server's configured key.
func (s *Server) ValidateKey(candidate string) bool {
	return auth.Equal(s.Key, candidate)
}
