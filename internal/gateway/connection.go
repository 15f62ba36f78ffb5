// Package gateway implements the connection & message dispatch layer:
// authentication, typed-message routing, broadcast, and per-connection
// state tracking.
package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/voicecode/voiced/internal/wire"
)

// Transport is the minimal send/close surface both the raw TCP frame
// transport and the WebSocket transport implement, so the dispatch layer
// doesn't care which one it's talking to.
type Transport interface {
	Send(v any) error
	Close() error
	RemoteAddr() string
}

// Connection is created on client handshake, destroyed on disconnect.
// It is in-memory only and never persisted.
type Connection struct {
	Transport Transport

	mu                  sync.Mutex
	authenticated       bool
	subscribedSessions  map[string]struct{}
	deletedSessions     map[string]struct{}
	recentSessionsLimit int
	workingDirectory    string
}

func newConnection(t Transport) *Connection {
	return &Connection{
		Transport:           t,
		subscribedSessions:  make(map[string]struct{}),
		deletedSessions:     make(map[string]struct{}),
		recentSessionsLimit: 5,
	}
}

func (c *Connection) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

func (c *Connection) markAuthenticated() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authenticated = true
}

func (c *Connection) Subscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribedSessions[sessionID] = struct{}{}
}

func (c *Connection) Unsubscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subscribedSessions, sessionID)
}

func (c *Connection) IsSubscribed(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subscribedSessions[sessionID]
	return ok
}

func (c *Connection) MarkDeleted(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletedSessions[sessionID] = struct{}{}
}

func (c *Connection) HasDeleted(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deletedSessions[sessionID]
	return ok
}

func (c *Connection) SetRecentSessionsLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n > 0 {
		c.recentSessionsLimit = n
	}
}

func (c *Connection) RecentSessionsLimit() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recentSessionsLimit
}

func (c *Connection) SetWorkingDirectory(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workingDirectory = dir
}

func (c *Connection) WorkingDirectory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.workingDirectory
}

// send serializes v and writes it to the transport. Send failures are
// logged and swallowed: the connection is reaped on the next failed send
// or transport close signal, not here.
func (c *Connection) send(log *slog.Logger, v any) {
	if err := c.Transport.Send(v); err != nil {
		log.Warn("send failed, will reap on next failure or close", "remote", c.Transport.RemoteAddr(), "error", err)
	}
}

// ConnectionTable is the process-wide mapping from transport handle to
// Connection, guarded by a single RWMutex scoped to this structure only.
// There is no global server lock.
type ConnectionTable struct {
	mu    sync.RWMutex
	byID  map[uint64]*Connection
	nextID uint64
}

func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{byID: make(map[uint64]*Connection)}
}

func (t *ConnectionTable) Add(transport Transport) (id uint64, conn *Connection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id = t.nextID
	conn = newConnection(transport)
	t.byID[id] = conn
	return id, conn
}

func (t *ConnectionTable) Remove(id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

// Snapshot returns a consistent point-in-time list of connections for
// broadcast iteration.
func (t *ConnectionTable) Snapshot() []*Connection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Connection, 0, len(t.byID))
	for _, c := range t.byID {
		out = append(out, c)
	}
	return out
}

func (t *ConnectionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// marshalEnvelope is a small helper used across dispatch handlers to
// decode the common "type" discriminator before branching.
func marshalEnvelope(payload []byte) (wire.Envelope, error) {
	var env wire.Envelope
	err := json.Unmarshal(payload, &env)
	return env, err
}

// logSymbolic re-derives the inbound frame's internal kebab-case symbolic
// keys and logs them at debug level, a holdover from this daemon's
// Clojure-era wire format where field names never touched the wire as
// written in source. Swallows decode errors: this is diagnostic only.
func (s *Server) logSymbolic(payload []byte) {
	var raw map[string]any
	if err := json.Unmarshal(payload, &raw); err != nil {
		return
	}
	symbolic := wire.DecodeKeys(raw)
	s.Log.Debug("frame received", "symbolic", symbolic, "wire", wire.EncodeKeys(symbolic))
}
