package gateway

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/voicecode/voiced/internal/wire"
)

// tcpTransport wraps a raw net.Conn speaking the length-prefixed frame
// format and implements Transport.
type tcpTransport struct {
	conn net.Conn
	mu   sync.Mutex
}

func newTCPTransport(conn net.Conn) *tcpTransport {
	return &tcpTransport{conn: conn}
}

func (t *tcpTransport) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return wire.WriteFrame(t.conn, &wire.Frame{Type: wire.FrameData, Payload: payload})
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// Keepalive writes an empty control frame. The WebSocket transport has a
// native ping; the raw TCP channel doesn't, so callers that want to detect
// a half-open socket send one of these instead.
func (t *tcpTransport) Keepalive() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return wire.WriteFrame(t.conn, &wire.Frame{Type: wire.FrameControl})
}

// ReadFrame reads the next data frame's payload, blocking until one
// arrives or the connection closes. Control frames (keepalives) are
// consumed here and never reach the dispatch layer.
func (t *tcpTransport) ReadFrame() ([]byte, error) {
	for {
		f, err := wire.ReadFrame(t.conn)
		if err != nil {
			return nil, err
		}
		if f == nil {
			return nil, nil
		}
		if f.Type == wire.FrameControl {
			continue
		}
		return f.Payload, nil
	}
}
