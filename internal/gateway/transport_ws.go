package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// wsTransport wraps a nhooyr.io/websocket connection and implements Transport.
type wsTransport struct {
	conn *websocket.Conn
	ctx  context.Context
	addr string
	mu   sync.Mutex
}

func newWSTransport(conn *websocket.Conn, r *http.Request) *wsTransport {
	return &wsTransport{conn: conn, ctx: context.Background(), addr: r.RemoteAddr}
}

func (t *wsTransport) Send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.Write(t.ctx, websocket.MessageText, payload)
}

func (t *wsTransport) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "closing")
}

func (t *wsTransport) RemoteAddr() string {
	return t.addr
}

func (t *wsTransport) ReadMessage() ([]byte, error) {
	_, data, err := t.conn.Read(t.ctx)
	return data, err
}
