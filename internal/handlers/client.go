package handlers

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Client is the per-channel state of one signaling connection: its identity
// once announced, and the room it is joined to, if any. Only the
// connection's read loop mutates it.
type Client struct {
	ConnID   string
	UserID   string
	Username string
	Room     string

	peer Peer
}

// NewClient wraps a websocket connection. Identity stays empty until the
// join announcement (or a token on the upgrade) provides one.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ConnID: uuid.New().String(),
		peer:   &wsPeer{conn: conn},
	}
}

func (c *Client) SendJSON(v interface{}) error {
	return c.peer.SendJSON(v)
}

// wsPeer serializes writes to a websocket connection. Broadcasts run on
// other connections' read loops, and the fiber websocket does not allow
// concurrent writers.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) SendJSON(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteJSON(v)
}
