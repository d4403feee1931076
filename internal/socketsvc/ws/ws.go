package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/cardbot-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Client is one websocket connection. Writes are serialized per connection.
type Client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *Client) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // to keep track of socket connection with socketId
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case "ping":
		s.Send(socketId, &comm.WSMessage{Type: "pong", Data: json.RawMessage(`{}`), SocketId: socketId})
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &Client{conn: conn})
}

func (s *Ws) GetConnection(socketId string) (*Client, bool) {
	c, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return c.(*Client), true
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// Send writes m to one socket.
func (s *Ws) Send(socketId string, m *comm.WSMessage) {
	c, ok := s.GetConnection(socketId)
	if !ok {
		return
	}
	if err := c.WriteJSON(m); err != nil {
		log.Errorf("Error writing to socket %s: %v", socketId, err)
	}
}

// Broadcast writes m to every connected socket and returns how many got it.
func (s *Ws) Broadcast(m *comm.WSMessage) int {
	sent := 0
	s.connMap.Range(func(key, value any) bool {
		if err := value.(*Client).WriteJSON(m); err != nil {
			log.Errorf("Error writing to socket %s: %v", key, err)
			return true
		}
		sent++
		return true
	})
	return sent
}

func (s *Ws) Count() int {
	n := 0
	s.connMap.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
