package realtime

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsConn adapts a gorilla websocket to the Conn interface. Writes go
// through a buffered channel drained by a single write pump; a full buffer
// drops the message (delivery is best-effort).
type wsConn struct {
	id   string
	sock *websocket.Conn
	send chan Envelope
	done chan struct{}
	once sync.Once
	log  *zap.Logger
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(event string, payload interface{}) error {
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		env.Data = data
	}
	select {
	case c.send <- env:
		return nil
	case <-c.done:
		return errors.New("connection closed")
	default:
		c.log.Warn("send buffer full, dropping event",
			zap.String("conn", c.id), zap.String("event", event))
		return errors.New("send buffer full")
	}
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.sock.Close()
	})
	return err
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case env := <-c.send:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsConn) readPump(g *Gateway) {
	defer func() {
		g.Disconnect(c)
		c.Close()
	}()
	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		var env Envelope
		if err := c.sock.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("read error", zap.String("conn", c.id), zap.Error(err))
			}
			return
		}
		g.Dispatch(c, env.Event, env.Data)
	}
}

// Handler upgrades HTTP requests to websocket sessions bound to the
// gateway. The credential comes from the Authorization header (with or
// without the Bearer prefix) or a token query parameter.
func (g *Gateway) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.log.Warn("upgrade failed", zap.Error(err))
			return
		}

		conn := &wsConn{
			id:   uuid.NewString(),
			sock: sock,
			send: make(chan Envelope, sendBuffer),
			done: make(chan struct{}),
			log:  g.log,
		}
		go conn.writePump()

		if _, err := g.Connect(conn, token); err != nil {
			g.log.Warn("connection rejected", zap.Error(err))
			conn.Close()
			return
		}
		conn.readPump(g)
	}
}
