// internal/web/websocket.go - Live Top Hosts feed
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"tophosts/internal/widget"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// WSClient subscribes to one widget configuration. The first fields message
// triggers a render; later ones replace the subscription.
type WSClient struct {
	id     string
	conn   *websocket.Conn
	send   chan WSMessage
	fields chan widget.Fields
	ctx    context.Context
	cancel context.CancelFunc
	server *Server
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade websocket")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &WSClient{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan WSMessage, 16),
		fields: make(chan widget.Fields, 1),
		ctx:    ctx,
		cancel: cancel,
		server: s,
	}

	s.wsMu.Lock()
	s.wsClients[client] = true
	s.wsMu.Unlock()
	s.metrics.RecordWebSocketConnection(1)

	logrus.WithField("client", client.id).Debug("WebSocket subscriber connected")

	go client.writePump()
	go client.renderLoop(s.config.Widget.RefreshInterval)
	go client.readPump()
}

func (s *Server) removeClient(client *WSClient) {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	if s.wsClients[client] {
		delete(s.wsClients, client)
		s.metrics.RecordWebSocketConnection(-1)
		logrus.WithField("client", client.id).Debug("WebSocket subscriber disconnected")
	}
}

func (s *Server) closeWebSockets() {
	s.wsMu.Lock()
	defer s.wsMu.Unlock()

	for client := range s.wsClients {
		client.cancel()
		client.conn.Close()
	}
}

func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.cancel()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.cancel()
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.cancel()
		c.server.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxWidgetBody)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		f, err := c.server.widgets.Defaults().PrepareFields(data)
		if err != nil {
			c.enqueue(WSMessage{Type: "error", Data: errorBody(err)})
			continue
		}

		// Keep only the latest subscription.
		select {
		case <-c.fields:
		default:
		}
		c.fields <- f
	}
}

func (c *WSClient) renderLoop(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var current *widget.Fields
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.fields:
			current = &f
		case <-ticker.C:
			if current == nil {
				continue
			}
		}

		view := c.server.render(c.ctx, *current, "websocket", c.id)
		if c.ctx.Err() != nil {
			return
		}
		c.enqueue(WSMessage{Type: "tophosts", Data: view})
	}
}

// enqueue drops the message when the subscriber is not keeping up.
func (c *WSClient) enqueue(message WSMessage) {
	select {
	case c.send <- message:
	case <-c.ctx.Done():
	default:
		logrus.WithField("client", c.id).Warn("WebSocket subscriber too slow, dropping update")
	}
}
