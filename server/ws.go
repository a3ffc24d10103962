package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/talhaxhahid/ChildCompass-Backend/pkg/logger"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/metrics"
	"github.com/talhaxhahid/ChildCompass-Backend/pkg/relay"
)

const (
	// Time allowed to read the next frame; refreshed by any traffic or pong
	readWait = 90 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // socket clients are unauthenticated mobile apps
	},
}

// handlePresenceSocket upgrades /activeStatus connections
func (s *Server) handlePresenceSocket(c *gin.Context) {
	s.serveSocket(c, s.presence, "presence")
}

// handleLocationSocket upgrades /location connections
func (s *Server) handleLocationSocket(c *gin.Context) {
	s.serveSocket(c, s.location, "location")
}

// serveSocket upgrades the request and pumps frames into the engine until
// the peer goes away. Engine handlers never abort the loop; only a transport
// error ends the connection.
func (s *Server) serveSocket(c *gin.Context, engine relay.Engine, name string) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Get().WarnWith("websocket upgrade failed", "engine", name, "error", err)
		return
	}

	conn := relay.NewWSConn(ws)
	metrics.TotalConnections.WithLabelValues(name).Inc()
	metrics.ActiveConnections.WithLabelValues(name).Inc()
	logger.Get().InfoWith("websocket connected", "engine", name, "remote", c.Request.RemoteAddr)

	defer func() {
		engine.HandleDisconnect(conn)
		conn.Close()
		metrics.ActiveConnections.WithLabelValues(name).Dec()
		logger.Get().InfoWith("websocket disconnected", "engine", name)
	}()

	ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Get().WarnWith("websocket read error", "engine", name, "error", err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(readWait))
		metrics.MessagesReceived.WithLabelValues(name).Inc()
		engine.HandleMessage(conn, raw)
	}
}
