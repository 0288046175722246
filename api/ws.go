package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/medbot/rounds/core/fanout"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Robot and ward displays connect from other origins on the site LAN.
	CheckOrigin: func(*http.Request) bool { return true },
}

// socket joins the connection to a fan-out group. The acknowledgement is the
// first frame; no earlier frame is replayed.
func (h *handlers) socket(c *gin.Context) {
	g, found := fanout.LookupPath(c.Param("group"))
	if !found {
		fail(c, http.StatusNotFound, "unknown group "+c.Param("group"))
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("websocket upgrade for %s: %v", g.Name, err)
		return
	}
	defer conn.Close()

	m, err := h.Hub.Join(g.Name)
	if err != nil {
		h.log.Errorf("join %s: %v", g.Name, err)
		return
	}
	defer h.Hub.Leave(g.Name, m.ID)

	ack, _ := json.Marshal(m.Ack)
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
		return
	}

	done := make(chan struct{})
	go h.writeFrames(conn, m, done)
	h.readFrames(c, conn, g)
	close(done)
}

func (h *handlers) writeFrames(conn *websocket.Conn, m *fanout.Member, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case frame, open := <-m.Frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !open {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				h.log.Debugf("write to %s member %s: %v", m.Group, m.ID, err)
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

// readFrames forwards client messages to the hub until the connection ends.
// A message the group cannot parse closes the socket with 1011.
func (h *handlers) readFrames(c *gin.Context, conn *websocket.Conn, g fanout.Group) {
	limiter := rate.NewLimiter(rate.Limit(h.cfg.WSRate), h.cfg.WSBurst)
	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugf("read from %s: %v", g.Name, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if g.Inbound == nil {
			continue
		}
		if !limiter.Allow() {
			h.log.Warnf("%s: inbound message dropped, rate limit exceeded", g.Name)
			continue
		}
		if err := h.Hub.Receive(c.Request.Context(), g.Name, raw); err != nil {
			h.log.Warnf("%s: closing socket: %v", g.Name, err)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
				time.Now().Add(writeWait))
			return
		}
	}
}
