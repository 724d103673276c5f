package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsIdleTimeout  = 60 * time.Second
	wsPingEvery    = wsIdleTimeout * 9 / 10
	wsMaxInbound   = 512 // subscribe requests are tiny
)

// The stream carries narration only, so any origin may read it.
var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsSession binds one upgraded connection to its hub client.
type wsSession struct {
	conn   *websocket.Conn
	client *WSClient
	log    *zap.Logger
}

// handleWebSocket upgrades the connection and streams job narration.
// Clients may send {"type":"subscribe","job_id":"..."} to follow one job.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &wsSession{
		conn: conn,
		client: &WSClient{
			hub:     s.wsHub,
			send:    make(chan WSMessage, 256),
			control: make(chan WSMessage, 8),
		},
		log: s.log,
	}
	s.wsHub.Register(sess.client)

	go sess.deliver()
	go sess.listen()
}

// listen applies client requests until the peer goes away or stops
// answering pings.
func (ws *wsSession) listen() {
	defer func() {
		ws.client.hub.Unregister(ws.client)
		ws.conn.Close()
	}()

	ws.conn.SetReadLimit(wsMaxInbound)
	extend := func(string) error { return ws.conn.SetReadDeadline(time.Now().Add(wsIdleTimeout)) }
	_ = extend("")
	ws.conn.SetPongHandler(extend)

	for {
		var req WSMessage
		_, raw, err := ws.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if json.Unmarshal(raw, &req) != nil {
			continue
		}
		ws.handle(req)
	}
}

func (ws *wsSession) handle(req WSMessage) {
	switch req.Type {
	case "subscribe":
		ws.client.Follow(req.JobID)
		ws.client.reply(WSMessage{Type: "subscribed", JobID: req.JobID})
	case "ping":
		ws.client.reply(WSMessage{Type: "pong"})
	}
}

// deliver writes hub traffic, replies and keepalive pings. A closed send
// channel means the hub dropped the client.
func (ws *wsSession) deliver() {
	keepalive := time.NewTicker(wsPingEvery)
	defer func() {
		keepalive.Stop()
		ws.conn.Close()
	}()

	for {
		var err error
		select {
		case msg, open := <-ws.client.send:
			if !open {
				_ = ws.write(websocket.CloseMessage, nil)
				return
			}
			err = ws.writeJSON(msg)
		case msg := <-ws.client.control:
			err = ws.writeJSON(msg)
		case <-keepalive.C:
			err = ws.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

func (ws *wsSession) write(kind int, data []byte) error {
	_ = ws.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return ws.conn.WriteMessage(kind, data)
}

func (ws *wsSession) writeJSON(msg WSMessage) error {
	_ = ws.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return ws.conn.WriteJSON(msg)
}
