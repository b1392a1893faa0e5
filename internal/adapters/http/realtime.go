package httpadapter

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"modelmarket/internal/adapters/http/apierr"
	"modelmarket/internal/realtime"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// realtime streams row changes of one table to the caller over a WebSocket.
// Query: table=<name>&filter=<column>=eq.<value>.
func (s *Server) realtime(w http.ResponseWriter, r *http.Request) {
	if s.broker == nil {
		s.fail(w, r, apierr.New(apierr.CodeBadGateway, "realtime is not available"))
		return
	}
	var table, filterParam string
	if err := queryParam(r, "table", &table); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := queryParam(r, "filter", &filterParam); err != nil {
		s.fail(w, r, err)
		return
	}
	filter, err := realtime.ParseFilter(filterParam)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	sub, err := s.broker.Subscribe(userID(r), table, filter)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	defer s.broker.Unsubscribe(sub)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// the read loop only handles control frames and notices the close
	closed := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-closed:
			return
		case change, ok := <-sub.Ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(change); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
