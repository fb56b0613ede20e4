package main

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	readLimit     = 1 << 20           // 1 MB
	readDeadline  = 120 * time.Second // extended by pong
	writeDeadline = 5 * time.Second
	pingInterval  = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// pingLoop sends pings until stop closes. WriteControl may run alongside the
// handler's data writes; WriteMessage may not.
func pingLoop(conn *websocket.Conn, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeDeadline)); err != nil {
				_ = writeClose(conn, websocket.CloseGoingAway, "ping error")
				return
			}
		case <-stop:
			return
		}
	}
}

func writeClose(conn *websocket.Conn, code int, reason string) error {
	return conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(writeDeadline),
	)
}
