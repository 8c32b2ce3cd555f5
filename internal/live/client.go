package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1メッセージの書き込みタイムアウト。
	writeWait = 10 * time.Second
	// pongWait はクライアントからのpong応答を待つ最大時間。
	pongWait = 60 * time.Second
	// pingPeriod はping送信間隔。pongWaitより短くする必要がある。
	pingPeriod = (pongWait * 9) / 10
	// sendBufferSize はクライアントごとの送信バッファ長。
	sendBufferSize = 16
)

// Client はハブに接続された1つのWebSocket接続を表す。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// ServeWS はHTTP接続をWebSocketにアップグレードしてハブに登録する。
// CORSと認証はハンドラー側のミドルウェアで処理済みである前提。
func ServeWS(hub *Hub, upgrader *websocket.Upgrader, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocketへのアップグレードに失敗しました",
			slog.String("error", err.Error()),
		)
		return
	}

	client := &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
	select {
	case hub.register <- client:
	case <-hub.done:
		// ハブ停止後の新規接続は受け付けない
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// writePump はハブからのイベントとpingを接続に書き込む。
// sendチャネルが閉じられる（ハブが切断を決めた）と接続を閉じて返る。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump はクライアントからの受信を読み捨て、切断を検出する。
// 配信は一方向だが、pong処理と切断検出のために読み取りループが必要。
func (c *Client) readPump() {
	defer func() {
		// ハブ停止後はRunが受信しないため、doneで抜ける
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
