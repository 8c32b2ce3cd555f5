// Package live は接続中クライアントへのライブイベント配信を提供する。
// WebSocket接続を束ねるハブと、リマインダーのブロードキャストを含む。
// 配信はfire-and-forgetで、失敗してもディスパッチャーの制御フローに影響しない。
package live

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event はクライアントへ配信するイベント。
// TopicはクライアントのリスナーがディスパッチするキーとなるWire上の識別子。
type Event struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// Hub は接続中のWebSocketクライアント集合を管理し、イベントを配信する。
// プロセス起動時に1つだけ生成し、プロセスの寿命まで保持する。
// clients mapへのアクセスはすべてRunのgoroutineに閉じているためロック不要。
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{} // Runの終了時に閉じる。停止後のregister/unregister送信をブロックさせない
	logger     *slog.Logger
}

// NewHub はHubを生成する。Run を呼ぶまで配信は行われない。
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run はハブのイベントループを実行する。
// コンテキストがキャンセルされると全クライアントを切断して返る。
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.logger.Info("ライブイベントハブを停止しました")
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.logger.Info("ライブイベントクライアントが接続しました",
				slog.Int("client_count", len(h.clients)),
			)
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// 送信バッファが詰まったクライアントは切断する
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast は全接続クライアントにイベントを配信する。fire-and-forget。
// エンコード失敗はログのみ、ハブのバッファが満杯の場合はイベントを破棄する。
func (h *Hub) Broadcast(topic string, payload any) {
	data, err := json.Marshal(Event{Topic: topic, Payload: payload})
	if err != nil {
		h.logger.Error("ライブイベントのエンコードに失敗しました",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
		)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("ライブイベントを破棄しました（バッファ満杯）",
			slog.String("topic", topic),
		)
	}
}
