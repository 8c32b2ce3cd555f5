package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/hitoshi/yoyaku/internal/live"
)

// LiveHandler はWebSocketによるリアルタイム通知のHTTPハンドラー。
type LiveHandler struct {
	hub      *live.Hub
	upgrader *websocket.Upgrader
}

// NewLiveHandler はLiveHandlerを生成する。
func NewLiveHandler(hub *live.Hub, upgrader *websocket.Upgrader) *LiveHandler {
	return &LiveHandler{
		hub:      hub,
		upgrader: upgrader,
	}
}

// ServeWS はWebSocket接続をハブに登録する。
// GET /ws
func (h *LiveHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	live.ServeWS(h.hub, h.upgrader, w, r)
}
