package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"PSync/logger"
	secmw "PSync/middleware/security"
	"PSync/module/sync/service"
	"PSync/tools/safe"
)

var upgraded = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	wsWriteWait = 10 * time.Second
	wsPingEvery = 30 * time.Second
	wsPongWait  = 75 * time.Second
)

type wsPush struct {
	Proto  string `json:"proto"`
	Pts    int64  `json:"pts"`
	Source string `json:"source"` // local / remote
}

// WS GET /api/sync/ws — 唤醒事件的推送通道。
// 只推 {pts}，不推内容本体，客户端收到后走 /difference 拉差量。
// 丢一条推送没关系，长轮询和差量协议兜底。
func (a *API) WS(c *gin.Context) {
	userID := secmw.UserID(c)

	ws, err := upgraded.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Errorf("[sync.ws] upgrade failed: %v", err)
		return
	}
	defer func(ws *websocket.Conn) {
		if err := ws.Close(); err != nil {
			logger.Infof("[sync.ws] close error: %v", err)
		}
	}(ws)

	events, cancel := a.svc.Bus().Subscribe(userID)
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// 读循环只为探测断线，业务上不收消息
	done := make(chan struct{})
	safe.Go("sync.ws.read", func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-done:
			return
		case ev := <-events:
			src := "local"
			if ev.Remote {
				src = "remote"
			}
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteJSON(wsPush{Proto: service.ProtoVersion, Pts: ev.UpdateID, Source: src}); err != nil {
				logger.Infof("[sync.ws] write failed, user=%s: %v", userID, err)
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
