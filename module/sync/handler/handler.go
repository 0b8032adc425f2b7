package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	secmw "PSync/middleware/security"
	"PSync/module/message"
	"PSync/module/sync/service"
	"PSync/tools/security"
)

// API 同步面的 HTTP 入口：state / difference / updates(长轮询) / ack / ws。
// 业务一律回 200，错误语义放 code 字段，网关只看传输层。
type API struct {
	svc     *service.Service
	msgs    message.Store
	jwtOpts security.Options
}

func NewAPI(svc *service.Service, msgs message.Store, jwtOpts security.Options) *API {
	return &API{svc: svc, msgs: msgs, jwtOpts: jwtOpts}
}

func (a *API) Register(r *gin.Engine) {
	grp := r.Group("/api/sync", secmw.Middleware(a.jwtOpts))
	grp.GET("/state", a.State)
	grp.POST("/difference", a.Difference)
	grp.GET("/updates", a.LongPoll)
	grp.POST("/ack", a.Ack)
	grp.GET("/ws", a.WS)
}

// 每个响应都带协议标记和水位字段名，客户端据此识别不兼容服务端
func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":      0,
		"proto":     service.ProtoVersion,
		"watermark": service.WatermarkField,
		"data":      data,
	})
}

func fail(c *gin.Context, status, code int, msg string) {
	c.JSON(status, gin.H{
		"code":      code,
		"proto":     service.ProtoVersion,
		"watermark": service.WatermarkField,
		"msg":       msg,
	})
}

// State GET /api/sync/state — 当前 {pts, date}
func (a *API) State(c *gin.Context) {
	userID := secmw.UserID(c)
	st, err := a.svc.State(c.Request.Context(), userID)
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "get state failed")
		return
	}
	ok(c, st)
}

type differenceReq struct {
	Pts   *int64 `json:"pts" binding:"required"`
	Limit int64  `json:"limit"`
}

// Difference POST /api/sync/difference — 差量恢复（Gap Recovery）
func (a *API) Difference(c *gin.Context) {
	userID := secmw.UserID(c)
	var req differenceReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Pts == nil || *req.Pts < 0 {
		fail(c, http.StatusBadRequest, 400, "pts required")
		return
	}
	res, err := a.svc.Difference(c.Request.Context(), a.msgs, userID, *req.Pts, req.Limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "difference failed")
		return
	}
	ok(c, res)
}

type longPollResp struct {
	*service.DifferenceResult
	WakeSource service.WakeSource `json:"wakeSource"`
}

// LongPoll GET /api/sync/updates?pts=&timeout= — 阻塞等新水位。
// 被唤醒或超时后都回一个完整的 difference 形状：要么是有效的
// 净化差量，要么是显式的空结果，绝不回"半吊子"状态。
func (a *API) LongPoll(c *gin.Context) {
	userID := secmw.UserID(c)
	fromPts := parseInt64(c.Query("pts"), 0)
	timeoutMs := parseInt64(c.Query("timeout"), 30_000)

	wait, err := a.svc.WaitForUpdate(c.Request.Context(), userID, fromPts,
		time.Duration(timeoutMs)*time.Millisecond)
	if err != nil {
		// 客户端提前断开：响应写不出去也无所谓
		return
	}
	res, err := a.svc.Difference(c.Request.Context(), a.msgs, userID, fromPts, 0)
	if err != nil {
		fail(c, http.StatusInternalServerError, 500, "difference failed")
		return
	}
	ok(c, longPollResp{DifferenceResult: res, WakeSource: wait.WakeSource})
}

type ackReq struct {
	Pts *int64 `json:"pts" binding:"required"`
}

// Ack POST /api/sync/ack — 记录客户端确认到的水位（纯观测）
func (a *API) Ack(c *gin.Context) {
	userID := secmw.UserID(c)
	var req ackReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Pts == nil || *req.Pts < 0 {
		fail(c, http.StatusBadRequest, 400, "pts required")
		return
	}
	res := a.svc.SaveAckPts(c.Request.Context(), userID, *req.Pts)
	ok(c, gin.H{"acknowledged": true, "pts": res.Pts})
}

func parseInt64(s string, def int64) int64 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}
