package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"storyteller-api/internal/application/story/generation"
	"storyteller-api/internal/interfaces/http/dto"
	apperrors "storyteller-api/pkg/errors"
	"storyteller-api/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
)

// Generator 单集生成
type Generator interface {
	Generate(ctx context.Context, storyID string, req generation.Request) (<-chan generation.Event, error)
}

// GenerationHandler 剧集生成处理器，SSE 与 WebSocket 两种传输
type GenerationHandler struct {
	generator Generator
	upgrader  websocket.Upgrader
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(generator Generator) *GenerationHandler {
	return &GenerationHandler{
		generator: generator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// 跨域由 CORS 中间件统一约束
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Generate 流式生成下一集
// @Summary 生成下一集 (SSE)
// @Tags Episodes
// @Accept json
// @Produce text/event-stream
// @Param id path string true "故事 ID"
// @Param body body generation.Request false "生成参数"
// @Router /v1/stories/{id}/episodes/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req generation.Request
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			dto.BadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}
	if err := req.Validate(); err != nil {
		dto.FromError(c, err)
		return
	}

	events, err := h.generator.Generate(c.Request.Context(), dto.BindID(c), req)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return false
			}
			payload, err := ev.Encode()
			if err != nil {
				logger.Error(ctx, "failed to encode generation event", err, "event", ev.Name())
				return true
			}
			c.SSEvent(ev.Name(), string(payload))
			return true
		}
	})
}

// GenerateWS 通过 WebSocket 生成下一集
//
// 连接建立后客户端发送一条 JSON 生成参数（可为 {}），服务端随后逐条推送事件，
// 结束后以正常关闭帧断开。
// @Router /v1/stories/{id}/episodes/generate/ws [get]
func (h *GenerationHandler) GenerateWS(c *gin.Context) {
	storyID := dto.BindID(c)
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context(), "websocket upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	var req generation.Request
	_, msg, err := conn.ReadMessage()
	if err != nil {
		logger.Warn(ctx, "websocket closed before request", "error", err.Error())
		return
	}
	if len(msg) > 0 {
		if err := json.Unmarshal(msg, &req); err != nil {
			h.closeWithError(conn, generation.ErrorEvent{Message: "invalid request: " + err.Error()})
			return
		}
	}
	if err := req.Validate(); err != nil {
		h.closeWithError(conn, generation.ErrorEvent{Message: errorText(err)})
		return
	}

	events, err := h.generator.Generate(ctx, storyID, req)
	if err != nil {
		h.closeWithError(conn, generation.ErrorEvent{Message: errorText(err)})
		return
	}

	// 读循环只用于感知对端断开和处理 pong
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
				return
			}
			payload, err := ev.Encode()
			if err != nil {
				logger.Error(ctx, "failed to encode generation event", err, "event", ev.Name())
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Warn(ctx, "websocket write failed", "error", err.Error())
				return
			}
		}
	}
}

func (h *GenerationHandler) closeWithError(conn *websocket.Conn, ev generation.ErrorEvent) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if payload, err := ev.Encode(); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, payload)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "generation rejected"))
}

// errorText 业务错误回显消息与详情
func errorText(err error) string {
	if appErr := apperrors.AsAppError(err); appErr != nil {
		if appErr.Detail != "" {
			return appErr.Message + ": " + appErr.Detail
		}
		return appErr.Message
	}
	return "internal error"
}
