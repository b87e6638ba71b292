package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mycvconnect/mhire/internal/mhire/biz"
	"github.com/mycvconnect/mhire/internal/mhire/model"
	apierrors "github.com/mycvconnect/mhire/pkg/utils/errors"
	"github.com/mycvconnect/mhire/pkg/utils/response"
)

func (h *Handler) bindChat(c *gin.Context) (*model.ChatRequest, error) {
	var req model.ChatRequest
	if err := c.ShouldBind(&req); err != nil {
		return nil, bindError(err)
	}
	req.Normalize()
	if strings.TrimSpace(req.Message) == "" {
		return nil, apierrors.ErrInvalidRequest.WithMessage("message is required and cannot be empty")
	}
	return &req, nil
}

// Chat handles POST /chat.
func (h *Handler) Chat(c *gin.Context) {
	req, err := h.bindChat(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	res, err := h.chat.ChatWithCategory(ctx, req.SessionID, req.Message, nil)
	if clientGone(c, "chat") {
		return
	}
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, chatResponse(res))
}

func chatResponse(res *biz.ChatResult) model.ChatResponse {
	return model.ChatResponse{
		Response:  res.Response,
		Category:  res.Category,
		SessionID: res.SessionID,
		Sources:   res.Sources,
	}
}

// ChatStream handles POST /chat/stream. It sends a "category" event once
// the message is classified, the answer as "content" events while the
// model generates it and a final "done" event carrying the full response.
// Failures after the stream started are sent as an "error" event.
func (h *Handler) ChatStream(c *gin.Context) {
	req, err := h.bindChat(c)
	if err != nil {
		response.Fail(c, err)
		return
	}

	ctx, cancel := h.upstreamContext(c)
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(event string, data any) {
		if c.Request.Context().Err() != nil {
			return
		}
		c.SSEvent(event, data)
		c.Writer.Flush()
	}

	// 客户端断开后继续生成，保证会话历史完整
	res, err := h.chat.ChatStream(ctx, req.SessionID, req.Message, biz.ChatHooks{
		OnCategory: func(cat model.Category) {
			send("category", gin.H{"category": cat})
		},
		OnDelta: func(delta string) error {
			send("content", gin.H{"content": delta})
			return nil
		},
	})
	if clientGone(c, "chat stream") {
		return
	}
	if err != nil {
		e := apierrors.FromError(err)
		send("error", gin.H{"code": e.Code, "message": e.MessageEN})
		return
	}
	send("done", chatResponse(res))
}
