package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

type messageDTO struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

func toDTO(m relay.Message) messageDTO {
	return messageDTO{ID: m.ID, Sender: m.Sender, Content: m.Content, Timestamp: m.Timestamp}
}

func toDTOs(msgs []relay.Message) []messageDTO {
	out := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toDTO(m))
	}
	return out
}

func (h *Handler) ListChats(c *gin.Context) {
	ids, err := middleware.WorkerFrom(c).Chats(c.Request.Context(), c.GetString(middleware.EmailKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"chats": ids})
}

func (h *Handler) CreateChat(c *gin.Context) {
	chatID, err := middleware.WorkerFrom(c).NewChat(c.Request.Context(), c.GetString(middleware.EmailKey))
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": chatID})
}

func (h *Handler) GetChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	msgs, err := middleware.WorkerFrom(c).Chat(c.Request.Context(), c.GetString(middleware.TokenKey), chatID)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{
		"chat_id":  chatID,
		"messages": toDTOs(msgs),
	})
}

type sendMessageReq struct {
	Content string `json:"content"`
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "content required")
		return
	}

	reply, err := h.ChatSvc.SendMessage(c.Request.Context(), middleware.WorkerFrom(c),
		c.GetString(middleware.TokenKey), c.Param("chat_id"), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, toDTO(reply))
}

func (h *Handler) DeleteChat(c *gin.Context) {
	chatID := c.Param("chat_id")
	if err := middleware.WorkerFrom(c).DeleteChat(c.Request.Context(), c.GetString(middleware.TokenKey), chatID); err != nil {
		h.fail(c, err)
		return
	}
	common.OK(c, gin.H{"chat_id": chatID})
}
