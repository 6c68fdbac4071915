package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

// GetAudio serves the synthesized speech of a message the caller owns.
func (h *Handler) GetAudio(c *gin.Context) {
	data, err := h.Audio.Audio(c.Request.Context(), middleware.WorkerFrom(c),
		c.GetHeader(middleware.TokenHeader), c.Param("message_id"))
	if err != nil {
		if relay.IsKind(err, relay.ErrNotFound) {
			common.Fail(c, http.StatusForbidden, 40301, "forbidden")
			return
		}
		h.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "audio/mpeg", data)
}
