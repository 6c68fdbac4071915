package handlers

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

type registerReq struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || utf8.RuneCountInString(req.Email) < 2 {
		common.Fail(c, http.StatusBadRequest, 10002, "name and email required")
		return
	}
	if utf8.RuneCountInString(req.Password) < 8 {
		common.Fail(c, http.StatusBadRequest, 10003, "password must have at least 8 characters")
		return
	}

	issued, err := middleware.WorkerFrom(c).Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header(middleware.TokenHeader, issued.Token)
	common.OK(c, gin.H{
		"email": req.Email,
		"name":  req.Name,
		"token": issued.Token,
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	info, err := middleware.WorkerFrom(c).Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header(middleware.TokenHeader, info.Token)
	common.OK(c, gin.H{
		"email": info.Email,
		"name":  info.Name,
		"token": info.Token,
	})
}
