package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/audio"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/handlers"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
)

type Deps struct {
	Actor   middleware.Registrar
	ChatSvc *chat.Service
	Audio   *audio.Service
	Metrics http.Handler
	Log     logrus.FieldLogger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Log))
	r.Use(middleware.Recovery(d.Log))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"*"},
		ExposeHeaders:   []string{middleware.TokenHeader, middleware.RequestIDHeader},
		MaxAge:          12 * time.Hour,
	}))

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(d.Actor, d.ChatSvc, d.Audio, d.Log)

	r.GET("/ping", h.Ping)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	// registers its own long-lived connection
	r.GET("/ws", h.WebSocket)

	relayGroup := r.Group("/")
	relayGroup.Use(middleware.Connection(d.Actor, d.Log))
	relayGroup.POST("/register", h.Register)
	relayGroup.POST("/login", h.Login)
	relayGroup.GET("/audio/:message_id", h.GetAudio)

	// Token header required
	authGroup := relayGroup.Group("/")
	authGroup.Use(middleware.AuthRequired())
	authGroup.GET("/chats", h.ListChats)
	authGroup.POST("/chats", h.CreateChat)
	authGroup.GET("/chats/:chat_id", h.GetChat)
	authGroup.POST("/chats/:chat_id/messages", h.SendMessage)
	authGroup.DELETE("/chats/:chat_id", h.DeleteChat)
	return r
}
