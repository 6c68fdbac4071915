package handlers

import (
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/audio"
	"github.com/suPer8Hu/chat-relay/internal/chat"
	"github.com/suPer8Hu/chat-relay/internal/httpapi/middleware"
)

type Handler struct {
	Actor   middleware.Registrar
	ChatSvc *chat.Service
	Audio   *audio.Service
	Log     logrus.FieldLogger
}

func NewHandler(actor middleware.Registrar, chatSvc *chat.Service, audioSvc *audio.Service, log logrus.FieldLogger) *Handler {
	return &Handler{Actor: actor, ChatSvc: chatSvc, Audio: audioSvc, Log: log}
}
