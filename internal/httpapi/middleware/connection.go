package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/relay"
)

const (
	WorkerKey = "relay_worker"
	EmailKey  = "email"
	TokenKey  = "token"

	TokenHeader = "Token"
)

// Registrar is the part of relay.Actor the transport needs.
type Registrar interface {
	Register(ctx context.Context, id relay.ConnID) (*relay.Conn, error)
}

// Connection registers a relay connection for the lifetime of one request.
func Connection(actor Registrar, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := actor.Register(c.Request.Context(), relay.ConnID(uuid.NewString()))
		if err != nil {
			log.WithError(err).Warn("relay connection refused")
			common.Fail(c, http.StatusServiceUnavailable, 50301, "service unavailable")
			return
		}
		w := relay.NewWorker(conn, nil)
		defer w.Close()

		c.Set(WorkerKey, w)
		c.Next()
	}
}

func WorkerFrom(c *gin.Context) *relay.Worker {
	v, _ := c.Get(WorkerKey)
	w, _ := v.(*relay.Worker)
	return w
}

// AuthRequired validates the Token header, binding the request's connection
// to the token's owner.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(TokenHeader)
		if token == "" {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			return
		}
		w := WorkerFrom(c)
		if w == nil {
			common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
			return
		}
		email, err := w.ValidateToken(c.Request.Context(), token)
		if err != nil {
			var e relay.Err
			if errors.As(err, &e) && e.Kind == relay.ErrAuth {
				common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
				return
			}
			common.Fail(c, http.StatusServiceUnavailable, 50301, "service unavailable")
			return
		}
		c.Set(EmailKey, email)
		c.Set(TokenKey, token)
		c.Next()
	}
}
