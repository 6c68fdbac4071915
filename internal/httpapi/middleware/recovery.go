package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/suPer8Hu/chat-relay/internal/common"
)

// Recovery turns a handler panic into a 500 envelope.
func Recovery(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.WithFields(logrus.Fields{
					"panic":      rec,
					"path":       c.Request.URL.Path,
					"request_id": c.GetString(RequestIDKey),
				}).Error("handler panicked\n" + string(debug.Stack()))
				if !c.Writer.Written() {
					common.Fail(c, http.StatusInternalServerError, 50000, "internal server error")
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
