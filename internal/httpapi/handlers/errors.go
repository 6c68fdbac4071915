package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/chat-relay/internal/ai"
	"github.com/suPer8Hu/chat-relay/internal/common"
	"github.com/suPer8Hu/chat-relay/internal/relay"
	"github.com/suPer8Hu/chat-relay/internal/speech"
)

type apiError struct {
	status  int
	code    int
	message string
}

// classify maps a service error to the envelope sent to clients. Auth
// failures never say why.
func classify(err error) apiError {
	var e relay.Err
	switch {
	case errors.As(err, &e):
		switch e.Kind {
		case relay.ErrAuth:
			return apiError{http.StatusUnauthorized, 40101, "unauthorized"}
		case relay.ErrNotFound:
			return apiError{http.StatusNotFound, 40401, "not found"}
		case relay.ErrConflict:
			return apiError{http.StatusConflict, 10009, "already exists"}
		case relay.ErrInvalid:
			return apiError{http.StatusBadRequest, 10002, "invalid request"}
		default:
			return apiError{http.StatusInternalServerError, 50001, "storage error"}
		}
	case errors.Is(err, ai.ErrUpstream):
		return apiError{http.StatusBadGateway, 50201, "completion service failed"}
	case errors.Is(err, speech.ErrSynthesis):
		return apiError{http.StatusBadGateway, 50202, "speech service failed"}
	case errors.Is(err, relay.ErrClosed), errors.Is(err, relay.ErrBroken),
		errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apiError{http.StatusServiceUnavailable, 50301, "service unavailable"}
	default:
		return apiError{http.StatusInternalServerError, 50000, "internal server error"}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	e := classify(err)
	if e.status >= 500 {
		h.Log.WithError(err).WithField("path", c.FullPath()).Warn("request failed")
	}
	common.Fail(c, e.status, e.code, e.message)
}
