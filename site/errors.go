package site

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"timeplan/apperr"
)

const (
	msgInternal     = "Internal server error"
	msgInvalidQuery = "Invalid calendar query"
)

// handleError answers with a plain-text message. Only codec failures and
// echo's own errors reach the client; everything else becomes a generic 500
// with the detail kept in the log.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code, msg := http.StatusInternalServerError, msgInternal
	var he *echo.HTTPError
	switch {
	case errors.As(err, &he):
		code = he.Code
		msg = fmt.Sprint(he.Message)
		if he.Internal != nil {
			s.logger.Debug("request rejected", zap.Int("status", code), zap.Error(he.Internal))
		}
	case errors.Is(err, apperr.ErrCodec):
		code, msg = http.StatusBadRequest, msgInvalidQuery
		s.logger.Info("invalid calendar query", zap.Error(err))
	default:
		s.logger.Error("request failed",
			zap.String("kind", apperr.KindOf(err).String()),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			zap.Error(err),
		)
	}

	var werr error
	if c.Request().Method == http.MethodHead {
		werr = c.NoContent(code)
	} else {
		werr = c.String(code, msg)
	}
	if werr != nil {
		s.logger.Error("error writing error response", zap.Error(werr))
	}
}
