package handler

import (
	"errors"
	"net/http"

	"conference-payments/internal/apperr"
	"conference-payments/internal/dto"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindGatewayUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindPaymentAbandoned:
		return http.StatusPaymentRequired
	case apperr.KindNotYetSettled:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// HTTPErrorHandler renders service errors as {"error": code, "message": text}
// with a status derived from their apperr kind.
func HTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var (
			status int
			body   dto.ErrorResponse
		)

		var he *echo.HTTPError
		var ae *apperr.Error
		switch {
		case errors.As(err, &he):
			status = he.Code
			body = dto.ErrorResponse{Error: http.StatusText(he.Code), Message: messageOf(he)}
		case errors.As(err, &ae):
			status = statusForKind(ae.Kind)
			body = dto.ErrorResponse{Error: ae.Code, Message: ae.Message}
		default:
			status = http.StatusInternalServerError
			body = dto.ErrorResponse{Error: apperr.KindInternal.String(), Message: http.StatusText(status)}
		}

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("write error response", zap.Error(err))
		}
	}
}

func messageOf(he *echo.HTTPError) string {
	if msg, ok := he.Message.(string); ok {
		return msg
	}
	return http.StatusText(he.Code)
}
