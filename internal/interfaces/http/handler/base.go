// Package handler serves the run status API.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/contentstack/cli-sub008/internal/domain/shared"
	"github.com/contentstack/cli-sub008/internal/infrastructure/logger"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/dto"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/middleware"
)

// responder writes the status API envelope. Handlers embed it.
type responder struct{}

func (responder) ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

func (responder) okPage(c *gin.Context, data any, total int64, req dto.ListRequest) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, req.Page, req.PageSize))
}

// reject answers with an API error code; the status follows from the code
func (responder) reject(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// fail answers for an error returned by a service. Domain errors keep their
// code and message. A request that ended before the store answered is
// unavailable; anything else is logged and reported as internal with
// summary as the message.
func (r responder) fail(c *gin.Context, err error, summary string) {
	var domainErr *shared.DomainError
	switch {
	case errors.As(err, &domainErr):
		r.reject(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		r.reject(c, dto.ErrCodeUnavailable, summary)
	default:
		logger.GetGinLogger(c).Error(summary, zap.Error(err))
		r.reject(c, dto.ErrCodeInternal, summary)
	}
}
