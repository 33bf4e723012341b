// Package handler holds the gin handlers of the label service.
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/erp/labeldesk/internal/domain/shared"
	"github.com/erp/labeldesk/internal/infrastructure/logger"
	"github.com/erp/labeldesk/internal/interfaces/http/dto"
	"github.com/erp/labeldesk/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a generic success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	resp := dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c))
	c.JSON(resp.StatusCode, resp)
}

// HandleError maps err to the error envelope. Deadline errors become 504;
// domain errors use their code; anything else is a 500 that hides the cause.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	if errors.Is(err, context.DeadlineExceeded) {
		h.ErrorWithCode(c, dto.ErrCodeTimeout, "Request timed out while contacting the ERP system")
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		message := domainErr.Message
		// internal errors carry the original failure so operators can act on it
		if code == dto.ErrCodeInternal {
			message = domainErr.Error()
		}
		h.ErrorWithCode(c, code, message)
		return
	}

	logger.GetGinLogger(c).Error("unhandled error", zap.Error(err))
	h.ErrorWithCode(c, dto.ErrCodeInternal, "An unexpected error occurred")
}
