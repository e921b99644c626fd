package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chatapp/internal/transport/httpdto"
	chatapp_errors "chatapp/pkg/errors"
	"chatapp/pkg/logger"
)

const internalMessage = "internal server error"

// ErrorHandler renders the last error a handler attached with c.Error.
// Expected errors are answered with their code and not logged, anything
// else is logged in full and answered generically.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if chatapp_errors.IsExpected(err) {
			c.JSON(chatapp_errors.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), chatapp_errors.Kind(err)))
			return
		}

		l.WithContext(c.Request.Context()).Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse(internalMessage, chatapp_errors.CodeInternal))
	}
}

// Recovery turns a panic into an internal error response.
func Recovery(l *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		l.WithContext(c.Request.Context()).Error("panic recovered",
			zap.String("path", c.Request.URL.Path),
			zap.String("panic", fmt.Sprint(recovered)))
		c.AbortWithStatusJSON(http.StatusInternalServerError, httpdto.NewErrorResponse(internalMessage, chatapp_errors.CodeInternal))
	})
}
