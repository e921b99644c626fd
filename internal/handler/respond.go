package handler

import (
	"github.com/gin-gonic/gin"

	"chatapp/internal/transport/httpdto"
)

// fail hands err to the error middleware, which picks status and code.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func respond[T any](c *gin.Context, status int, data T) {
	c.JSON(status, httpdto.NewSuccessResponse(data))
}
