package middleware

import (
	"net/http"

	"github.com/MuhammadRaffey/uol-cgpa-calc/internal/app/models/dto"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

// BindJSON decodes and validates a JSON body into obj, writing a 400 response
// on failure. The content type is not checked: navigator.sendBeacon posts
// JSON as text/plain.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindWith(obj, binding.JSON); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(dto.HandleValidationError(err)))
		return false
	}
	return true
}
