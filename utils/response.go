package utils

import "github.com/gin-gonic/gin"

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success returns a standard success response with a message string,
// mirroring the short human-readable status the UI toasts to the user.
func Success(ctx *gin.Context, message string, data interface{}) {
	ctx.JSON(200, JSONResponse{Code: 0, Message: message, Data: data})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	ctx.JSON(status, JSONResponse{Code: code, Message: message})
}
