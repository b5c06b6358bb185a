package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "crucible/pkg/errors"
)

// Body is the uniform JSON envelope for API responses.
type Body struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// OK writes a successful response.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: 0, Message: "ok", Data: data})
}

// Error maps a domain error onto its HTTP status and writes the envelope.
func Error(c *gin.Context, err error) {
	appErr := apperrors.GetError(err)
	c.JSON(appErr.Code.HTTPStatus(), Body{
		Code:    int(appErr.Code),
		Message: appErr.Message,
	})
}

// BadRequest writes a 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Body{
		Code:    int(apperrors.InvalidParams),
		Message: message,
	})
}
