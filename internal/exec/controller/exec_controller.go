package controller

import (
	"github.com/gin-gonic/gin"

	"crucible/internal/common/http/response"
	"crucible/internal/exec/adhoc"
	"crucible/internal/exec/lang"
	apperrors "crucible/pkg/errors"
)

// ExecuteRequest is the ad-hoc execution payload.
type ExecuteRequest struct {
	Language string        `json:"language" binding:"required"`
	Code     string        `json:"code" binding:"required"`
	Stdin    string        `json:"stdin"`
	Limits   *adhoc.Limits `json:"limits"`
}

// ExecController serves the interactive "run with custom input" endpoint.
type ExecController struct {
	adhoc *adhoc.Service
}

func NewExecController(service *adhoc.Service) *ExecController {
	return &ExecController{adhoc: service}
}

// Execute runs user code against caller-supplied stdin.
func (ctl *ExecController) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "language and code are required")
		return
	}
	language, err := lang.Parse(req.Language)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, apperrors.LanguageNotSupported))
		return
	}

	result, err := ctl.adhoc.Execute(c.Request.Context(), language, req.Code, req.Stdin, req.Limits)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, result)
}
