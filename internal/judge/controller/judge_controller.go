package controller

import (
	"github.com/gin-gonic/gin"

	"crucible/internal/common/http/response"
	"crucible/internal/judge/service"
	apperrors "crucible/pkg/errors"
)

// JudgeController serves submission creation, status queries and the
// administrative retry/disable endpoints.
type JudgeController struct {
	submissions *service.SubmissionService
}

func NewJudgeController(submissions *service.SubmissionService) *JudgeController {
	return &JudgeController{submissions: submissions}
}

// Submit creates a submission and enqueues its judge job.
func (ctl *JudgeController) Submit(c *gin.Context) {
	var req service.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "challengeId, userId, code and language are required")
		return
	}
	sub, err := ctl.submissions.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, sub)
}

// GetStatus returns the judge state of a submission.
func (ctl *JudgeController) GetStatus(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "submission id is required")
		return
	}
	view, err := ctl.submissions.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// GetLatestRun returns the authoritative run of a submission.
func (ctl *JudgeController) GetLatestRun(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "submission id is required")
		return
	}
	run, err := ctl.submissions.LatestRun(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, run)
}

// Retry re-enqueues a failed judge. Admin only.
func (ctl *JudgeController) Retry(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		response.BadRequest(c, "submission id is required")
		return
	}
	if err := ctl.submissions.Retry(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"submissionId": id, "status": "queued"})
}

type setEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetJudgingEnabled flips the administrative judging flag. Admin only.
func (ctl *JudgeController) SetJudgingEnabled(c *gin.Context) {
	var req setEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		response.Error(c, apperrors.New(apperrors.InvalidParams).WithMessage("enabled is required"))
		return
	}
	if err := ctl.submissions.SetJudgingEnabled(c.Request.Context(), *req.Enabled); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"enabled": *req.Enabled})
}
