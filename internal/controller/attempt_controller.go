package controller

import (
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/service"
	"school_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
}

func NewAttemptController(svc *service.AttemptService) *AttemptController {
	return &AttemptController{Service: svc}
}

// @Summary 开始或恢复答题
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Service.StartAttempt(ctx.Request.Context(), ctx.Param("quizId"), user.UserID, user.SchoolID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary 恢复进行中的答题
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId}/resume [get]
func (c *AttemptController) ResumeAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Service.ResumeAttempt(ctx.Request.Context(), ctx.Param("quizId"), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

type answersReq struct {
	Answers model.AnswerMap `json:"answers" binding:"required"`
}

// submitReq autoSubmit 区分手动交卷和倒计时到点的自动交卷
type submitReq struct {
	Answers    model.AnswerMap `json:"answers"`
	AutoSubmit bool            `json:"autoSubmit"`
}

// @Summary 保存答题进度
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body answersReq true "本次增量答案"
// @Success 200 {object} util.Response
// @Router /api/attempts/{sessionId}/progress [put]
func (c *AttemptController) SaveProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req answersReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.Service.SaveProgress(ctx.Request.Context(), ctx.Param("sessionId"), user.UserID, req.Answers)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{
		"sessionId":    attempt.SessionID,
		"lastActivity": attempt.LastActivity,
		"answered":     len(attempt.Answers),
	})
}

// @Summary 提交答卷
// @Tags 答题
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "会话ID"
// @Param body body submitReq false "最终答案（与已保存进度合并）及 autoSubmit 标记"
// @Success 200 {object} util.Response
// @Router /api/attempts/{sessionId}/submit [post]
func (c *AttemptController) SubmitAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req submitReq
	if err := ctx.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.SubmitAttempt(ctx.Request.Context(), ctx.Param("sessionId"), user.UserID, req.Answers, req.AutoSubmit)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 查询测验完成状态
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId}/completion [get]
func (c *AttemptController) CheckCompletion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	status, err := c.Service.CheckCompletion(ctx.Request.Context(), ctx.Param("quizId"), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// @Summary 查询是否有进行中的答题会话
// @Tags 答题
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId}/in-progress [get]
func (c *AttemptController) CheckInProgress(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	status, err := c.Service.CheckInProgress(ctx.Request.Context(), ctx.Param("quizId"), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, status)
}

// @Summary 重置学生的答题记录
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param studentId path string true "学生ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{quizId}/students/{studentId}/reset [post]
func (c *AttemptController) ResetAttempt(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	err := c.Service.ResetAttempt(ctx.Request.Context(), ctx.Param("quizId"), ctx.Param("studentId"), user.UserID)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}
