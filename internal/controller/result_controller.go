package controller

import (
	"school_quiz_backend/internal/service"
	"school_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ResultController struct {
	Service *service.GradingService
}

func NewResultController(svc *service.GradingService) *ResultController {
	return &ResultController{Service: svc}
}

// @Summary 获取成绩明细
// @Tags 成绩
// @Produce json
// @Security BearerAuth
// @Param id path string true "成绩ID"
// @Success 200 {object} util.Response
// @Router /api/results/{id} [get]
func (c *ResultController) GetResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.Service.GetResult(ctx.Request.Context(), ctx.Param("id"), user.UserID, user.Role)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 获取测验的全部成绩
// @Tags 成绩
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{quizId}/results [get]
func (c *ResultController) ListQuizResults(ctx *gin.Context) {
	page, limit := pagination(ctx)

	results, total, err := c.Service.ListResultsForQuiz(ctx.Request.Context(), ctx.Param("quizId"), page, limit)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: results, Total: total, Page: page, Limit: limit})
}

// @Summary 获取本人的历史成绩
// @Tags 成绩
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Success 200 {object} util.Response
// @Router /api/results [get]
func (c *ResultController) ListMyResults(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, limit := pagination(ctx)

	results, total, err := c.Service.ListResultsForStudent(ctx.Request.Context(), user.UserID, page, limit)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: results, Total: total, Page: page, Limit: limit})
}

// @Summary 人工批改主观题
// @Tags 成绩
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "成绩ID"
// @Param body body service.ManualGradeReq true "批改内容"
// @Success 200 {object} util.Response
// @Router /api/teacher/results/{id}/grade [post]
func (c *ResultController) GradeQuestion(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ManualGradeReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.Service.GradeManualQuestion(ctx.Request.Context(), ctx.Param("id"), user.UserID, req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
