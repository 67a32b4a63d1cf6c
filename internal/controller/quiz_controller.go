package controller

import (
	"school_quiz_backend/internal/service"
	"school_quiz_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

func pagination(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// @Summary 创建测验
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.QuizReq true "测验定义"
// @Success 201 {object} util.Response
// @Router /api/teacher/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.CreateQuiz(ctx.Request.Context(), user.UserID, user.SchoolID, req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Created(ctx, quiz)
}

// @Summary 更新测验
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Param body body service.QuizReq true "更新字段"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{quizId} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.QuizReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.Service.UpdateQuiz(ctx.Request.Context(), ctx.Param("quizId"), user.UserID, req)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 发布/下架测验
// @Tags 测验管理
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{quizId}/publish [post]
func (c *QuizController) PublishQuiz(ctx *gin.Context) {
	var req struct {
		Publish *bool `json:"publish"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	publish := true
	if req.Publish != nil {
		publish = *req.Publish
	}

	quiz, err := c.Service.PublishQuiz(ctx.Request.Context(), ctx.Param("quizId"), publish)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 删除测验
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes/{quizId} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.Service.DeleteQuiz(ctx.Request.Context(), ctx.Param("quizId"), user.UserID); err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 获取测验详情
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param quizId path string true "测验ID"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{quizId} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	quiz, err := c.Service.GetQuiz(ctx.Request.Context(), ctx.Param("quizId"), user.Role)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// @Summary 获取班级测验列表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param classId path string true "班级ID"
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Success 200 {object} util.Response
// @Router /api/classes/{classId}/quizzes [get]
func (c *QuizController) ListClassQuizzes(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, limit := pagination(ctx)

	quizzes, total, err := c.Service.ListQuizzesForClass(ctx.Request.Context(), user.SchoolID, ctx.Param("classId"), user.Role, page, limit)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: quizzes, Total: total, Page: page, Limit: limit})
}

// @Summary 获取全校测验列表
// @Tags 测验管理
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码"
// @Param limit query int false "每页条数"
// @Success 200 {object} util.Response
// @Router /api/teacher/quizzes [get]
func (c *QuizController) ListSchoolQuizzes(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	page, limit := pagination(ctx)

	quizzes, total, err := c.Service.ListQuizzesForSchool(ctx.Request.Context(), user.SchoolID, user.Role, page, limit)
	if err != nil {
		util.FromError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: quizzes, Total: total, Page: page, Limit: limit})
}
